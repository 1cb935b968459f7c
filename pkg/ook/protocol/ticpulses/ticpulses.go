// Package ticpulses decodes the TIC pulses transmitter that relays French electricity meter
// ("téléinformation client") counters over 433 MHz OOK.
//
// Frame: two 0xAA preamble bytes and a 0x9C sync byte, then 21 Manchester encoded payload
// bytes. The last two payload bytes carry CRC16(0x1021, init 0x1D0F) ^ 0xFFFF, big endian.
package ticpulses

import (
	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/ook/decoder"
)

const (
	Name        = "TIC_PULSES_V2"
	PayloadSize = 21
)

// Sync is the preamble+sync pattern the transmitter sends ahead of the payload.
var Sync = []byte{0xAA, 0xAA, 0x9C}

const (
	FieldRevision    = "revision"
	FieldID          = "id"
	FieldPricePeriod = "price_period"
	FieldIndexHC     = "index_hc"
	FieldIndexHP     = "index_hp"
	FieldPower       = "power"
	FieldBatteryOK   = "battery_ok"
)

func Constants() ook.ProtocolConstants {
	return ook.ProtocolConstants{
		Name:          Name,
		MinPulses:     260,
		MaxPulses:     300,
		NoiseFloor:    100,
		Short:         300,
		Medium:        512,
		Long:          700,
		PreambleBytes: len(Sync),
		PayloadBytes:  PayloadSize,
		CRC: ook.CRCParams{
			Poly:   0x1021,
			Init:   0x1D0F,
			XorOut: 0xFFFF,
		},
		Fields: []ook.FieldSpec{
			{Name: FieldID, Offset: 2, Length: 4, Order: ook.MSBFirst,
				Display: ook.Display{Key: "ID", Kind: ook.DisplayHex, Width: 8}},
			{Name: FieldIndexHP, Offset: 12, Length: 4, Order: ook.LSBFirst,
				Display: ook.Display{Key: "KWATT", Kind: ook.DisplayHex, Width: 8}},
			{Name: FieldIndexHC, Offset: 8, Length: 4, Order: ook.LSBFirst},
			{Name: FieldBatteryOK, Offset: 18, Length: 1, Mask: 0x01, Invert: 0x01,
				Display: ook.Display{Key: "BAT", Kind: ook.DisplayBattery}},
			{Name: FieldRevision, Offset: 1, Length: 1},
			{Name: FieldPricePeriod, Offset: 7, Length: 1, Mask: 0x0F},
			{Name: FieldPower, Offset: 16, Length: 2, Order: ook.LSBFirst},
		},
	}
}

// New returns a decoder for the default constants.
func New(opts ...decoder.Option) (*decoder.Decoder, error) {
	return decoder.New(Constants(), opts...)
}
