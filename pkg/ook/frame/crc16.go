package frame

import (
	"sync"

	"github.com/sigurn/crc16"

	"github.com/norasector/ookbridge/pkg/ook"
)

var tables sync.Map // ook.CRCParams -> *crc16.Table

func table(params ook.CRCParams) *crc16.Table {
	if t, ok := tables.Load(params); ok {
		return t.(*crc16.Table)
	}
	t := crc16.MakeTable(crc16.Params{
		Poly:   params.Poly,
		Init:   params.Init,
		XorOut: params.XorOut,
		Name:   "ook",
	})
	actual, _ := tables.LoadOrStore(params, t)
	return actual.(*crc16.Table)
}

// Checksum computes the non-reflected CRC of data, XorOut applied.
func Checksum(data []byte, params ook.CRCParams) uint16 {
	return crc16.Checksum(data, table(params))
}

// CRC16 computes a non-reflected 16 bit CRC over data with no final xor.
func CRC16(data []byte, poly, init uint16) uint16 {
	return Checksum(data, ook.CRCParams{Poly: poly, Init: init})
}

// Seal writes the CRC of payload[:len-2] into the last two bytes, big endian.
func Seal(payload []byte, params ook.CRCParams) {
	n := len(payload) - 2
	crc := Checksum(payload[:n], params)
	payload[n] = byte(crc >> 8)
	payload[n+1] = byte(crc & 0xff)
}

// CheckCRC compares the trailing big endian CRC of payload with the one computed over the
// preceding bytes.
func CheckCRC(payload []byte, params ook.CRCParams) error {
	if len(payload) < 3 {
		return ook.Reject(ook.StageValidate, ook.ErrChecksumMismatch, "payload of %d bytes has no room for a checksum", len(payload))
	}

	n := len(payload) - 2
	given := uint16(payload[n])<<8 | uint16(payload[n+1])
	computed := Checksum(payload[:n], params)

	if given != computed {
		return ook.Reject(ook.StageValidate, ook.ErrChecksumMismatch, "given 0x%04X computed 0x%04X", given, computed)
	}
	return nil
}
