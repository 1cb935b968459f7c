// Package synth builds pulse trains from payloads. It is the transmit side of the decoder
// pipeline and is used to produce replay files and test captures.
package synth

import (
	"fmt"

	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/ook/bits"
	"github.com/norasector/ookbridge/pkg/ook/frame"
)

// Frame returns the raw bytes on air: sync followed by the Manchester encoded payload.
func Frame(sync, payload []byte) []byte {
	ret := make([]byte, 0, len(sync)+2*len(payload))
	ret = append(ret, sync...)
	return append(ret, bits.EncodeManchester(payload)...)
}

// Durations returns a representative pulse width for 1, 2 and 3 raw bits and for the
// trailing guard pulse.
func Durations(c ook.ProtocolConstants) (one, two, three, guard uint16) {
	one = (c.NoiseFloor + c.Short) / 2
	two = (c.Short + c.Medium) / 2
	three = (c.Medium + c.Long) / 2
	guard = c.Long * 4
	return
}

// Pulses run-length encodes raw bits into pulse durations. The first raw bit must be 1
// since captures start high. A final single bit run is sent as a long guard pulse.
func Pulses(raw []byte, c ook.ProtocolConstants) ([]uint16, error) {
	n := len(raw) * 8
	if n == 0 {
		return nil, fmt.Errorf("no raw bits")
	}
	bit := func(i int) byte {
		return (raw[i/8] >> uint(7-i%8)) & 0x01
	}
	if bit(0) != 1 {
		return nil, fmt.Errorf("raw bits must start high")
	}

	one, two, three, guard := Durations(c)
	widths := [...]uint16{0, one, two, three}

	var pulses []uint16
	run := 1
	for i := 1; i <= n; i++ {
		if i < n && bit(i) == bit(i-1) {
			run++
			continue
		}
		if run > 3 {
			return nil, fmt.Errorf("run of %d equal bits ending at bit %d cannot be sent", run, i)
		}
		if i == n && run == 1 {
			pulses = append(pulses, guard)
		} else {
			pulses = append(pulses, widths[run])
		}
		run = 1
	}

	return pulses, nil
}

// Capture seals payload with the protocol CRC and returns the capture a receiver would record.
// payload is modified in place.
func Capture(c ook.ProtocolConstants, sync, payload []byte) (*ook.CaptureBuffer, error) {
	if len(payload) != c.PayloadBytes {
		return nil, fmt.Errorf("payload is %d bytes, protocol wants %d", len(payload), c.PayloadBytes)
	}
	if len(sync) != c.PreambleBytes {
		return nil, fmt.Errorf("sync is %d bytes, protocol wants %d", len(sync), c.PreambleBytes)
	}
	frame.Seal(payload, c.CRC)

	pulses, err := Pulses(Frame(sync, payload), c)
	if err != nil {
		return nil, err
	}
	if len(pulses) > ook.CaptureCapacity {
		return nil, fmt.Errorf("%d pulses exceed capture capacity", len(pulses))
	}
	return ook.NewCaptureBuffer(pulses), nil
}
