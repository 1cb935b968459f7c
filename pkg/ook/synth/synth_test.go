package synth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/norasector/ookbridge/pkg/ook"
)

var testConstants = ook.ProtocolConstants{
	NoiseFloor:    100,
	Short:         300,
	Medium:        512,
	Long:          700,
	PreambleBytes: 1,
	PayloadBytes:  3,
	MinPulses:     1,
	MaxPulses:     100,
}

func TestPulses(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []uint16
	}{
		// 1 0 1 0 1 0 1 0 -> final single bit becomes the guard
		{"alternating", []byte{0xAA}, []uint16{200, 200, 200, 200, 200, 200, 200, 2800}},
		// 11 00 111 0
		{"runs", []byte{0xCE}, []uint16{406, 406, 606, 2800}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pulses(tt.raw, testConstants)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPulsesErrors(t *testing.T) {
	_, err := Pulses(nil, testConstants)
	require.Error(t, err)

	_, err = Pulses([]byte{0x55}, testConstants)
	require.Error(t, err, "must start high")

	_, err = Pulses([]byte{0x80}, testConstants)
	require.Error(t, err, "run of seven zeros")
}

func TestCaptureChecksSizes(t *testing.T) {
	_, err := Capture(testConstants, []byte{0xAA}, []byte{0x01})
	require.Error(t, err)

	_, err = Capture(testConstants, nil, []byte{0x01, 0x00, 0x00})
	require.Error(t, err)

	buf, err := Capture(testConstants, []byte{0xAA}, []byte{0x01, 0x00, 0x00})
	require.NoError(t, err)
	require.Greater(t, buf.Number, 0)
}
