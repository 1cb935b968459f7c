package ook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConstants() ProtocolConstants {
	return ProtocolConstants{
		Name:          "test",
		MinPulses:     10,
		MaxPulses:     100,
		NoiseFloor:    100,
		Short:         300,
		Medium:        500,
		Long:          700,
		PreambleBytes: 1,
		PayloadBytes:  4,
		CRC:           CRCParams{Poly: 0x1021},
		Fields: []FieldSpec{
			{Name: "a", Offset: 0, Length: 2},
		},
	}
}

func TestProtocolConstantsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *ProtocolConstants)
		ok     bool
	}{
		{"valid", func(c *ProtocolConstants) {}, true},
		{"no name", func(c *ProtocolConstants) { c.Name = "" }, false},
		{"inverted bounds", func(c *ProtocolConstants) { c.MinPulses = 200 }, false},
		{"over capacity", func(c *ProtocolConstants) { c.MaxPulses = CaptureCapacity + 1 }, false},
		{"thresholds out of order", func(c *ProtocolConstants) { c.Medium = c.Long }, false},
		{"payload too small", func(c *ProtocolConstants) { c.PayloadBytes = 2 }, false},
		{"frame larger than pulses allow", func(c *ProtocolConstants) { c.MaxPulses = 11; c.PayloadBytes = 40 }, false},
		{"field past payload", func(c *ProtocolConstants) {
			c.Fields = append(c.Fields, FieldSpec{Name: "b", Offset: 3, Length: 2})
		}, false},
		{"field too wide", func(c *ProtocolConstants) {
			c.PayloadBytes = 8
			c.Fields = append(c.Fields, FieldSpec{Name: "b", Offset: 0, Length: 5})
		}, false},
		{"duplicate field", func(c *ProtocolConstants) {
			c.Fields = append(c.Fields, FieldSpec{Name: "a", Offset: 1, Length: 1})
		}, false},
		{"shift discards everything", func(c *ProtocolConstants) {
			c.Fields = append(c.Fields, FieldSpec{Name: "b", Offset: 1, Length: 1, Shift: 8})
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConstants()
			tt.modify(&c)
			err := c.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestRejectionUnwrap(t *testing.T) {
	var err error = Reject(StageValidate, ErrChecksumMismatch, "given 0x%04X", 0x1234)
	require.True(t, errors.Is(err, ErrChecksumMismatch))
	require.False(t, errors.Is(err, ErrPulseOutOfRange))
	require.Equal(t, "checksum_mismatch", ReasonTag(err))
	require.Contains(t, err.Error(), "validate")
	require.Contains(t, err.Error(), "0x1234")
}
