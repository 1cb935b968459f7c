package frame

import (
	"github.com/norasector/ookbridge/pkg/ook"
)

// CheckPulses is the sanity check run before any classification: the pulse count must be
// within bounds and every pulse except the final one must lie in [NoiseFloor, Long).
func CheckPulses(pulses []uint16, c ook.ProtocolConstants) error {
	n := len(pulses)
	if n < c.MinPulses || n > c.MaxPulses {
		return ook.Reject(ook.StagePreCheck, ook.ErrLengthOutOfRange, "%d pulses, want [%d,%d]", n, c.MinPulses, c.MaxPulses)
	}

	for i := 0; i < n-1; i++ {
		d := pulses[i]
		if d < c.NoiseFloor {
			return ook.Reject(ook.StagePreCheck, ook.ErrPulseOutOfRange, "pulse %d: %dus below noise floor %dus", i+1, d, c.NoiseFloor)
		}
		if d >= c.Long {
			return ook.Reject(ook.StagePreCheck, ook.ErrPulseOutOfRange, "pulse %d: %dus >= %dus", i+1, d, c.Long)
		}
	}

	return nil
}
