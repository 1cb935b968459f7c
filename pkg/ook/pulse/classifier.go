package pulse

import (
	"github.com/norasector/ookbridge/pkg/ook"
)

// Symbols is the classification of one pulse: Count raw bits, all equal to Bit.
type Symbols struct {
	Bit   byte
	Count int
}

// Classifier turns pulse durations into raw bit symbols using a protocol's thresholds.
type Classifier struct {
	short  uint16
	medium uint16
	long   uint16
}

func NewClassifier(c ook.ProtocolConstants) *Classifier {
	return &Classifier{
		short:  c.Short,
		medium: c.Medium,
		long:   c.Long,
	}
}

// Polarity returns the line level of the pulse at 1-based position: odd pulses are high.
func Polarity(position int) byte {
	if position%2 == 1 {
		return 1
	}
	return 0
}

// Classify maps one pulse to 1-3 symbols. A pulse at or above the long threshold is only
// accepted as the final pulse, where receivers tend to emit a long guard with no timing meaning.
func (c *Classifier) Classify(duration uint16, position int, last bool) (Symbols, error) {
	bit := Polarity(position)

	switch {
	case duration < c.short:
		return Symbols{Bit: bit, Count: 1}, nil
	case duration < c.medium:
		return Symbols{Bit: bit, Count: 2}, nil
	case duration < c.long:
		return Symbols{Bit: bit, Count: 3}, nil
	case last:
		return Symbols{Bit: bit, Count: 1}, nil
	}

	return Symbols{}, ook.Reject(ook.StageClassify, ook.ErrPulseOutOfRange,
		"pulse %d: %dus >= %dus", position, duration, c.long)
}

// Work classifies a full pulse train and hands every symbol to emit.
func (c *Classifier) Work(pulses []uint16, emit func(bit byte)) error {
	for i, d := range pulses {
		sym, err := c.Classify(d, i+1, i == len(pulses)-1)
		if err != nil {
			return err
		}
		for j := 0; j < sym.Count; j++ {
			emit(sym.Bit)
		}
	}
	return nil
}
