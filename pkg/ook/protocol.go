package ook

import (
	"fmt"
)

// CRCParams describes a 16 bit CRC computed MSB first. The transmitted value is the
// computed CRC XORed with XorOut.
type CRCParams struct {
	Poly   uint16
	Init   uint16
	XorOut uint16
}

type ByteOrder int

const (
	MSBFirst ByteOrder = iota
	LSBFirst
)

// DisplayKind tells an output how a field is meant to be rendered. The core never formats.
type DisplayKind int

const (
	DisplayNone DisplayKind = iota
	DisplayHex
	DisplayDecimal
	DisplayBattery
)

// Display is an output hint attached to a field.
type Display struct {
	Key   string
	Kind  DisplayKind
	Width int
}

// FieldSpec reads Length bytes at Offset, combines them in Order, then applies
// (value >> Shift) & Mask ^ Invert. A zero Mask keeps every bit.
type FieldSpec struct {
	Name    string
	Offset  int
	Length  int
	Order   ByteOrder
	Shift   uint
	Mask    uint32
	Invert  uint32
	Display Display
}

// ProtocolConstants is the framing definition of one protocol. Values are fixed once a
// decoder is built from them.
type ProtocolConstants struct {
	Name string

	MinPulses int
	MaxPulses int

	// Interior pulses must satisfy NoiseFloor <= d < Long.
	NoiseFloor uint16
	Short      uint16
	Medium     uint16
	Long       uint16

	PreambleBytes int
	PayloadBytes  int

	CRC    CRCParams
	Fields []FieldSpec
}

// FrameBytes is the number of raw bytes a complete frame occupies: preamble plus the
// Manchester encoded payload.
func (c ProtocolConstants) FrameBytes() int {
	return c.PreambleBytes + 2*c.PayloadBytes
}

// RawCapacity is the size in bytes of a raw bit buffer that can hold any capture within bounds.
func (c ProtocolConstants) RawCapacity() int {
	bits := c.MaxPulses * 3
	return (bits + 7) / 8
}

// Validate checks the definition itself. Failures are programming errors in a protocol
// definition, not properties of a capture.
func (c ProtocolConstants) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("protocol name must be set")
	}
	if c.MinPulses < 1 || c.MaxPulses < c.MinPulses {
		return fmt.Errorf("%s: invalid pulse count bounds [%d,%d]", c.Name, c.MinPulses, c.MaxPulses)
	}
	if c.MaxPulses > CaptureCapacity {
		return fmt.Errorf("%s: max pulses %d exceeds capture capacity %d", c.Name, c.MaxPulses, CaptureCapacity)
	}
	if !(c.NoiseFloor < c.Short && c.Short < c.Medium && c.Medium < c.Long) {
		return fmt.Errorf("%s: thresholds must satisfy noise floor < short < medium < long", c.Name)
	}
	if c.PayloadBytes < 3 {
		return fmt.Errorf("%s: payload of %d bytes cannot carry a 16 bit CRC", c.Name, c.PayloadBytes)
	}
	if c.PreambleBytes < 0 {
		return fmt.Errorf("%s: negative preamble length", c.Name)
	}
	if c.FrameBytes() > c.RawCapacity() {
		return fmt.Errorf("%s: frame of %d bytes cannot be produced by %d pulses", c.Name, c.FrameBytes(), c.MaxPulses)
	}

	seen := make(map[string]struct{}, len(c.Fields))
	for _, f := range c.Fields {
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("%s: duplicate field %q", c.Name, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Length < 1 || f.Length > 4 {
			return fmt.Errorf("%s: field %q spans %d bytes, want 1-4", c.Name, f.Name, f.Length)
		}
		if f.Offset < 0 || f.Offset+f.Length > c.PayloadBytes {
			return fmt.Errorf("%s: field %q [%d,%d) exceeds payload of %d bytes", c.Name, f.Name, f.Offset, f.Offset+f.Length, c.PayloadBytes)
		}
		if f.Shift >= uint(8*f.Length) {
			return fmt.Errorf("%s: field %q shift %d discards every bit", c.Name, f.Name, f.Shift)
		}
	}

	return nil
}
