package frame

import (
	"github.com/norasector/ookbridge/pkg/ook"
)

// Extract reads every field of specs out of a validated payload. Span checks belong to
// ProtocolConstants.Validate, not here.
func Extract(payload []byte, specs []ook.FieldSpec) ook.DecodedFields {
	fields := make(ook.DecodedFields, 0, len(specs))
	for _, spec := range specs {
		fields = append(fields, ook.Field{
			Name:    spec.Name,
			Value:   ExtractField(payload, spec),
			Display: spec.Display,
		})
	}
	return fields
}

func ExtractField(payload []byte, spec ook.FieldSpec) uint32 {
	var value uint32

	switch spec.Order {
	case ook.LSBFirst:
		for i := spec.Offset + spec.Length - 1; i >= spec.Offset; i-- {
			value = (value << 8) | uint32(payload[i])
		}
	default:
		for i := spec.Offset; i < spec.Offset+spec.Length; i++ {
			value = (value << 8) | uint32(payload[i])
		}
	}

	value >>= spec.Shift
	if spec.Mask != 0 {
		value &= spec.Mask
	}
	return value ^ spec.Invert
}
