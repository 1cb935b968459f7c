package bits

import (
	"github.com/norasector/ookbridge/pkg/ook"
)

const (
	pairZero byte = 0x01 // 01 _-
	pairOne  byte = 0x02 // 10 -_
)

// DecodeManchester decodes raw[start:end+1] two bits at a time into out, MSB first.
// out must hold (end-start+1)/2 bytes. The first 00 or 11 pair aborts the decode.
func DecodeManchester(raw []byte, start, end int, out []byte) error {
	if start < 0 || end >= len(raw) || end < start {
		return ook.Reject(ook.StageManchester, ook.ErrInvalidManchester, "region [%d,%d] outside %d raw bytes", start, end, len(raw))
	}

	var pos, idx int
	for i := start; i <= end; i++ {
		for shift := 6; shift >= 0; shift -= 2 {
			var bit byte
			switch (raw[i] >> uint(shift)) & 0x03 {
			case pairZero:
				bit = 0
			case pairOne:
				bit = 1
			default:
				return ook.Reject(ook.StageManchester, ook.ErrInvalidManchester,
					"raw byte %d (0x%02X) pair %d", i, raw[i], (6-shift)/2)
			}

			out[idx] = (out[idx] << 1) | bit
			pos++
			if pos%8 == 0 {
				idx++
			}
		}
	}

	return nil
}

// EncodeManchester is the inverse of DecodeManchester: every logical bit becomes a pair
// of raw bits, so the result is twice as long as data.
func EncodeManchester(data []byte) []byte {
	out := NewBuffer(2 * len(data))
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			if (b>>uint(i))&0x01 == 1 {
				out.WriteBit(1)
				out.WriteBit(0)
			} else {
				out.WriteBit(0)
				out.WriteBit(1)
			}
		}
	}
	return out.Bytes()
}
