package bits

// RawBits accumulates raw bit symbols.
type RawBits interface {
	WriteBit(bit byte)
	Bytes() []byte
}

// Buffer packs bits MSB first into a fixed capacity byte slice.
// The caller guarantees capacity; writing past it panics.
type Buffer struct {
	data    []byte
	bitPos  int
	byteIdx int
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		data: make([]byte, capacity),
	}
}

// WriteBit shifts the current byte left and ORs in the low bit of bit.
func (b *Buffer) WriteBit(bit byte) {
	b.data[b.byteIdx] = (b.data[b.byteIdx] << 1) | (bit & 0x01)
	b.bitPos++
	if b.bitPos == 8 {
		b.bitPos = 0
		b.byteIdx++
	}
}

// Bytes returns the whole backing slice, including bytes not yet written.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len is the number of bits written.
func (b *Buffer) Len() int {
	return b.byteIdx*8 + b.bitPos
}

func (b *Buffer) BitPosition() int { return b.bitPos }
func (b *Buffer) ByteIndex() int   { return b.byteIdx }

func (b *Buffer) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.bitPos = 0
	b.byteIdx = 0
}
