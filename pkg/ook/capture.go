package ook

// CaptureCapacity is the largest number of pulses a single capture can hold.
const CaptureCapacity = 512

// CaptureBuffer holds one radio transmission as a sequence of pulse durations in microseconds.
// Pulses alternate between high and low, starting high.
//
// Decoders treat the buffer as read only. The single exception is Consume, which a decoder
// calls once it has fully handled the capture.
type CaptureBuffer struct {
	Pulses  [CaptureCapacity]uint16
	Number  int
	Repeats bool
}

// NewCaptureBuffer copies pulses into a new buffer. Pulses beyond CaptureCapacity are dropped.
func NewCaptureBuffer(pulses []uint16) *CaptureBuffer {
	b := &CaptureBuffer{}
	for _, p := range pulses {
		if !b.Append(p) {
			break
		}
	}
	return b
}

// Append adds a pulse and reports whether there was room for it.
func (b *CaptureBuffer) Append(duration uint16) bool {
	if b.Number >= CaptureCapacity {
		return false
	}
	b.Pulses[b.Number] = duration
	b.Number++
	return true
}

// Valid returns the valid range of pulses. The slice aliases the buffer.
func (b *CaptureBuffer) Valid() []uint16 {
	n := b.Number
	if n < 0 {
		n = 0
	}
	if n > CaptureCapacity {
		n = CaptureCapacity
	}
	return b.Pulses[:n]
}

// Consumed reports whether a decoder has already handled this capture.
func (b *CaptureBuffer) Consumed() bool {
	return b.Repeats && b.Number == 0
}

// Consume signals that the capture has been handled and must be discarded.
func (b *CaptureBuffer) Consume() {
	b.Repeats = true
	b.Number = 0
}

// Reset clears the buffer for the next capture.
func (b *CaptureBuffer) Reset() {
	b.Number = 0
	b.Repeats = false
}

// Clone returns an independent copy.
func (b *CaptureBuffer) Clone() *CaptureBuffer {
	c := *b
	return &c
}
