package decoder

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/ook/bits"
	"github.com/norasector/ookbridge/pkg/ook/frame"
	"github.com/norasector/ookbridge/pkg/ook/pulse"
)

// Observer is told about the outcome of every attempt made through Decode.
type Observer interface {
	Accepted(protocol string)
	Rejected(protocol string, rej *ook.Rejection)
}

// Decoder runs one protocol's pipeline over a capture:
// precheck, classify+assemble, manchester, validate, extract.
type Decoder struct {
	consts     ook.ProtocolConstants
	classifier *pulse.Classifier
	newRawBits func(capacity int) bits.RawBits
	sink       ook.Sink
	observer   Observer
	logger     zerolog.Logger
}

type Option func(d *Decoder)

func WithSink(sink ook.Sink) Option {
	return func(d *Decoder) {
		d.sink = sink
	}
}

func WithObserver(o Observer) Option {
	return func(d *Decoder) {
		d.observer = o
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// WithRawBits replaces the raw bit buffer factory. Mostly useful to observe assembly in tests.
func WithRawBits(fn func(capacity int) bits.RawBits) Option {
	return func(d *Decoder) {
		d.newRawBits = fn
	}
}

// New builds a decoder. An invalid protocol definition is reported here and never at decode time.
func New(consts ook.ProtocolConstants, opts ...Option) (*Decoder, error) {
	if err := consts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol definition: %w", err)
	}

	d := &Decoder{
		consts:     consts,
		classifier: pulse.NewClassifier(consts),
		newRawBits: func(capacity int) bits.RawBits {
			return bits.NewBuffer(capacity)
		},
		logger: log.Logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

func (d *Decoder) Name() string {
	return d.consts.Name
}

func (d *Decoder) Constants() ook.ProtocolConstants {
	return d.consts
}

// Attempt decodes buf without modifying it. A non-nil error is always an *ook.Rejection.
func (d *Decoder) Attempt(buf *ook.CaptureBuffer) (ook.Record, error) {
	pulses := buf.Valid()

	if err := frame.CheckPulses(pulses, d.consts); err != nil {
		return ook.Record{}, err
	}

	raw := d.newRawBits(d.consts.RawCapacity())
	if err := d.classifier.Work(pulses, raw.WriteBit); err != nil {
		return ook.Record{}, err
	}

	payload := make([]byte, d.consts.PayloadBytes)
	start := d.consts.PreambleBytes
	end := d.consts.FrameBytes() - 1
	if err := bits.DecodeManchester(raw.Bytes(), start, end, payload); err != nil {
		return ook.Record{}, err
	}

	if err := frame.CheckCRC(payload, d.consts.CRC); err != nil {
		return ook.Record{}, err
	}

	return ook.Record{
		Protocol: d.consts.Name,
		Fields:   frame.Extract(payload, d.consts.Fields),
	}, nil
}

// Decode implements Plugin. On acceptance the record is emitted and buf is consumed;
// on rejection buf is left untouched.
func (d *Decoder) Decode(buf *ook.CaptureBuffer) bool {
	rec, err := d.Attempt(buf)
	if err != nil {
		rej, ok := err.(*ook.Rejection)
		if !ok {
			rej = &ook.Rejection{Stage: ook.StagePreCheck, Reason: err}
		}

		d.logger.Debug().
			Str("protocol", d.consts.Name).
			Str("stage", rej.Stage.String()).
			Str("reason", ook.ReasonTag(rej.Reason)).
			Str("detail", rej.Detail).
			Msg("capture rejected")

		if d.observer != nil {
			d.observer.Rejected(d.consts.Name, rej)
		}
		return false
	}

	if d.sink != nil {
		d.sink.Emit(rec)
	}
	if d.observer != nil {
		d.observer.Accepted(d.consts.Name)
	}

	buf.Consume()
	return true
}
