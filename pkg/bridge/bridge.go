package bridge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/ookbridge/pkg/bridge/capture"
	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/ook/decoder"
	"github.com/norasector/ookbridge/pkg/util"
)

// drainTimeout bounds how long a finished source waits for outputs to empty.
const drainTimeout = 2 * time.Second

type Bridge struct {
	source       capture.Source
	opts         Options
	outputs      []Output
	registry     *decoder.Registry
	writeAPI     api.WriteAPI
	metrics      *Metrics
	statusServer StatusServer
	captureChan  chan *ook.CaptureBuffer
	pending      []ook.Record
	repeats      *repeatFilter
	logger       zerolog.Logger
	now          func() time.Time

	cancel context.CancelFunc
	ctx    context.Context
}

type BridgeOption func(b *Bridge) error

func WithInfluxDB(influxClient api.WriteAPI) BridgeOption {
	return func(b *Bridge) error {
		b.writeAPI = influxClient
		return nil
	}
}

func WithStatusServer(s StatusServer) BridgeOption {
	return func(b *Bridge) error {
		b.statusServer = s
		return nil
	}
}

func WithMetrics(m *Metrics) BridgeOption {
	return func(b *Bridge) error {
		b.metrics = m
		return nil
	}
}

func WithLogger(logger zerolog.Logger) BridgeOption {
	return func(b *Bridge) error {
		b.logger = logger
		return nil
	}
}

func NewBridge(source capture.Source, options Options, opts ...BridgeOption) (*Bridge, error) {
	b := &Bridge{
		source:      source,
		opts:        options,
		captureChan: make(chan *ook.CaptureBuffer, 1),
		writeAPI:    &util.MockWriteAPI{}, // overwritten with option
		repeats:     newRepeatFilter(options.RepeatWindow),
		logger:      log.Logger,
		now:         time.Now,
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.metrics == nil {
		b.metrics = NewMetrics(prometheus.NewRegistry())
	}

	reg, err := BuildRegistry(options.Decoders,
		decoder.WithSink(ook.SinkFunc(b.collect)),
		decoder.WithObserver(b.metrics),
		decoder.WithLogger(b.logger))
	if err != nil {
		return nil, err
	}
	if reg.Len() == 0 {
		return nil, fmt.Errorf("no decoders enabled")
	}
	reg.SetLogger(b.logger)
	b.registry = reg

	b.outputs = append(b.outputs, options.Outputs...)
	if b.statusServer != nil {
		b.outputs = append(b.outputs, b.statusServer)
	}

	return b, nil
}

// Registry returns the decoders in dispatch order.
func (b *Bridge) Registry() *decoder.Registry {
	return b.registry
}

func (b *Bridge) Stop() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.statusServer != nil {
		b.statusServer.Stop(context.TODO())
	}
	return b.source.Stop()
}

// Start runs until ctx is done or the source runs out of captures.
func (b *Bridge) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	b.ctx, b.cancel = context.WithCancel(ctx)

	eg.Go(func() error {
		err := b.source.Start(b.ctx, b.captureChan)
		if err == nil {
			close(b.captureChan)
		}
		return err
	})

	if b.statusServer != nil {
		eg.Go(func() error {
			return b.statusServer.Run(b.ctx)
		})
	}

	for _, output := range b.outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(b.ctx)
		})
	}

	eg.Go(b.processCaptures)

	names := make([]string, 0, b.registry.Len())
	for _, p := range b.registry.Plugins() {
		names = append(names, p.Name())
	}
	b.logger.Info().
		Strs("decoders", names).
		Int("outputs", len(b.outputs)).
		Dur("repeat_window", b.opts.RepeatWindow).
		Msg("Starting")

	if err := eg.Wait(); err != nil {
		return err
	}
	return nil
}

func (b *Bridge) processCaptures() error {
	for {
		select {
		case <-b.ctx.Done():
			return b.ctx.Err()
		case buf, ok := <-b.captureChan:
			if !ok {
				b.logger.Info().Msg("capture source finished")
				b.drainOutputs()
				b.cancel()
				return nil
			}
			b.process(buf)
		}
	}
}

// process runs one capture through the registry while the source is held paused.
func (b *Bridge) process(buf *ook.CaptureBuffer) {
	var snapshot []uint16
	if b.statusServer != nil {
		snapshot = append(snapshot, buf.Valid()...)
	}
	pulses := buf.Number

	var (
		name     string
		accepted bool
	)
	b.pending = b.pending[:0]

	b.source.Pause()
	elapsed := util.TimeOperationMicroseconds(func() {
		name, accepted = b.registry.Dispatch(buf)
	})
	b.source.Resume()

	result := resultUnrecognized
	if accepted {
		result = resultAccepted
	}

	delivered := 0
	for _, rec := range b.pending {
		r := NewReading(rec, b.now())
		if !b.repeats.Allow(r) {
			b.logger.Debug().Str("protocol", r.Protocol).Str("device", r.DeviceKey()).Msg("repeat suppressed")
			result = resultSuppressed
			continue
		}
		b.fanOut(r)
		delivered++
	}
	b.metrics.capture(result)

	if b.statusServer != nil {
		b.statusServer.ObserveCapture(snapshot, accepted)
	}

	if name == "" {
		name = "none"
	}
	go b.writeAPI.WritePoint(influxdb2.NewPoint("capture.processed",
		map[string]string{
			"protocol": name,
			"accepted": strconv.FormatBool(accepted),
		},
		map[string]interface{}{
			"pulses":      pulses,
			"duration_us": elapsed,
			"delivered":   delivered,
		}, time.Now()))
}

func (b *Bridge) collect(rec ook.Record) {
	b.pending = append(b.pending, rec)
}

func (b *Bridge) fanOut(r *Reading) {
	skippedOutputs := 0
	for _, output := range b.outputs {
		select {
		case output.Receive() <- r:
			// We will not wait on blocked channels.
		default:
			skippedOutputs++
		}
	}
	b.metrics.skippedOutputs(skippedOutputs)
}

func (b *Bridge) drainOutputs() {
	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		queued := 0
		for _, output := range b.outputs {
			queued += len(output.Receive())
		}
		if queued == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
