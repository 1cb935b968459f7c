package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/capture"
	"github.com/norasector/ookbridge/pkg/bridge/capture/file"
	"github.com/norasector/ookbridge/pkg/bridge/config"
	"github.com/norasector/ookbridge/pkg/bridge/output"
	"github.com/norasector/ookbridge/pkg/status"
	"github.com/norasector/ookbridge/pkg/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge as configured",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBridge(cmd.Context(), configFile)
	},
}

func runBridge(ctx context.Context, configFile string) error {
	opts, err := config.Load(configFile)
	if err != nil {
		return err
	}

	var src capture.Source
	switch opts.Source.Type {
	case "file":
		log.Info().Str("source", "file").Str("path", opts.Source.Path).Msg("initializing source...")
		fs, err := file.NewFileSource(opts.Source.Path, opts.Source.Interval, opts.Source.Loop)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		fs.SetLogger(log.Logger)
		src = fs
	default:
		return fmt.Errorf("unknown source type %q", opts.Source.Type)
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, "")
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	outputs, closers, err := buildOutputs(opts.Outputs, writeAPI)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bridgeOpts := []bridge.BridgeOption{
		bridge.WithInfluxDB(writeAPI),
		bridge.WithMetrics(bridge.NewMetrics(reg)),
		bridge.WithLogger(log.Logger),
	}

	var statusServer *status.Server
	if opts.StatusServer.Port > 0 {
		statusServer = status.NewServer(opts.StatusServer.Port, opts.StatusServer.RecentReadings,
			status.WithGatherer(reg),
			status.WithLogger(log.Logger))
		bridgeOpts = append(bridgeOpts, bridge.WithStatusServer(statusServer))
	}

	b, err := bridge.NewBridge(src, bridge.Options{
		Decoders:     opts.Decoders,
		Outputs:      outputs,
		RepeatWindow: opts.RepeatWindow,
	}, bridgeOpts...)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	if statusServer != nil {
		names := make([]string, 0, b.Registry().Len())
		for _, p := range b.Registry().Plugins() {
			names = append(names, p.Name())
		}
		statusServer.SetDecoders(names)
	}

	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return b.Stop()
	})

	eg.Go(func() error {
		return b.Start(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildOutputs(cfg config.Outputs, writeAPI api.WriteAPI) ([]bridge.Output, []io.Closer, error) {
	var (
		outputs []bridge.Output
		closers []io.Closer
	)

	if cfg.RFLink != nil {
		var dest io.Writer = os.Stdout
		if cfg.RFLink.Path != "" {
			f, err := os.OpenFile(cfg.RFLink.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to open rflink output: %w", err)
			}
			closers = append(closers, f)
			dest = f
		}
		outputs = append(outputs, output.NewRFLinkLineOutput(dest, writeAPI))
	}

	if cfg.MQTT != nil {
		o, err := output.NewMQTTOutput(*cfg.MQTT, writeAPI)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, o)
	}

	if cfg.Kafka != nil {
		o, err := output.NewKafkaOutput(*cfg.Kafka, writeAPI)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, o)
	}

	if cfg.Redis != nil {
		o, err := output.NewRedisOutput(*cfg.Redis, writeAPI)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, o)
	}

	if len(cfg.UDP) > 0 {
		outputs = append(outputs, output.NewUDPOutput(cfg.UDP, writeAPI))
	}

	return outputs, closers, nil
}
