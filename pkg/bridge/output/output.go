package output

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"

	"github.com/norasector/ookbridge/pkg/bridge"
)

const receiveChannels = 8

// sender delivers one reading. Errors drop the reading; they never stop the output.
type sender func(ctx context.Context, r *bridge.Reading) error

// consume runs send for every reading until ctx is done and records the outcome in metrics.
func consume(ctx context.Context, name string, recv <-chan *bridge.Reading, send sender, metrics api.WriteAPI, logger zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-recv:
			sent, dropped := 1, 0
			if err := send(ctx, r); err != nil {
				logger.Warn().Err(err).Str("output", name).Str("device", r.DeviceKey()).Msg("error sending reading")
				sent, dropped = 0, 1
			}

			go metrics.WritePoint(influxdb2.NewPoint("output.sent",
				map[string]string{
					"output":   name,
					"protocol": r.Protocol,
				},
				map[string]interface{}{
					"sent":    sent,
					"dropped": dropped,
				}, time.Now()))
		}
	}
}
