package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/config"
)

const defaultKeyPrefix = "ookbridge:"

// RedisOutput keeps the latest reading of every device in a hash.
type RedisOutput struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	recvChan  chan *bridge.Reading
	metrics   api.WriteAPI
	logger    zerolog.Logger
}

func NewRedisOutput(cfg config.RedisOutput, metrics api.WriteAPI) (*RedisOutput, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis output needs an addr")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisOutput{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		keyPrefix: prefix,
		ttl:       cfg.TTL,
		recvChan:  make(chan *bridge.Reading, receiveChannels),
		metrics:   metrics,
		logger:    log.Logger,
	}, nil
}

func (o *RedisOutput) Receive() chan<- *bridge.Reading {
	return o.recvChan
}

func (o *RedisOutput) Start(ctx context.Context) error {
	defer o.client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	return consume(ctx, "redis", o.recvChan, o.send, o.metrics, o.logger)
}

func (o *RedisOutput) send(ctx context.Context, r *bridge.Reading) error {
	key, values := deviceHash(o.keyPrefix, r)

	pipe := o.client.Pipeline()
	pipe.HSet(ctx, key, values)
	if o.ttl > 0 {
		pipe.Expire(ctx, key, o.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}
	return nil
}

// deviceHash returns the hash key for r's device and the values to store in it.
func deviceHash(prefix string, r *bridge.Reading) (string, map[string]interface{}) {
	values := map[string]interface{}{
		"reading_id": r.ID.String(),
		"timestamp":  r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	for _, f := range r.Fields {
		values[f.Name] = f.Value
	}

	key := prefix + strings.Replace(r.DeviceKey(), "/", ":", 1)
	return key, values
}
