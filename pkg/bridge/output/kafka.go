package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/config"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOutput produces each reading as a JSON message keyed by device.
type KafkaOutput struct {
	writer   messageWriter
	recvChan chan *bridge.Reading
	metrics  api.WriteAPI
	logger   zerolog.Logger
}

func NewKafkaOutput(cfg config.KafkaOutput, metrics api.WriteAPI) (*KafkaOutput, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka output needs brokers and a topic")
	}

	return newKafkaOutput(&kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}, metrics), nil
}

func newKafkaOutput(w messageWriter, metrics api.WriteAPI) *KafkaOutput {
	return &KafkaOutput{
		writer:   w,
		recvChan: make(chan *bridge.Reading, receiveChannels),
		metrics:  metrics,
		logger:   log.Logger,
	}
}

func (o *KafkaOutput) Receive() chan<- *bridge.Reading {
	return o.recvChan
}

func (o *KafkaOutput) Start(ctx context.Context) error {
	defer o.writer.Close()
	return consume(ctx, "kafka", o.recvChan, o.send, o.metrics, o.logger)
}

func (o *KafkaOutput) send(ctx context.Context, r *bridge.Reading) error {
	value, err := json.Marshal(r.Payload())
	if err != nil {
		return err
	}

	return o.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.DeviceKey()),
		Value: value,
		Time:  r.Timestamp,
	})
}
