package output

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/config"
)

const (
	lwtOnline  = "Online"
	lwtOffline = "Offline"

	publishTimeout = 5 * time.Second
)

// MQTTOutput publishes each reading as JSON to a single topic.
type MQTTOutput struct {
	cfg      config.MQTTOutput
	client   mqtt.Client
	recvChan chan *bridge.Reading
	metrics  api.WriteAPI
	logger   zerolog.Logger
}

func NewMQTTOutput(cfg config.MQTTOutput, metrics api.WriteAPI) (*MQTTOutput, error) {
	if cfg.Broker == "" || cfg.TopicOut == "" {
		return nil, fmt.Errorf("mqtt output needs a broker and topic_out")
	}

	o := &MQTTOutput{
		cfg:      cfg,
		recvChan: make(chan *bridge.Reading, receiveChannels),
		metrics:  metrics,
		logger:   log.Logger,
	}
	opts, err := o.clientOptions()
	if err != nil {
		return nil, err
	}
	o.client = mqtt.NewClient(opts)
	return o, nil
}

// loadTLSConfig returns nil when TLS is disabled.
func loadTLSConfig(cfg config.MQTTTLS) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.Insecure}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CACert)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func (o *MQTTOutput) clientOptions() (*mqtt.ClientOptions, error) {
	clientID := o.cfg.ClientID
	if clientID == "" {
		clientID = "ookbridge-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.cfg.Broker)
	opts.SetClientID(clientID)
	if o.cfg.Username != "" {
		opts.SetUsername(o.cfg.Username)
	}
	if o.cfg.Password != "" {
		opts.SetPassword(o.cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	tlsConfig, err := loadTLSConfig(o.cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to load mqtt TLS config: %w", err)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	if o.cfg.LWTEnabled && o.cfg.TopicLWT != "" {
		opts.SetWill(o.cfg.TopicLWT, lwtOffline, o.cfg.QoS, true)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		o.logger.Info().Str("broker", o.cfg.Broker).Msg("mqtt connected")
		if o.cfg.LWTEnabled && o.cfg.TopicLWT != "" {
			client.Publish(o.cfg.TopicLWT, o.cfg.QoS, true, lwtOnline)
		}
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		o.logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	return opts, nil
}

func (o *MQTTOutput) Receive() chan<- *bridge.Reading {
	return o.recvChan
}

// Start connects and publishes until ctx is done. The connect token never completes while
// the broker is unreachable, so ctx is watched alongside it.
func (o *MQTTOutput) Start(ctx context.Context) error {
	token := o.client.Connect()
	select {
	case <-ctx.Done():
		o.client.Disconnect(250)
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	defer func() {
		if o.cfg.LWTEnabled && o.cfg.TopicLWT != "" {
			o.client.Publish(o.cfg.TopicLWT, o.cfg.QoS, true, lwtOffline).WaitTimeout(publishTimeout)
		}
		o.client.Disconnect(250)
	}()

	return consume(ctx, "mqtt", o.recvChan, o.send, o.metrics, o.logger)
}

func (o *MQTTOutput) send(_ context.Context, r *bridge.Reading) error {
	payload, err := json.Marshal(r.Payload())
	if err != nil {
		return err
	}

	token := o.client.Publish(o.cfg.TopicOut, o.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out publishing to %s", o.cfg.TopicOut)
	}
	return token.Error()
}
