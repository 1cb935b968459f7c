package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/norasector/ookbridge/pkg/ook"
)

type Config struct {
	Source       Source        `yaml:"source"`
	Decoders     []Decoder     `yaml:"decoders"`
	Outputs      Outputs       `yaml:"outputs"`
	RepeatWindow time.Duration `yaml:"repeat_window"`
	StatusServer struct {
		Port           int `yaml:"port"`
		RecentReadings int `yaml:"recent_readings"`
	} `yaml:"status_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Source struct {
	Type     string        `yaml:"type"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
	Loop     bool          `yaml:"loop"`
}

// Decoder enables a built in protocol and optionally overrides its timing constants.
// Zero values keep the protocol defaults.
type Decoder struct {
	Protocol   string `yaml:"protocol"`
	Enabled    *bool  `yaml:"enabled"`
	Priority   int    `yaml:"priority"`
	MinPulses  int    `yaml:"min_pulses"`
	MaxPulses  int    `yaml:"max_pulses"`
	NoiseFloor uint16 `yaml:"noise_floor"`
	Short      uint16 `yaml:"short"`
	Medium     uint16 `yaml:"medium"`
	Long       uint16 `yaml:"long"`
}

func (d Decoder) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Apply resolves the overrides on top of a protocol's defaults.
func (d Decoder) Apply(c ook.ProtocolConstants) ook.ProtocolConstants {
	if d.MinPulses > 0 {
		c.MinPulses = d.MinPulses
	}
	if d.MaxPulses > 0 {
		c.MaxPulses = d.MaxPulses
	}
	if d.NoiseFloor > 0 {
		c.NoiseFloor = d.NoiseFloor
	}
	if d.Short > 0 {
		c.Short = d.Short
	}
	if d.Medium > 0 {
		c.Medium = d.Medium
	}
	if d.Long > 0 {
		c.Long = d.Long
	}
	return c
}

type Outputs struct {
	RFLink *RFLinkOutput       `yaml:"rflink"`
	MQTT   *MQTTOutput         `yaml:"mqtt"`
	Kafka  *KafkaOutput        `yaml:"kafka"`
	Redis  *RedisOutput        `yaml:"redis"`
	UDP    []OutputDestination `yaml:"udp"`
}

type RFLinkOutput struct {
	Path string `yaml:"path"` // empty means stdout
}

type MQTTOutput struct {
	Broker     string  `yaml:"broker"`
	ClientID   string  `yaml:"client_id"`
	Username   string  `yaml:"username"`
	Password   string  `yaml:"password"`
	TopicOut   string  `yaml:"topic_out"`
	QoS        byte    `yaml:"qos"`
	LWTEnabled bool    `yaml:"lwt_enabled"`
	TopicLWT   string  `yaml:"topic_lwt"`
	TLS        MQTTTLS `yaml:"tls"`
}

// MQTTTLS enables a TLS broker connection. CACert, ClientCert and ClientKey are PEM file paths.
type MQTTTLS struct {
	Enabled    bool   `yaml:"enabled"`
	Insecure   bool   `yaml:"insecure"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

type KafkaOutput struct {
	Brokers []string `yaml:"brokers,flow"`
	Topic   string   `yaml:"topic"`
}

type RedisOutput struct {
	Addr      string        `yaml:"addr"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(contents)
}

func Parse(contents []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, fmt.Errorf("error unmarshaling yaml: %w", err)
	}

	if c.Source.Type == "" {
		c.Source.Type = "file"
	}
	if c.StatusServer.RecentReadings == 0 {
		c.StatusServer.RecentReadings = 50
	}
	for i, d := range c.Decoders {
		if d.Protocol == "" {
			return nil, fmt.Errorf("decoder %d: protocol must be set", i)
		}
	}
	return &c, nil
}
