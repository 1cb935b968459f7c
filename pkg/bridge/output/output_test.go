package output

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/config"
	"github.com/norasector/ookbridge/pkg/ook"
	"github.com/norasector/ookbridge/pkg/util"
)

func testReading() *bridge.Reading {
	return &bridge.Reading{
		ID:        uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Protocol:  "TIC_PULSES_V2",
		Fields: ook.DecodedFields{
			{Name: "id", Value: 0x12345678, Display: ook.Display{Key: "ID", Kind: ook.DisplayHex, Width: 8}},
			{Name: "index_hp", Value: 0x123456, Display: ook.Display{Key: "KWATT", Kind: ook.DisplayHex, Width: 8}},
			{Name: "index_hc", Value: 0x78AFDF},
			{Name: "battery_ok", Value: 1, Display: ook.Display{Key: "BAT", Kind: ook.DisplayBattery}},
			{Name: "power", Value: 4056, Display: ook.Display{Key: "WATT", Kind: ook.DisplayDecimal}},
		},
	}
}

func TestFormatRFLink(t *testing.T) {
	r := testReading()
	require.Equal(t, "20;0A;TIC_PULSES_V2;ID=12345678;KWATT=00123456;BAT=OK;WATT=4056;", FormatRFLink(0x0A, r))

	r.Fields[3].Value = 0
	require.Equal(t, "20;FF;TIC_PULSES_V2;ID=12345678;KWATT=00123456;BAT=LOW;WATT=4056;", FormatRFLink(0xFF, r))
}

func TestRFLinkLineOutputSequence(t *testing.T) {
	var buf bytes.Buffer
	o := NewRFLinkLineOutput(&buf, &util.MockWriteAPI{})

	require.NoError(t, o.send(context.Background(), testReading()))
	require.NoError(t, o.send(context.Background(), testReading()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\r\n"))
	require.Len(t, lines, 2)
	require.True(t, bytes.HasPrefix(lines[0], []byte("20;00;")))
	require.True(t, bytes.HasPrefix(lines[1], []byte("20;01;")))
}

func TestConsumeRecordsOutcome(t *testing.T) {
	recv := make(chan *bridge.Reading, 2)
	recv <- testReading()
	recv <- testReading()

	metrics := &util.RecordingWriteAPI{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	send := func(_ context.Context, _ *bridge.Reading) error {
		calls++
		if calls == 2 {
			cancel()
			return errors.New("broken pipe")
		}
		return nil
	}

	err := consume(ctx, "test", recv, send, metrics, zerolog.Nop())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, calls)

	require.Eventually(t, func() bool {
		return len(metrics.Measurement("output.sent")) == 2
	}, time.Second, 10*time.Millisecond)
}

type fakeKafkaWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	f.msgs = append(f.msgs, msgs...)
	f.mu.Unlock()
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestKafkaOutput(t *testing.T) {
	w := &fakeKafkaWriter{}
	o := newKafkaOutput(w, &util.MockWriteAPI{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	o.Receive() <- testReading()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.msgs) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.True(t, w.closed)

	msg := w.msgs[0]
	require.Equal(t, "TIC_PULSES_V2/12345678", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", payload["id"])
	require.Equal(t, "TIC_PULSES_V2", payload["protocol"])
	fields := payload["fields"].(map[string]interface{})
	require.Equal(t, float64(0x12345678), fields["id"])
}

func TestNewOutputsValidateConfig(t *testing.T) {
	_, err := NewKafkaOutput(config.KafkaOutput{Topic: "t"}, &util.MockWriteAPI{})
	require.Error(t, err)
	_, err = NewRedisOutput(config.RedisOutput{}, &util.MockWriteAPI{})
	require.Error(t, err)
	_, err = NewMQTTOutput(config.MQTTOutput{Broker: "tcp://localhost:1883"}, &util.MockWriteAPI{})
	require.Error(t, err)
}

func TestDeviceHash(t *testing.T) {
	key, values := deviceHash("meters:", testReading())
	require.Equal(t, "meters:TIC_PULSES_V2:12345678", key)
	require.Equal(t, uint32(0x12345678), values["id"])
	require.Equal(t, uint32(1), values["battery_ok"])
	require.Equal(t, "2024-03-01T12:00:00Z", values["timestamp"])
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", values["reading_id"])
}

func TestMQTTClientOptions(t *testing.T) {
	o, err := NewMQTTOutput(config.MQTTOutput{
		Broker:     "tcp://localhost:1883",
		TopicOut:   "/RFLink/msg",
		LWTEnabled: true,
		TopicLWT:   "/RFLink/lwt",
		QoS:        1,
	}, &util.MockWriteAPI{})
	require.NoError(t, err)

	opts, err := o.clientOptions()
	require.NoError(t, err)
	require.True(t, opts.WillEnabled)
	require.Equal(t, "/RFLink/lwt", opts.WillTopic)
	require.Equal(t, []byte(lwtOffline), opts.WillPayload)
	require.True(t, opts.WillRetained)
	require.Contains(t, opts.ClientID, "ookbridge-")
	require.Len(t, opts.Servers, 1)

	o.cfg.LWTEnabled = false
	o.cfg.ClientID = "fixed"
	opts, err = o.clientOptions()
	require.NoError(t, err)
	require.False(t, opts.WillEnabled)
	require.Equal(t, "fixed", opts.ClientID)
	require.Nil(t, opts.TLSConfig)
}

func writeTestCertificate(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "ookbridge-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certPath, keyPath
}

func TestMQTTClientOptionsTLS(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeTestCertificate(t, dir)
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))

	base := config.MQTTOutput{Broker: "ssl://localhost:8883", TopicOut: "/RFLink/msg"}

	tests := []struct {
		name    string
		tls     config.MQTTTLS
		wantErr bool
		check   func(t *testing.T, cfg *tls.Config)
	}{
		{
			name: "insecure",
			tls:  config.MQTTTLS{Enabled: true, Insecure: true},
			check: func(t *testing.T, cfg *tls.Config) {
				require.True(t, cfg.InsecureSkipVerify)
				require.Nil(t, cfg.RootCAs)
				require.Empty(t, cfg.Certificates)
			},
		},
		{
			name: "ca and client certificate",
			tls:  config.MQTTTLS{Enabled: true, CACert: certPath, ClientCert: certPath, ClientKey: keyPath},
			check: func(t *testing.T, cfg *tls.Config) {
				require.False(t, cfg.InsecureSkipVerify)
				require.NotNil(t, cfg.RootCAs)
				require.Len(t, cfg.Certificates, 1)
			},
		},
		{
			name:    "missing ca file",
			tls:     config.MQTTTLS{Enabled: true, CACert: filepath.Join(dir, "missing.pem")},
			wantErr: true,
		},
		{
			name:    "unparseable ca",
			tls:     config.MQTTTLS{Enabled: true, CACert: garbage},
			wantErr: true,
		},
		{
			name:    "key without certificate",
			tls:     config.MQTTTLS{Enabled: true, ClientKey: keyPath},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.TLS = tt.tls
			o, err := NewMQTTOutput(cfg, &util.MockWriteAPI{})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			opts, err := o.clientOptions()
			require.NoError(t, err)
			require.NotNil(t, opts.TLSConfig)
			tt.check(t, opts.TLSConfig)
		})
	}
}

func TestMQTTOutputStopsWhileConnecting(t *testing.T) {
	// nothing listens on port 1, so the connect retry loop never succeeds
	o, err := NewMQTTOutput(config.MQTTOutput{
		Broker:   "tcp://127.0.0.1:1",
		TopicOut: "/RFLink/msg",
	}, &util.MockWriteAPI{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("mqtt output did not return after cancellation")
	}
}

func TestEncodeReadingRoundTrip(t *testing.T) {
	msg, err := EncodeReading(testReading())
	require.NoError(t, err)

	pb, err := DecodeReading(msg)
	require.NoError(t, err)
	m := pb.AsMap()
	require.Equal(t, "TIC_PULSES_V2", m["protocol"])
	require.Equal(t, float64(testReading().Timestamp.UnixMilli()), m["timestamp"])
	fields := m["fields"].(map[string]interface{})
	require.Equal(t, float64(4056), fields["power"])

	_, err = DecodeReading(msg[:len(msg)-1])
	require.Error(t, err)
	_, err = DecodeReading([]byte{1})
	require.Error(t, err)
}

func TestUDPOutput(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	port := listener.LocalAddr().(*net.UDPAddr).Port
	o := NewUDPOutput([]config.OutputDestination{{Host: "127.0.0.1", Port: port}}, &util.MockWriteAPI{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Start(ctx)

	o.Receive() <- testReading()

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	pb, err := DecodeReading(buf[:n])
	require.NoError(t, err)
	require.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", pb.AsMap()["id"])
}
