package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/bridge/config"
)

// UDPOutput sends every reading as a protobuf Struct to each destination. Each datagram
// carries a little endian uint16 length followed by the encoded message.
type UDPOutput struct {
	dests     []config.OutputDestination
	destAddrs []*net.UDPAddr
	conn      *net.UDPConn
	recvChan  chan *bridge.Reading
	metrics   api.WriteAPI
	logger    zerolog.Logger
}

func NewUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *UDPOutput {
	return &UDPOutput{
		dests:    dests,
		recvChan: make(chan *bridge.Reading, receiveChannels),
		metrics:  metrics,
		logger:   log.Logger,
	}
}

func (s *UDPOutput) Receive() chan<- *bridge.Reading {
	return s.recvChan
}

func (s *UDPOutput) Start(ctx context.Context) error {
	s.destAddrs = make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		s.destAddrs = append(s.destAddrs, destAddr)
		s.logger.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("udp output starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	return consume(ctx, "udp", s.recvChan, s.send, s.metrics, s.logger)
}

func (s *UDPOutput) send(_ context.Context, r *bridge.Reading) error {
	msg, err := EncodeReading(r)
	if err != nil {
		return err
	}

	var lastErr error
	for _, destAddr := range s.destAddrs {
		if _, err := s.conn.WriteToUDP(msg, destAddr); err != nil {
			s.logger.Error().Err(err).Str("dest", destAddr.String()).Msg("error writing")
			lastErr = err
		}
	}
	return lastErr
}

// ReadingStruct converts r to a protobuf Struct.
func ReadingStruct(r *bridge.Reading) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"id":        r.ID.String(),
		"timestamp": r.Timestamp.UnixMilli(),
		"protocol":  r.Protocol,
		"fields":    r.Fields.Map(),
	})
}

// EncodeReading returns the length prefixed datagram for r.
func EncodeReading(r *bridge.Reading) ([]byte, error) {
	pb, err := ReadingStruct(r)
	if err != nil {
		return nil, err
	}

	encoded, err := proto.Marshal(pb)
	if err != nil {
		return nil, fmt.Errorf("error marshaling protobuf: %w", err)
	}
	if len(encoded) > math.MaxUint16 {
		return nil, fmt.Errorf("encoded reading is %d bytes", len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, fmt.Errorf("error encoding header size: %w", err)
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

// DecodeReading parses a datagram produced by EncodeReading.
func DecodeReading(msg []byte) (*structpb.Struct, error) {
	if len(msg) < 2 {
		return nil, fmt.Errorf("datagram too short")
	}
	n := int(binary.LittleEndian.Uint16(msg))
	if len(msg)-2 < n {
		return nil, fmt.Errorf("datagram truncated: header says %d, have %d", n, len(msg)-2)
	}

	pb := &structpb.Struct{}
	if err := proto.Unmarshal(msg[2:2+n], pb); err != nil {
		return nil, err
	}
	return pb, nil
}
