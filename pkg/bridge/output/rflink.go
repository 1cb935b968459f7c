package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/bridge"
	"github.com/norasector/ookbridge/pkg/ook"
)

// RFLinkLineOutput writes readings as RFLink gateway lines:
//
//	20;0B;TIC_PULSES_V2;ID=12345678;KWATT=00123456;BAT=OK;
//
// Only fields carrying a display key are printed.
type RFLinkLineOutput struct {
	dest     io.Writer
	recvChan chan *bridge.Reading
	seq      byte
	metrics  api.WriteAPI
	logger   zerolog.Logger
}

func NewRFLinkLineOutput(dest io.Writer, metrics api.WriteAPI) *RFLinkLineOutput {
	return &RFLinkLineOutput{
		dest:     dest,
		recvChan: make(chan *bridge.Reading, receiveChannels),
		metrics:  metrics,
		logger:   log.Logger,
	}
}

func (o *RFLinkLineOutput) Receive() chan<- *bridge.Reading {
	return o.recvChan
}

func (o *RFLinkLineOutput) Start(ctx context.Context) error {
	return consume(ctx, "rflink", o.recvChan, o.send, o.metrics, o.logger)
}

func (o *RFLinkLineOutput) send(_ context.Context, r *bridge.Reading) error {
	line := FormatRFLink(o.seq, r)
	o.seq++
	_, err := io.WriteString(o.dest, line+"\r\n")
	return err
}

// FormatRFLink renders r with sequence number seq.
func FormatRFLink(seq byte, r *bridge.Reading) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "20;%02X;%s;", seq, r.Protocol)
	for _, f := range r.Fields {
		if f.Display.Key == "" || f.Display.Kind == ook.DisplayNone {
			continue
		}
		fmt.Fprintf(&sb, "%s=%s;", f.Display.Key, formatValue(f))
	}
	return sb.String()
}

func formatValue(f ook.Field) string {
	switch f.Display.Kind {
	case ook.DisplayHex:
		return fmt.Sprintf("%0*x", f.Display.Width, f.Value)
	case ook.DisplayBattery:
		if f.Value != 0 {
			return "OK"
		}
		return "LOW"
	default:
		return fmt.Sprintf("%d", f.Value)
	}
}
