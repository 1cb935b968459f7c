package capture

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/norasector/ookbridge/pkg/ook"
)

const pulsesKey = "Pulses(uSec)="

// ParseLine reads one capture from either an RFLink debug line
// (20;XX;DEBUG;Pulses=N;Pulses(uSec)=a,b,c;) or a bare comma separated list of durations.
func ParseLine(line string) (*ook.CaptureBuffer, error) {
	line = strings.TrimSpace(line)
	if idx := strings.Index(line, pulsesKey); idx >= 0 {
		line = line[idx+len(pulsesKey):]
		if end := strings.IndexByte(line, ';'); end >= 0 {
			line = line[:end]
		}
	}
	line = strings.TrimSuffix(line, ";")
	if line == "" {
		return nil, fmt.Errorf("no pulses")
	}

	fields := strings.Split(line, ",")
	if len(fields) > ook.CaptureCapacity {
		return nil, fmt.Errorf("%d pulses exceed capture capacity %d", len(fields), ook.CaptureCapacity)
	}

	buf := &ook.CaptureBuffer{}
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("pulse %d: %w", i+1, err)
		}
		if v == 0 {
			return nil, fmt.Errorf("pulse %d: zero duration", i+1)
		}
		buf.Append(uint16(v))
	}
	return buf, nil
}

// FormatLine renders pulses as an RFLink debug line.
func FormatLine(seq byte, pulses []uint16) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "20;%02X;DEBUG;Pulses=%d;%s", seq, len(pulses), pulsesKey)
	for i, p := range pulses {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(p)))
	}
	sb.WriteByte(';')
	return sb.String()
}
