package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxTrackedReadings = 4096

// repeatFilter drops readings identical to one already seen within the window.
// Transmitters send each frame several times; only the first copy is delivered.
type repeatFilter struct {
	window time.Duration
	seen   *expirable.LRU[string, time.Time]
}

func newRepeatFilter(window time.Duration) *repeatFilter {
	f := &repeatFilter{window: window}
	if window > 0 {
		f.seen = expirable.NewLRU[string, time.Time](maxTrackedReadings, nil, window)
	}
	return f
}

// Allow reports whether r should be delivered. A delivered reading opens a new window;
// suppressed copies do not extend it.
func (f *repeatFilter) Allow(r *Reading) bool {
	if f.seen == nil {
		return true
	}

	key := fingerprint(r)
	if first, ok := f.seen.Peek(key); ok && r.Timestamp.Sub(first) < f.window {
		return false
	}
	f.seen.Add(key, r.Timestamp)
	return true
}

func fingerprint(r *Reading) string {
	var sb strings.Builder
	sb.WriteString(r.Protocol)
	for _, field := range r.Fields {
		fmt.Fprintf(&sb, ";%s=%d", field.Name, field.Value)
	}
	return sb.String()
}
