package decoder

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/norasector/ookbridge/pkg/ook"
)

// Plugin is the contract between the dispatcher and a decoder. Decode returns true and
// consumes buf only when it accepted the capture; otherwise buf must be left bit for bit
// identical.
type Plugin interface {
	Name() string
	Decode(buf *ook.CaptureBuffer) bool
}

type pluginFunc struct {
	name string
	fn   func(*ook.CaptureBuffer) bool
}

func (p pluginFunc) Name() string                       { return p.name }
func (p pluginFunc) Decode(buf *ook.CaptureBuffer) bool { return p.fn(buf) }

// PluginFunc adapts a plain decode function to a Plugin.
func PluginFunc(name string, fn func(*ook.CaptureBuffer) bool) Plugin {
	return pluginFunc{name: name, fn: fn}
}

type registered struct {
	plugin   Plugin
	priority int
	seq      int
}

// Registry is an ordered set of plugins. Lower priority values are tried first; equal
// priorities keep registration order.
type Registry struct {
	entries []registered
	logger  zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{logger: log.Logger}
}

func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.logger = logger
}

func (r *Registry) Register(p Plugin, priority int) {
	r.entries = append(r.entries, registered{plugin: p, priority: priority, seq: len(r.entries)})
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].priority != r.entries[j].priority {
			return r.entries[i].priority < r.entries[j].priority
		}
		return r.entries[i].seq < r.entries[j].seq
	})
}

// Plugins returns the plugins in dispatch order.
func (r *Registry) Plugins() []Plugin {
	ret := make([]Plugin, 0, len(r.entries))
	for _, e := range r.entries {
		ret = append(ret, e.plugin)
	}
	return ret
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Dispatch offers buf to each plugin in order and stops at the first that accepts it.
// It returns the accepting plugin's name.
func (r *Registry) Dispatch(buf *ook.CaptureBuffer) (string, bool) {
	return Dispatch(buf, r.Plugins(), r.logger)
}

// Dispatch offers buf to plugins in the given order. A consumed buffer is never offered again.
func Dispatch(buf *ook.CaptureBuffer, plugins []Plugin, logger zerolog.Logger) (string, bool) {
	if buf.Number == 0 {
		return "", false
	}

	for _, p := range plugins {
		if p.Decode(buf) {
			return p.Name(), true
		}

		if buf.Consumed() {
			logger.Warn().Str("protocol", p.Name()).Msg("plugin consumed a capture it rejected")
			return "", false
		}
	}

	return "", false
}
