package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/norasector/ookbridge/pkg/ook"
)

const (
	resultAccepted     = "accepted"
	resultUnrecognized = "unrecognized"
	resultSuppressed   = "suppressed"
)

// Metrics holds the bridge's prometheus collectors. It doubles as the decoders' observer.
type Metrics struct {
	decodes    *prometheus.CounterVec // accepted captures by protocol
	rejections *prometheus.CounterVec // rejected attempts by protocol and reason
	captures   *prometheus.CounterVec // processed captures by result
	skipped    prometheus.Counter     // readings dropped because an output was full
}

// NewMetrics registers the collectors with reg, or with the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		decodes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ookbridge_decodes_total",
				Help: "Captures accepted by a decoder",
			},
			[]string{"protocol"},
		),
		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ookbridge_rejections_total",
				Help: "Decode attempts rejected, by protocol and reason",
			},
			[]string{"protocol", "reason"},
		),
		captures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ookbridge_captures_total",
				Help: "Captures processed, by result",
			},
			[]string{"result"},
		),
		skipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ookbridge_skipped_outputs_total",
				Help: "Readings not delivered because the output was busy",
			},
		),
	}
}

func (m *Metrics) Accepted(protocol string) {
	m.decodes.WithLabelValues(protocol).Inc()
}

func (m *Metrics) Rejected(protocol string, rej *ook.Rejection) {
	m.rejections.WithLabelValues(protocol, ook.ReasonTag(rej.Reason)).Inc()
}

func (m *Metrics) capture(result string) {
	m.captures.WithLabelValues(result).Inc()
}

func (m *Metrics) skippedOutputs(n int) {
	if n > 0 {
		m.skipped.Add(float64(n))
	}
}
