package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK             = "ok"
	outcomeAPIError       = "api_error"
	outcomeTransportError = "transport_error"
	outcomeDecodeError    = "decode_error"
)

// Metrics records API call counts and latency. A nil *Metrics records
// nothing.
type Metrics struct {
	calls         *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	invalidations prometheus.Counter
}

// NewMetrics registers the client's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbclient_api_calls_total",
				Help: "Total number of API calls",
			},
			[]string{"alias", "kind", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fbclient_api_call_duration_seconds",
				Help:    "API call transport duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"alias", "kind"},
		),
		invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fbclient_session_invalidations_total",
				Help: "Sessions cleared because the API rejected the access token",
			},
		),
	}
}

func (m *Metrics) observeOutcome(alias string, kind string, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(alias, kind, outcome).Inc()
}

func (m *Metrics) observeDuration(alias string, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(alias, kind).Observe(d.Seconds())
}

func (m *Metrics) sessionInvalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
