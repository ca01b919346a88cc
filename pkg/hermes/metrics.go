package hermes

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcome labels.
const (
	StatusOK            = "ok"
	StatusError         = "error"
	StatusProtocolError = "protocol_error"
)

// Metrics instruments a Router. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
	ActiveSockets   prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "requests_total",
				Help:      "Total number of requests handled by the router",
			},
			[]string{"kind", "status"},
		),

		HandlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "handler_duration_seconds",
				Help:      "Handler execution time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		ActiveSockets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "active_sockets",
				Help:      "Number of socket sessions currently inside a handler",
			},
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Requests, m.HandlerDuration, m.ActiveSockets}
}

// Register adds all collectors to reg. Collectors that are already
// registered are skipped.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}

			return err
		}
	}

	return nil
}

func (m *Metrics) observeRequest(kind Kind, status string) {
	if m == nil {
		return
	}

	m.Requests.WithLabelValues(string(kind), status).Inc()
}

func (m *Metrics) observeDuration(kind Kind, d time.Duration) {
	if m == nil {
		return
	}

	m.HandlerDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) socketOpened() {
	if m == nil {
		return
	}

	m.ActiveSockets.Inc()
}

func (m *Metrics) socketClosed() {
	if m == nil {
		return
	}

	m.ActiveSockets.Dec()
}
