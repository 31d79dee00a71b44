// Package metrics exposes the prometheus collectors of the room service and relay.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	roomsCreated     prometheus.Counter
	roomsSwept       prometheus.Counter
	sweepFailures    prometheus.Counter
	signalsForwarded *prometheus.CounterVec
	signalsDropped   *prometheus.CounterVec
	sessions         prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle", Name: "rooms_created_total",
			Help: "Rooms successfully created.",
		}),
		roomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle", Name: "rooms_swept_total",
			Help: "Expired rooms removed by the sweeper.",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle", Name: "sweep_failures_total",
			Help: "Sweeps that returned an error.",
		}),
		signalsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle", Subsystem: "relay", Name: "signals_forwarded_total",
			Help: "Handshake frames delivered to a peer send buffer.",
		}, []string{"kind"}),
		signalsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle", Subsystem: "relay", Name: "signals_dropped_total",
			Help: "Inbound or outbound frames dropped by the relay.",
		}, []string{"reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle", Subsystem: "relay", Name: "sessions",
			Help: "Live relay connections.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.roomsCreated, m.roomsSwept, m.sweepFailures,
		m.signalsForwarded, m.signalsDropped, m.sessions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomCreated() {
	if m != nil {
		m.roomsCreated.Inc()
	}
}

func (m *Metrics) Swept(n int) {
	if m != nil {
		m.roomsSwept.Add(float64(n))
	}
}

func (m *Metrics) SweepFailed() {
	if m != nil {
		m.sweepFailures.Inc()
	}
}

func (m *Metrics) Forwarded(kind string, n int) {
	if m != nil && n > 0 {
		m.signalsForwarded.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.signalsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}
