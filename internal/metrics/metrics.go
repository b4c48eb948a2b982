// Package metrics holds the prometheus collectors exported by the sidecar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hscs"

// Result label values.
const (
	ResultOK       = "ok"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
	ResultDropped  = "dropped"

	// ResultSuperseded marks a delta skipped because a re-registration replaced it.
	ResultSuperseded = "superseded"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Heartbeats    *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Deltas        *prometheus.CounterVec
	Registered    prometheus.Gauge
	RosterSize    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Directory pings by result.",
		}, []string{"result"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Register calls by result.",
		}, []string{"result"}),
		Deltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roster_deltas_total",
			Help:      "add_client/remove_client calls by operation and result.",
		}, []string{"op", "result"}),
		Registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered",
			Help:      "1 while the server is registered with the directory.",
		}),
		RosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "roster_clients",
			Help:      "Clients currently held in the local roster.",
		}),
	}
	reg.MustRegister(m.Heartbeats, m.Registrations, m.Deltas, m.Registered, m.RosterSize)
	return m
}

func (m *Metrics) Heartbeat(result string) {
	if m == nil {
		return
	}
	m.Heartbeats.WithLabelValues(result).Inc()
}

func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) Delta(op, result string) {
	if m == nil {
		return
	}
	m.Deltas.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetRegistered(v bool) {
	if m == nil {
		return
	}
	if v {
		m.Registered.Set(1)
	} else {
		m.Registered.Set(0)
	}
}

func (m *Metrics) SetRosterSize(n int) {
	if m == nil {
		return
	}
	m.RosterSize.Set(float64(n))
}
