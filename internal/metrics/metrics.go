// Package metrics holds the Prometheus collectors of the signaling relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "warpmesh"

// Drop reasons.
const (
	DropUnreachable = "unreachable"
	DropSlowPeer    = "slow_peer"
	DropMalformed   = "malformed"
)

type Metrics struct {
	Registry *prometheus.Registry

	PeersConnected prometheus.Gauge
	RoomsActive    prometheus.Gauge
	MessagesIn     *prometheus.CounterVec
	MessagesOut    *prometheus.CounterVec
	Dropped        *prometheus.CounterVec
	ProtocolErrors *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_connected",
			Help:      "Number of connected peers.",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of non-empty rooms.",
		}),
		MessagesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received from peers by type.",
		}, []string{"type"}),
		MessagesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages queued to peers by type.",
		}, []string{"type"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages that were not delivered by reason.",
		}, []string{"reason"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Ignored requests by reason.",
		}, []string{"reason"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PeersConnected,
		m.RoomsActive,
		m.MessagesIn,
		m.MessagesOut,
		m.Dropped,
		m.ProtocolErrors,
	)
	return m
}

// The helpers below accept a nil receiver so callers can run without metrics.

func (m *Metrics) Received(kind string) {
	if m != nil {
		m.MessagesIn.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Sent(kind string) {
	if m != nil {
		m.MessagesOut.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Drop(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ProtocolError(reason string) {
	if m != nil {
		m.ProtocolErrors.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SetPeers(n int) {
	if m != nil {
		m.PeersConnected.Set(float64(n))
	}
}

func (m *Metrics) SetRooms(n int) {
	if m != nil {
		m.RoomsActive.Set(float64(n))
	}
}
