// Package metrics holds the prometheus collectors of the realtime hub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "im_realtime"

// Metrics methods are safe to call on a nil receiver.
type Metrics struct {
	EventsRouted      *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	PushOutcomes      *prometheus.CounterVec
	TokensInvalidated prometheus.Counter
	Connections       prometheus.Gauge
	InboundFrames     *prometheus.CounterVec
	ConsumedMessages  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsRouted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_routed_total",
			Help:      "Events routed, by kind and outcome (delivered, undelivered).",
		}, []string{"kind", "outcome"}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_deliveries_total",
			Help:      "Per-connection enqueue attempts, by result (ok, failed).",
		}, []string{"result"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications created, by kind and channel (live, push, none).",
		}, []string{"kind", "channel"}),
		PushOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_token_outcomes_total",
			Help:      "Push gateway outcomes per token.",
		}, []string{"status"}),
		TokensInvalidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_invalidated_total",
			Help:      "Device tokens removed after a permanent provider rejection.",
		}),
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Currently active live connections.",
		}),
		InboundFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_frames_total",
			Help:      "Inbound websocket frames, by action and result code.",
		}, []string{"action", "code"}),
		ConsumedMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_consumed_total",
			Help:      "Domain events consumed from the bus, by handler and result.",
		}, []string{"handler", "result"}),
	}
}

func (m *Metrics) Routed(kind string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "undelivered"
	if delivered {
		outcome = "delivered"
	}
	m.EventsRouted.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Delivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Deliveries.WithLabelValues("ok").Inc()
		return
	}
	m.Deliveries.WithLabelValues("failed").Inc()
}

func (m *Metrics) Notified(kind, channel string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, channel).Inc()
}

func (m *Metrics) PushOutcome(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.PushOutcomes.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) Invalidated(n int) {
	if m == nil || n == 0 {
		return
	}
	m.TokensInvalidated.Add(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) Inbound(action, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.InboundFrames.WithLabelValues(action, code).Inc()
}

func (m *Metrics) Consumed(handler string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ConsumedMessages.WithLabelValues(handler, result).Inc()
}
