// Package metrics exposes Prometheus counters for the intake flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IntakeMetrics is safe to use as a nil pointer; every method is a no-op then.
type IntakeMetrics struct {
	eventsTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	relayTotal       *prometheus.CounterVec
	webhookTotal     *prometheus.CounterVec
	handleLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Subsystem: "intake",
			Name:      "events_total",
			Help:      "Inbound chat events by kind and outcome",
		}, []string{"kind", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Subsystem: "intake",
			Name:      "transitions_total",
			Help:      "Stage transitions",
		}, []string{"from", "to"}),
		relayTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Subsystem: "relay",
			Name:      "deliveries_total",
			Help:      "Operator deliveries by sink and outcome",
		}, []string{"sink", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ari",
			Subsystem: "calendar",
			Name:      "webhooks_total",
			Help:      "Calendar webhooks by outcome",
		}, []string{"status"}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ari",
			Subsystem: "intake",
			Name:      "handle_seconds",
			Help:      "Time spent handling one chat event",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.transitionsTotal, m.relayTotal, m.webhookTotal, m.handleLatency)
	return m
}

// NewWithHandler registers on a fresh registry and returns the matching
// exposition handler.
func NewWithHandler() (*IntakeMetrics, http.Handler) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *IntakeMetrics) ObserveEvent(kind, status string, seconds float64) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind, status).Inc()
	m.handleLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *IntakeMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *IntakeMetrics) ObserveRelay(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.relayTotal.WithLabelValues(sink, status).Inc()
}

func (m *IntakeMetrics) ObserveWebhook(status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(status).Inc()
}
