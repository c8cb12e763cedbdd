// Package metrics holds the Prometheus collectors of the integration engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "course_builder"

// Metrics contains every engine metric. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EnvelopesTotal   *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	QueryRejections  *prometheus.CounterVec
	PeerFallbacks    *prometheus.CounterVec
	PeerCalls        *prometheus.CounterVec
	AssemblyOutcomes *prometheus.CounterVec
	LLMCalls         *prometheus.CounterVec
}

// New creates the metrics and registers them, along with Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EnvelopesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "envelopes_total",
				Help:      "Envelopes dispatched, by target service and outcome kind",
			},
			[]string{"service", "outcome"},
		),

		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Envelope processing duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"service"},
		),

		QueryRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "query",
				Name:      "rejections_total",
				Help:      "Synthesized statements rejected before execution, by rule",
			},
			[]string{"rule"},
		),

		PeerFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "peer",
				Name:      "fallbacks_total",
				Help:      "Canned data substitutions after a transient peer failure",
			},
			[]string{"peer"},
		),

		PeerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "peer",
				Name:      "calls_total",
				Help:      "Peer exchanges, by peer and status (ok, transient, error)",
			},
			[]string{"peer", "status"},
		),

		AssemblyOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "assembly",
				Name:      "outcomes_total",
				Help:      "Course assembly runs, by final state",
			},
			[]string{"state"},
		),

		LLMCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "Completion calls, by purpose and status",
			},
			[]string{"purpose", "status"},
		),
	}

	m.registry.MustRegister(
		m.EnvelopesTotal,
		m.DispatchDuration,
		m.QueryRejections,
		m.PeerFallbacks,
		m.PeerCalls,
		m.AssemblyOutcomes,
		m.LLMCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEnvelope counts a dispatched envelope and observes its duration.
func (m *Metrics) RecordEnvelope(service, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.EnvelopesTotal.WithLabelValues(service, outcome).Inc()
	m.DispatchDuration.WithLabelValues(service).Observe(d.Seconds())
}

// RecordQueryRejection counts a statement rejected by rule.
func (m *Metrics) RecordQueryRejection(rule string) {
	if m == nil {
		return
	}
	m.QueryRejections.WithLabelValues(rule).Inc()
}

// RecordPeerCall counts a peer exchange.
func (m *Metrics) RecordPeerCall(peer, status string) {
	if m == nil {
		return
	}
	m.PeerCalls.WithLabelValues(peer, status).Inc()
}

// RecordFallback counts a canned data substitution for a peer.
func (m *Metrics) RecordFallback(peer string) {
	if m == nil {
		return
	}
	m.PeerFallbacks.WithLabelValues(peer).Inc()
}

// RecordAssembly counts an assembly run by its final state.
func (m *Metrics) RecordAssembly(state string) {
	if m == nil {
		return
	}
	m.AssemblyOutcomes.WithLabelValues(state).Inc()
}

// RecordLLMCall counts a completion call.
func (m *Metrics) RecordLLMCall(purpose string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMCalls.WithLabelValues(purpose, status).Inc()
}
