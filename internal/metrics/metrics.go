// Package metrics instruments tool execution, provider latency, and
// router decisions with Prometheus counters/histograms. Scoped down from
// the teacher's internal/observability.Metrics to the surfaces this
// single-process runtime actually emits: no per-channel or per-session
// counters, since messaging channels are out of scope (spec §1).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram this runtime records. A nil
// *Metrics is valid everywhere it is consumed: every Observe* method
// no-ops on a nil receiver so instrumentation stays optional.
type Metrics struct {
	toolExecutions *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	routerDecisions *prometheus.CounterVec
}

// New registers and returns a fresh Metrics. Calling it more than once
// against the default Prometheus registry panics (promauto's behavior),
// matching the teacher's NewMetrics() being a process-lifetime singleton.
func New() *Metrics {
	return &Metrics{
		toolExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrclaw_tool_executions_total",
				Help: "Total number of tool executions by tool name and status.",
			},
			[]string{"tool_name", "status"},
		),
		toolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rrclaw_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		providerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrclaw_provider_requests_total",
				Help: "Total number of provider chat requests by provider, model, and status.",
			},
			[]string{"provider", "model", "status"},
		),
		providerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rrclaw_provider_request_duration_seconds",
				Help:    "Duration of provider chat requests in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		routerDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrclaw_router_decisions_total",
				Help: "Total number of Phase 1 router decisions by outcome.",
			},
			[]string{"outcome"}, // direct | routed | clarify | degraded
		),
	}
}

// ObserveTool records one tool execution's outcome and latency.
func (m *Metrics) ObserveTool(name string, success bool, dur time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.toolExecutions.WithLabelValues(name, status).Inc()
	m.toolDuration.WithLabelValues(name).Observe(dur.Seconds())
}

// ObserveProvider records one ChatWithTools/ChatStream call's outcome and
// latency against the dialect that ultimately served it.
func (m *Metrics) ObserveProvider(provider, model string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.providerRequests.WithLabelValues(provider, model, status).Inc()
	m.providerDuration.WithLabelValues(provider, model).Observe(dur.Seconds())
}

// ObserveRouterDecision records Phase 1's outcome category.
func (m *Metrics) ObserveRouterDecision(outcome string) {
	if m == nil {
		return
	}
	m.routerDecisions.WithLabelValues(outcome).Inc()
}
