package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentcore/shellpilot/internal/risk"
)

// ExecutorMetrics exports the Tool Executor's operational counters to
// Prometheus: how long each tool call takes, how often a confirmation
// is rejected, and the risk-level distribution of every command the executor classifies. Grounded on
// SPEC_FULL.md's domain-stack commitment for
// github.com/prometheus/client_golang. The teacher's own metrics
// plumbing lived in its gateway/telemetry packages, all dropped as
// ungrounded chat-gateway surface, so this follows the library's own
// NewHistogramVec/NewCounterVec idiom directly.
type ExecutorMetrics struct {
	toolLatency  *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
	riskCommands *prometheus.CounterVec
}

// NewExecutorMetrics builds an ExecutorMetrics and registers its
// collectors against reg. Pass prometheus.NewRegistry() for an isolated
// registry in tests, or prometheus.DefaultRegisterer in production.
func NewExecutorMetrics(reg prometheus.Registerer) *ExecutorMetrics {
	m := &ExecutorMetrics{
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentcore",
			Subsystem: "executor",
			Name:      "tool_call_duration_seconds",
			Help:      "Latency of a single tool call dispatch, by tool name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "executor",
			Name:      "confirmation_rejections_total",
			Help:      "Confirmations the user rejected, by tool name.",
		}, []string{"tool"}),
		riskCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "executor",
			Name:      "commands_total",
			Help:      "execute_command dispatches, by risk level.",
		}, []string{"risk_level"}),
	}
	reg.MustRegister(m.toolLatency, m.rejections, m.riskCommands)
	return m
}

func (m *ExecutorMetrics) observeLatency(tool string, start time.Time) {
	if m == nil {
		return
	}
	m.toolLatency.WithLabelValues(tool).Observe(time.Since(start).Seconds())
}

func (m *ExecutorMetrics) observeRejection(tool string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(tool).Inc()
}

func (m *ExecutorMetrics) observeRiskLevel(level risk.Level) {
	if m == nil {
		return
	}
	m.riskCommands.WithLabelValues(string(level)).Inc()
}
