// Package metrics registers the Prometheus metrics AgentGuard exposes,
// following internal/adapter/inbound/http/metrics.go's shape: a Metrics
// struct of counters/gauges constructed once via promauto and passed into
// the components that record against it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
)

// Metrics holds every Prometheus metric AgentGuard records.
type Metrics struct {
	ToolCallsTotal      *prometheus.CounterVec
	WebhookAttemptsTotal *prometheus.CounterVec
	PendingApprovals    prometheus.Gauge
	NonceCacheSize      prometheus.Gauge
}

// New creates and registers every metric with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentguard",
				Name:      "tool_calls_total",
				Help:      "Total guarded tool calls by decision",
			},
			[]string{"tool", "decision"},
		),
		WebhookAttemptsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "agentguard",
				Name:      "webhook_attempts_total",
				Help:      "Total HITL webhook delivery attempts by outcome",
			},
			[]string{"outcome"}, // outcome=success/failure
		),
		PendingApprovals: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "agentguard",
				Name:      "pending_approvals",
				Help:      "Number of approval requests currently awaiting a decision",
			},
		),
		NonceCacheSize: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "agentguard",
				Name:      "nonce_cache_size",
				Help:      "Number of nonces currently held in the replay cache",
			},
		),
	}
}

// RecordDecision implements service.Metrics.
func (m *Metrics) RecordDecision(tool string, decision guardpolicy.Action) {
	m.ToolCallsTotal.WithLabelValues(tool, string(decision)).Inc()
}

// PendingApprovalsSet implements service.Metrics.
func (m *Metrics) PendingApprovalsSet(n int) {
	m.PendingApprovals.Set(float64(n))
}

// RecordWebhookAttempt records one webhook delivery attempt's outcome.
func (m *Metrics) RecordWebhookAttempt(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.WebhookAttemptsTotal.WithLabelValues(outcome).Inc()
}

// SetNonceCacheSize records the current nonce replay cache size.
func (m *Metrics) SetNonceCacheSize(n int) {
	m.NonceCacheSize.Set(float64(n))
}
