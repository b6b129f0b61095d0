package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	if m.ToolCallsTotal == nil {
		t.Error("ToolCallsTotal not initialized")
	}
	if m.WebhookAttemptsTotal == nil {
		t.Error("WebhookAttemptsTotal not initialized")
	}
	if m.PendingApprovals == nil {
		t.Error("PendingApprovals not initialized")
	}
	if m.NonceCacheSize == nil {
		t.Error("NonceCacheSize not initialized")
	}
}

func TestRecordDecisionIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordDecision("transfer_funds", guardpolicy.ActionBlock)
	count := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("transfer_funds", "block"))
	if count != 1 {
		t.Errorf("ToolCallsTotal = %v, want 1", count)
	}
}

func TestPendingApprovalsSetUpdatesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PendingApprovalsSet(3)
	if got := testutil.ToFloat64(m.PendingApprovals); got != 3 {
		t.Errorf("PendingApprovals = %v, want 3", got)
	}
}

func TestRecordWebhookAttemptAndNonceCacheSize(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordWebhookAttempt(true)
	m.RecordWebhookAttempt(false)
	if got := testutil.ToFloat64(m.WebhookAttemptsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WebhookAttemptsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure attempts = %v, want 1", got)
	}

	m.SetNonceCacheSize(42)
	if got := testutil.ToFloat64(m.NonceCacheSize); got != 42 {
		t.Errorf("NonceCacheSize = %v, want 42", got)
	}
}
