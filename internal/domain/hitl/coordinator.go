package hitl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentguard/agentguard/internal/adapter/outbound/httpsender"
	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
	"github.com/agentguard/agentguard/internal/domain/guarderr"
	"github.com/agentguard/agentguard/internal/domain/security"
)

// sweepInterval is how often Coordinator checks for expired approval
// requests and decays the nonce replay cache.
const sweepInterval = 10 * time.Minute

// Metrics is the narrow surface the Coordinator needs from a metrics sink:
// one webhook-delivery-attempt counter and one nonce-cache-size gauge.
// Satisfied by internal/adapter/inbound/metrics.Metrics.
type Metrics interface {
	RecordWebhookAttempt(success bool)
	SetNonceCacheSize(n int)
}

type noopMetrics struct{}

func (noopMetrics) RecordWebhookAttempt(bool) {}
func (noopMetrics) SetNonceCacheSize(int)     {}

// Coordinator is the human-in-the-loop engine: it creates approval
// requests, dispatches the corresponding webhook, blocks callers until a
// decision or timeout arrives, and demultiplexes inbound responses that
// may arrive before or after the caller starts waiting.
type Coordinator struct {
	registry *registry
	nonces   *security.NonceCache
	envelope *security.Envelope // nil if the policy's webhook carries no security config
	sender   httpsender.HTTPSender
	logger   *slog.Logger
	metrics  Metrics
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCoordinator builds a Coordinator. envelope may be nil when the
// effective webhook configuration carries no WebhookSecurityConfig.
// metrics may be nil, in which case webhook attempts and nonce cache size
// are recorded nowhere.
func NewCoordinator(sender httpsender.HTTPSender, envelope *security.Envelope, logger *slog.Logger, metrics Metrics) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	c := &Coordinator{
		registry: newRegistry(),
		nonces:   security.NewNonceCache(),
		envelope: envelope,
		sender:   sender,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// CreateApprovalRequest registers a new pending approval and, if cfg is
// non-nil, dispatches its webhook. The entry is inserted before dispatch so
// a response racing ahead of the HTTP round trip is still captured as an
// early response. If the webhook dispatch itself fails (retries exhausted),
// the entry is removed and the error returned; no caller should ever wait
// on a request whose webhook never reached the approver. A nil cfg means no
// webhook is configured for this call (neither the policy nor the guard
// supplied one); the request is still registered and a caller can resolve
// it by another externally-delivered means, e.g. CancelApproval or a
// manually wired response path.
func (c *Coordinator) CreateApprovalRequest(ctx context.Context, call guardpolicy.ToolCall, cfg *guardpolicy.WebhookConfig) (ApprovalRequest, error) {
	now := c.now()
	req := ApprovalRequest{
		ID:        uuid.NewString(),
		ToolCall:  call,
		CreatedAt: now,
		ExpiresAt: now.Add(ApprovalTTL),
	}
	c.registry.insert(req)

	if cfg == nil {
		return req, nil
	}

	if err := dispatch(ctx, c.sender, cfg, c.envelope, req, c.logger, c.metrics, c.now); err != nil {
		c.registry.remove(req.ID)
		return ApprovalRequest{}, err
	}
	return req, nil
}

// WaitForApproval blocks until req is resolved, the request expires, or
// ctx is cancelled. A result stored before the waiter attached is returned
// immediately without waiting on the channel (invariant 10).
func (c *Coordinator) WaitForApproval(ctx context.Context, req ApprovalRequest) (HITLResult, error) {
	entry, early, found := c.registry.attachWaiter(req.ID)
	if !found {
		return HITLResult{}, &guarderr.UnknownRequestIDError{RequestID: req.ID}
	}
	if early != nil {
		return early.result, early.err
	}

	deadline := req.ExpiresAt
	var timer *time.Timer
	if !deadline.IsZero() {
		timer = time.NewTimer(time.Until(deadline))
		defer timer.Stop()
	}

	select {
	case out := <-entry.resultCh:
		return out.result, out.err
	case <-ctx.Done():
		c.registry.removeIfPresent(req.ID)
		return HITLResult{}, ctx.Err()
	case <-timerC(timer):
		c.registry.removeIfPresent(req.ID)
		return HITLResult{}, &guarderr.ApprovalTimeoutError{RequestID: req.ID}
	}
}

// timerC returns t.C, or a nil channel (which blocks forever in a select)
// if t is nil, i.e. the request carries no expiry.
func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// HandleApprovalResponse looks up the pending entry first, so a response
// for an id that is unknown or already gone — expired, cancelled, or
// simply never created — is rejected before any security check runs and
// before any nonce is consumed. Only once the entry is confirmed to exist
// does it validate the security envelope (missing headers, then
// request-id match, then signature, then nonce replay, in that fixed
// order) and resolve the matching pending entry.
func (c *Coordinator) HandleApprovalResponse(resp ApprovalResponse, body []byte, headers security.Headers) error {
	entry := c.registry.get(resp.RequestID)
	if entry == nil {
		return &guarderr.UnknownRequestIDError{RequestID: resp.RequestID}
	}

	if c.envelope != nil {
		result := c.envelope.ValidateResponse(body, headers, resp.RequestID, c.now())
		if !result.Valid {
			if result.Reason == "Request ID mismatch" {
				return &guarderr.RequestIDMismatchError{Expected: resp.RequestID, Got: headers.RequestID}
			}
			return &guarderr.InvalidSignatureError{Reason: result.Reason}
		}
		if c.nonces.CheckAndRecord(headers.Nonce, c.now()) {
			return &guarderr.DuplicateNonceError{Nonce: headers.Nonce}
		}
	}

	responseTimeMs := c.now().Sub(entry.request.CreatedAt).Milliseconds()
	result := HITLResult{
		Approved:       resp.Decision == DecisionApprove,
		Reason:         resp.Reason,
		ApprovedBy:     resp.ApprovedBy,
		ResponseTimeMs: responseTimeMs,
	}
	c.registry.resolve(resp.RequestID, result)
	return nil
}

// CancelApproval fails a still-pending request's waiter with
// ApprovalCancelledError, e.g. because the caller's context was cancelled
// upstream of WaitForApproval. This is a distinct terminal outcome from an
// approver's Deny, never delivered as a disguised HITLResult. Returns
// false if the request was already resolved or unknown.
func (c *Coordinator) CancelApproval(requestID, reason string) bool {
	return c.registry.fail(requestID, &guarderr.ApprovalCancelledError{RequestID: requestID, Reason: reason})
}

// CleanupExpiredRequests fails every entry whose deadline has passed with
// an ApprovalTimeoutError delivered on its result channel (for any waiter
// already attached) and returns how many were expired.
func (c *Coordinator) CleanupExpiredRequests() int {
	expired := c.registry.expireOlderThan(c.now())
	for _, e := range expired {
		if e.state == stateWaiting {
			e.resultCh <- outcome{err: &guarderr.ApprovalTimeoutError{RequestID: e.request.ID}}
		}
	}
	return len(expired)
}

// GetPendingApprovals returns the tool calls currently awaiting a
// decision.
func (c *Coordinator) GetPendingApprovals() []ApprovalRequest {
	entries := c.registry.snapshot()
	out := make([]ApprovalRequest, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.request)
	}
	return out
}

// Stats summarizes the coordinator's live state.
type Stats struct {
	PendingCount   int
	NonceCacheSize int
}

// GetStats reports the current pending-approval count and nonce cache
// size, for metrics export.
func (c *Coordinator) GetStats() Stats {
	return Stats{
		PendingCount:   len(c.registry.snapshot()),
		NonceCacheSize: c.nonces.Size(),
	}
}

// Destroy stops the background sweep and fails every outstanding waiter
// with a CoordinatorShutdownError. It is idempotent and safe to call more
// than once.
func (c *Coordinator) Destroy() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		for _, e := range c.registry.drainAll() {
			if e.state == stateWaiting {
				e.resultCh <- outcome{err: &guarderr.CoordinatorShutdownError{RequestID: e.request.ID}}
			}
		}
	})
}

func (c *Coordinator) sweepLoop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweepLoopOnce()
		}
	}
}

// sweepLoopOnce runs one sweep pass: expiring overdue approval requests,
// decaying the nonce replay cache, and recording the resulting nonce cache
// size. Factored out of sweepLoop so tests can trigger a pass synchronously
// instead of waiting on sweepInterval's ticker.
func (c *Coordinator) sweepLoopOnce() {
	n := c.CleanupExpiredRequests()
	if n > 0 {
		c.logger.Debug("expired pending approvals", "count", n)
	}
	if swept := c.nonces.Sweep(c.now()); swept > 0 {
		c.logger.Debug("swept stale nonces", "count", swept)
	}
	c.metrics.SetNonceCacheSize(c.nonces.Size())
}
