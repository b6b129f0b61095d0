// Package service wires the Evaluator, HITL Coordinator, and Security
// Envelope into the Guard orchestrator that application code embeds.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/agentguard/agentguard/internal/adapter/outbound/httpsender"
	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
	"github.com/agentguard/agentguard/internal/domain/guarderr"
	"github.com/agentguard/agentguard/internal/domain/hitl"
	"github.com/agentguard/agentguard/internal/domain/security"
	"github.com/agentguard/agentguard/internal/domain/value"
)

// Tool is the calling convention for a guarded function: one structured
// parameter map in, one value-or-error out.
type Tool func(ctx context.Context, params map[string]value.Value) (any, error)

// ProtectedTool wraps a Tool with the full policy/approval pipeline.
// isGuarded and underlying are set once at construction and never mutated;
// there is no setter, so the only way to change them is to build a new
// ProtectedTool.
type ProtectedTool struct {
	isGuarded  bool
	underlying Tool
	call       Tool
}

// IsGuarded reports whether this tool is wrapped by Guard.Protect.
func (p *ProtectedTool) IsGuarded() bool { return p.isGuarded }

// Underlying returns the original, unwrapped tool.
func (p *ProtectedTool) Underlying() Tool { return p.underlying }

// Call runs the full pipeline: evaluation, then Allow/Block/RequireApproval
// handling, then (if permitted) the underlying tool.
func (p *ProtectedTool) Call(ctx context.Context, params map[string]value.Value) (any, error) {
	return p.call(ctx, params)
}

// PolicySource is either an inline policy or a file path to load one from.
// Exactly one must be set.
type PolicySource struct {
	Inline *guardpolicy.Policy
	Path   string
}

// PolicyLoader loads and validates a policy document from a file path.
// Satisfied by *internal/adapter/outbound/policyfile.Loader.
type PolicyLoader interface {
	Load(path string) (*guardpolicy.Policy, error)
}

// Config configures a Guard.
type Config struct {
	PolicySource PolicySource
	PolicyLoader PolicyLoader

	// Webhook is the config-level fallback used when the loaded policy
	// declares none.
	Webhook *guardpolicy.WebhookConfig

	Sender  httpsender.HTTPSender
	Logger  *slog.Logger
	Metrics Metrics
}

// Metrics is the narrow surface Guard and the HITL Coordinator need from
// the metrics adapter; the real implementation is
// internal/adapter/inbound/metrics.Metrics. It embeds hitl.Metrics so the
// same sink covers webhook-attempt and nonce-cache-size recording as well
// as tool-call decisions and pending-approval count.
type Metrics interface {
	RecordDecision(tool string, decision guardpolicy.Action)
	PendingApprovalsSet(n int)
	hitl.Metrics
}

type noopMetrics struct{}

func (noopMetrics) RecordDecision(string, guardpolicy.Action) {}
func (noopMetrics) PendingApprovalsSet(int)                   {}
func (noopMetrics) RecordWebhookAttempt(bool)                 {}
func (noopMetrics) SetNonceCacheSize(int)                     {}

// Guard is the orchestrator applications embed: it loads a policy once,
// evaluates every guarded call against it, and coordinates human approval
// when a rule requires it.
type Guard struct {
	cfg Config

	policy atomic.Pointer[guardpolicy.Policy]
	eval   atomic.Pointer[guardpolicy.Evaluator]

	coordinator *hitl.Coordinator
	webhook     *guardpolicy.WebhookConfig // effective webhook, resolved at Initialize

	logger      *slog.Logger
	metrics     Metrics
	initialized atomic.Bool
}

// New builds a Guard. Call Initialize before protecting any tool.
func New(cfg Config) *Guard {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Sender == nil {
		cfg.Sender = httpsender.NewClient()
	}
	return &Guard{cfg: cfg, logger: cfg.Logger, metrics: cfg.Metrics}
}

// Initialize loads the policy, builds the Evaluator, and binds the HITL
// coordinator to the effective webhook configuration. Idempotent: calling
// it again reloads the policy in place (see ReloadPolicy for the
// file-only, re-validated form).
func (g *Guard) Initialize() error {
	policy, err := g.loadPolicy()
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return &guarderr.PolicyLoadError{Path: g.cfg.PolicySource.Path, Cause: err}
	}

	effective := policy.Webhook
	if effective == nil {
		effective = g.cfg.Webhook
	}
	g.webhook = effective

	var envelope *security.Envelope
	if effective != nil && effective.Security != nil {
		envelope, err = security.New(effective.Security.SigningSecret, effective.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("service: building security envelope: %w", err)
		}
	}

	if g.coordinator != nil {
		g.coordinator.Destroy()
	}
	g.coordinator = hitl.NewCoordinator(g.cfg.Sender, envelope, g.logger, g.metrics)

	g.policy.Store(policy)
	g.eval.Store(guardpolicy.NewEvaluator(policy, g.logger))
	g.initialized.Store(true)
	return nil
}

func (g *Guard) loadPolicy() (*guardpolicy.Policy, error) {
	if g.cfg.PolicySource.Inline != nil {
		return g.cfg.PolicySource.Inline, nil
	}
	if g.cfg.PolicySource.Path == "" {
		return nil, fmt.Errorf("service: guard config must set PolicySource.Inline or PolicySource.Path")
	}
	if g.cfg.PolicyLoader == nil {
		return nil, fmt.Errorf("service: guard config with PolicySource.Path requires a PolicyLoader")
	}
	return g.cfg.PolicyLoader.Load(g.cfg.PolicySource.Path)
}

// ReloadPolicy re-reads the policy from disk and atomically swaps it in.
// Only valid when the Guard was configured with a file path; in-flight
// evaluations continue against whichever snapshot they already observed.
func (g *Guard) ReloadPolicy() error {
	if g.cfg.PolicySource.Path == "" {
		return fmt.Errorf("service: ReloadPolicy requires a file-based PolicySource")
	}
	policy, err := g.cfg.PolicyLoader.Load(g.cfg.PolicySource.Path)
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return &guarderr.PolicyLoadError{Path: g.cfg.PolicySource.Path, Cause: err}
	}
	g.policy.Store(policy)
	g.eval.Store(guardpolicy.NewEvaluator(policy, g.logger))
	return nil
}

// ProtectOptions carries the optional context attached to every call made
// through a protected tool.
type ProtectOptions struct {
	AgentID   string
	SessionID string
	Metadata  map[string]any
}

// Protect wraps tool under name with the full evaluate/approve/invoke
// pipeline. It fails with guarderr.ErrInvalidArgument if name is empty or
// tool is nil.
func (g *Guard) Protect(name string, tool Tool, opts ProtectOptions) (*ProtectedTool, error) {
	if isBlank(name) || tool == nil {
		return nil, guarderr.ErrInvalidArgument
	}
	pt := &ProtectedTool{isGuarded: true, underlying: tool}
	pt.call = func(ctx context.Context, params map[string]value.Value) (any, error) {
		return g.run(ctx, name, tool, params, opts)
	}
	return pt, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}

func (g *Guard) run(ctx context.Context, name string, tool Tool, params map[string]value.Value, opts ProtectOptions) (any, error) {
	if !g.initialized.Load() {
		return nil, guarderr.ErrNotInitialized
	}

	call, err := guardpolicy.NewToolCall(guardpolicy.ToolCallInput{
		ToolName:   name,
		Parameters: value.ObjectToMap(params),
		AgentID:    opts.AgentID,
		SessionID:  opts.SessionID,
		Metadata:   opts.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	decision := g.eval.Load().Decide(call)
	g.metrics.RecordDecision(name, decision.Action)
	g.logger.Info("policy decision",
		"tool", name, "decision", decision.Action, "rule", ruleName(decision.MatchedRule),
		"agent_id", opts.AgentID, "session_id", opts.SessionID)

	switch decision.Action {
	case guardpolicy.ActionAllow:
		return tool(ctx, params)
	case guardpolicy.ActionBlock:
		return nil, &guarderr.PolicyViolationError{ToolName: name, RuleName: ruleName(decision.MatchedRule), Reason: decision.Reason}
	case guardpolicy.ActionRequireApproval:
		return g.runWithApproval(ctx, name, tool, params, call, decision)
	default:
		return nil, fmt.Errorf("service: unrecognized decision action %q", decision.Action)
	}
}

func (g *Guard) runWithApproval(ctx context.Context, name string, tool Tool, params map[string]value.Value, call guardpolicy.ToolCall, decision guardpolicy.Decision) (any, error) {
	req, err := g.coordinator.CreateApprovalRequest(ctx, call, g.webhook)
	if err != nil {
		return nil, err
	}
	g.metrics.PendingApprovalsSet(len(g.coordinator.GetPendingApprovals()))
	defer func() { g.metrics.PendingApprovalsSet(len(g.coordinator.GetPendingApprovals())) }()

	result, err := g.coordinator.WaitForApproval(ctx, req)
	if err != nil {
		return nil, err
	}
	if !result.Approved {
		return nil, &guarderr.PolicyViolationError{ToolName: name, RuleName: ruleName(decision.MatchedRule), Reason: result.Reason}
	}
	return tool(ctx, params)
}

func ruleName(r *guardpolicy.Rule) string {
	if r == nil {
		return "default"
	}
	return r.Name
}

// Coordinator exposes the underlying HITL coordinator for callers that
// need to deliver an inbound approval response (e.g. an HTTP handler).
func (g *Guard) Coordinator() *hitl.Coordinator { return g.coordinator }

// Destroy releases the Guard's background resources (the HITL
// coordinator's nonce-sweep goroutine).
func (g *Guard) Destroy() {
	if g.coordinator != nil {
		g.coordinator.Destroy()
	}
}
