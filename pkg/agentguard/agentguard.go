// Package agentguard is the public facade for embedding AgentGuard in a Go
// agent program. It re-exports the orchestrator, policy, and error types a
// host application needs to wrap its tool functions, without requiring an
// import of any internal/ package.
//
// Quick start:
//
//	guard := agentguard.New(agentguard.WithPolicyFile("policy.yaml"))
//	if err := guard.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer guard.Destroy()
//
//	deleteFile, err := guard.Protect("delete_file", func(ctx context.Context, params map[string]agentguard.Value) (any, error) {
//	    return nil, os.Remove(params["path"].Interface().(string))
//	}, agentguard.ProtectOptions{AgentID: "agent-1"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := deleteFile.Call(ctx, params); err != nil {
//	    var violation *agentguard.PolicyViolationError
//	    if errors.As(err, &violation) {
//	        fmt.Printf("blocked by rule %s: %s\n", violation.RuleName, violation.Reason)
//	    }
//	}
package agentguard

import (
	"github.com/agentguard/agentguard/internal/adapter/outbound/policyfile"
	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
	"github.com/agentguard/agentguard/internal/domain/guarderr"
	"github.com/agentguard/agentguard/internal/domain/value"
	"github.com/agentguard/agentguard/internal/service"
)

// Guard is the orchestrator applications embed: it loads a policy once,
// evaluates every guarded call against it, and coordinates human approval
// when a rule requires it.
type Guard = service.Guard

// Tool is the calling convention for a guarded function.
type Tool = service.Tool

// ProtectedTool wraps a Tool with the full policy/approval pipeline.
type ProtectedTool = service.ProtectedTool

// ProtectOptions carries the optional context attached to every call made
// through a protected tool.
type ProtectOptions = service.ProtectOptions

// Metrics is the narrow surface a metrics sink must implement to be passed
// to WithMetrics; internal/adapter/inbound/metrics.Metrics satisfies it.
type Metrics = service.Metrics

// Value is the dynamically-typed JSON value guarded tool parameters are
// expressed in.
type Value = value.Value

// Policy, Rule, Condition, and the supporting enums describe a loaded
// policy document. Action and Operator are re-exported so callers can
// build an inline Policy without importing internal/domain/guardpolicy.
type (
	Policy                = guardpolicy.Policy
	Rule                  = guardpolicy.Rule
	Condition             = guardpolicy.Condition
	Action                = guardpolicy.Action
	Operator              = guardpolicy.Operator
	WebhookConfig         = guardpolicy.WebhookConfig
	WebhookSecurityConfig = guardpolicy.WebhookSecurityConfig
	ToolCall              = guardpolicy.ToolCall
	Decision              = guardpolicy.Decision
)

// Decision actions, re-exported for building inline policies.
const (
	ActionAllow           = guardpolicy.ActionAllow
	ActionBlock           = guardpolicy.ActionBlock
	ActionRequireApproval = guardpolicy.ActionRequireApproval
)

// Condition operators, re-exported for building inline policies.
const (
	OpEquals     = guardpolicy.OpEquals
	OpContains   = guardpolicy.OpContains
	OpStartsWith = guardpolicy.OpStartsWith
	OpEndsWith   = guardpolicy.OpEndsWith
	OpRegex      = guardpolicy.OpRegex
	OpIn         = guardpolicy.OpIn
	OpGT         = guardpolicy.OpGT
	OpLT         = guardpolicy.OpLT
	OpGTE        = guardpolicy.OpGTE
	OpLTE        = guardpolicy.OpLTE
)

// Sentinel errors for use with errors.Is(). See internal/domain/guarderr
// for the typed struct errors (PolicyViolationError, ApprovalTimeoutError,
// WebhookFailedError, and friends) carrying the structured fields behind
// each of these.
var (
	ErrNotInitialized    = guarderr.ErrNotInitialized
	ErrInvalidArgument   = guarderr.ErrInvalidArgument
	ErrPolicyLoadError   = guarderr.ErrPolicyLoadError
	ErrPolicyViolation   = guarderr.ErrPolicyViolation
	ErrApprovalTimeout   = guarderr.ErrApprovalTimeout
	ErrApprovalCancelled = guarderr.ErrApprovalCancelled
	ErrWebhookFailed     = guarderr.ErrWebhookFailed
	ErrInvalidSignature  = guarderr.ErrInvalidSignature
	ErrRequestIDMismatch = guarderr.ErrRequestIDMismatch
	ErrDuplicateNonce    = guarderr.ErrDuplicateNonce
	ErrUnknownRequestID  = guarderr.ErrUnknownRequestID
)

// Typed errors, re-exported so callers can errors.As against them without
// an internal/ import.
type (
	PolicyViolationError   = guarderr.PolicyViolationError
	ApprovalTimeoutError   = guarderr.ApprovalTimeoutError
	ApprovalCancelledError = guarderr.ApprovalCancelledError
	WebhookFailedError     = guarderr.WebhookFailedError
	InvalidSignatureError  = guarderr.InvalidSignatureError
	RequestIDMismatchError = guarderr.RequestIDMismatchError
	DuplicateNonceError    = guarderr.DuplicateNonceError
	UnknownRequestIDError  = guarderr.UnknownRequestIDError
)

// From converts a plain Go value (the shape produced by encoding/json
// unmarshal: map[string]any, []any, string, float64, bool, nil) into a
// Value. Useful for building a protected tool's parameter map from
// already-decoded input.
var From = value.From

// New builds a Guard from the given Options. Call Initialize on the result
// before protecting any tool.
func New(opts ...Option) *Guard {
	cfg := service.Config{
		PolicyLoader: policyfile.NewLoader(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return service.New(cfg)
}
