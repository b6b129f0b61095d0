// Package guardpolicy contains the domain types and evaluation engine for
// AgentGuard's declarative call policy: a priority-ordered condition
// matcher over a structured context derived from each tool call.
package guardpolicy

import (
	"fmt"
	"time"

	"github.com/agentguard/agentguard/internal/domain/value"
)

// Action is the verdict a matching rule (or the policy default) produces.
type Action string

const (
	ActionAllow           Action = "allow"
	ActionBlock           Action = "block"
	ActionRequireApproval Action = "require_approval"
)

// Valid reports whether a is one of the three known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionBlock, ActionRequireApproval:
		return true
	}
	return false
}

// Operator names a Condition's comparison.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpRegex      Operator = "regex"
	OpIn         Operator = "in"
	OpGT         Operator = "gt"
	OpLT         Operator = "lt"
	OpGTE        Operator = "gte"
	OpLTE        Operator = "lte"
)

// Valid reports whether op is one of the ten known operators.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegex, OpIn, OpGT, OpLT, OpGTE, OpLTE:
		return true
	}
	return false
}

// ToolCall is the immutable descriptor of one tool invocation. Construct
// with NewToolCall; there is no exported way to mutate it afterward.
type ToolCall struct {
	toolName   string
	parameters map[string]value.Value
	agentID    string
	sessionID  string
	metadata   map[string]value.Value
}

// ToolCallInput is the plain-data shape used to build a ToolCall.
type ToolCallInput struct {
	ToolName   string
	Parameters map[string]any
	AgentID    string
	SessionID  string
	Metadata   map[string]any
}

// NewToolCall builds an immutable ToolCall. toolName must be non-empty.
func NewToolCall(in ToolCallInput) (ToolCall, error) {
	if trimmedEmpty(in.ToolName) {
		return ToolCall{}, fmt.Errorf("toolCall: toolName must not be empty")
	}
	return ToolCall{
		toolName:   in.ToolName,
		parameters: value.FromMap(in.Parameters),
		agentID:    in.AgentID,
		sessionID:  in.SessionID,
		metadata:   value.FromMap(in.Metadata),
	}, nil
}

func trimmedEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' {
			return false
		}
	}
	return true
}

func (c ToolCall) ToolName() string                   { return c.toolName }
func (c ToolCall) AgentID() string                    { return c.agentID }
func (c ToolCall) SessionID() string                  { return c.sessionID }
func (c ToolCall) Parameters() map[string]value.Value { return c.parameters }
func (c ToolCall) Metadata() map[string]value.Value   { return c.metadata }

// AsValue renders the ToolCall as a value.Value object, for dotted-path
// field extraction and for JSON-shaped serialization into webhook payloads.
func (c ToolCall) AsValue() value.Value {
	obj := map[string]value.Value{
		"toolName":   value.String(c.toolName),
		"parameters": value.Object(c.parameters),
	}
	if c.agentID != "" {
		obj["agentId"] = value.String(c.agentID)
	}
	if c.sessionID != "" {
		obj["sessionId"] = value.String(c.sessionID)
	}
	if len(c.metadata) > 0 {
		obj["metadata"] = value.Object(c.metadata)
	}
	return value.Object(obj)
}

// Condition is one field/operator/value test. A Rule matches iff every one
// of its Conditions matches.
type Condition struct {
	Field    string
	Operator Operator
	Value    value.Value
}

// Rule is a named, prioritized set of Conditions mapped to an Action.
type Rule struct {
	Name        string
	Description string
	Priority    int
	Action      Action
	Conditions  []Condition
}

// Policy is the read-only, loaded-once authorization document.
type Policy struct {
	Version       string
	Name          string
	Description   string
	DefaultAction Action
	Rules         []Rule
	Webhook       *WebhookConfig
}

// WebhookConfig describes where and how to deliver approval-request
// webhooks.
type WebhookConfig struct {
	URL       string
	TimeoutMs int
	Retries   int
	Headers   map[string]string
	Security  *WebhookSecurityConfig
}

// EffectiveTimeout returns TimeoutMs or the 10s default.
func (w WebhookConfig) EffectiveTimeout() time.Duration {
	if w.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.TimeoutMs) * time.Millisecond
}

// EffectiveRetries returns Retries or the default of 3.
func (w WebhookConfig) EffectiveRetries() int {
	if w.Retries <= 0 {
		return 3
	}
	return w.Retries
}

// WebhookSecurityConfig configures the HMAC signing / AES-GCM encryption
// envelope applied to outgoing webhooks and expected on inbound responses.
type WebhookSecurityConfig struct {
	// SigningSecret must be at least 32 bytes.
	SigningSecret []byte
	// EncryptionKey, if set, must be exactly 32 raw bytes (hex-decoded from
	// the config source).
	EncryptionKey []byte
	// EncryptSensitiveData gates whether SensitiveFields are encrypted in
	// outgoing webhook payloads.
	EncryptSensitiveData bool
	// SensitiveFields are dotted paths into the outgoing payload whose leaf
	// values are replaced by an encryption envelope before transmission.
	SensitiveFields []string
}

// Decision is the Evaluator's verdict for one ToolCall.
type Decision struct {
	Action      Action
	MatchedRule *Rule
	Reason      string
}
