package guardpolicy

import (
	"time"

	"github.com/agentguard/agentguard/internal/domain/value"
)

// EvaluationContext is the read-only structure Conditions are matched
// against. A Condition's dotted field path is resolved starting from this
// object's value.Value rendering.
type EvaluationContext struct {
	ToolCall      ToolCall
	Policy        *Policy
	TimestampISO  string
}

// AsValue renders the EvaluationContext as a value.Value object with the
// layout documented in the field-extraction rule: "toolCall.parameters...",
// "toolCall.toolName", etc.
func (c EvaluationContext) AsValue() value.Value {
	obj := map[string]value.Value{
		"toolCall":  c.ToolCall.AsValue(),
		"timestamp": value.String(c.TimestampISO),
	}
	if c.Policy != nil {
		obj["policy"] = value.Object(map[string]value.Value{
			"version":       value.String(c.Policy.Version),
			"name":          value.String(c.Policy.Name),
			"defaultAction": value.String(string(c.Policy.DefaultAction)),
		})
	}
	return value.Object(obj)
}

// NewEvaluationContext builds the context for one evaluation, stamping the
// current time in RFC3339 form.
func NewEvaluationContext(call ToolCall, policy *Policy, now time.Time) EvaluationContext {
	return EvaluationContext{
		ToolCall:     call,
		Policy:       policy,
		TimestampISO: now.UTC().Format(time.RFC3339),
	}
}
