package guardpolicy

import (
	"testing"

	"github.com/agentguard/agentguard/internal/domain/value"
)

func mustCall(t *testing.T, toolName string, params map[string]any) ToolCall {
	t.Helper()
	call, err := NewToolCall(ToolCallInput{ToolName: toolName, Parameters: params})
	if err != nil {
		t.Fatalf("NewToolCall() error: %v", err)
	}
	return call
}

// A tiered transfer policy: low amounts allowed, mid amounts require
// approval, high amounts blocked.
func TestScenarioA_TieredTransferPolicy(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "transfer", DefaultAction: ActionBlock,
		Rules: []Rule{
			{
				Name: "small-transfer", Priority: 10, Action: ActionAllow,
				Conditions: []Condition{
					{Field: "toolCall.toolName", Operator: OpEquals, Value: value.String("transfer")},
					{Field: "toolCall.parameters.amount", Operator: OpLTE, Value: value.Number(100)},
				},
			},
			{
				Name: "mid-transfer", Priority: 20, Action: ActionRequireApproval,
				Conditions: []Condition{
					{Field: "toolCall.toolName", Operator: OpEquals, Value: value.String("transfer")},
					{Field: "toolCall.parameters.amount", Operator: OpGT, Value: value.Number(100)},
					{Field: "toolCall.parameters.amount", Operator: OpLTE, Value: value.Number(10000)},
				},
			},
			{
				Name: "large-transfer", Priority: 30, Action: ActionBlock,
				Conditions: []Condition{
					{Field: "toolCall.toolName", Operator: OpEquals, Value: value.String("transfer")},
					{Field: "toolCall.parameters.amount", Operator: OpGT, Value: value.Number(10000)},
				},
			},
		},
	}
	ev := NewEvaluator(policy, nil)

	d := ev.Decide(mustCall(t, "transfer", map[string]any{"amount": 50.0}))
	if d.Action != ActionAllow {
		t.Fatalf("amount=50: got %v, want Allow", d.Action)
	}

	d = ev.Decide(mustCall(t, "transfer", map[string]any{"amount": 5000.0}))
	if d.Action != ActionRequireApproval {
		t.Fatalf("amount=5000: got %v, want RequireApproval", d.Action)
	}

	d = ev.Decide(mustCall(t, "transfer", map[string]any{"amount": 50000.0}))
	if d.Action != ActionBlock || d.MatchedRule == nil || d.MatchedRule.Name != "large-transfer" {
		t.Fatalf("amount=50000: got %+v, want Block by large-transfer", d)
	}
}

// A higher-priority rule overrides a lower-priority one that also matches.
func TestScenarioB_PriorityOverride(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "priority", DefaultAction: ActionAllow,
		Rules: []Rule{
			{
				Name: "lo", Priority: 10, Action: ActionBlock,
				Conditions: []Condition{{Field: "toolCall.toolName", Operator: OpEquals, Value: value.String("test")}},
			},
			{
				Name: "hi", Priority: 100, Action: ActionAllow,
				Conditions: []Condition{
					{Field: "toolCall.toolName", Operator: OpEquals, Value: value.String("test")},
					{Field: "toolCall.parameters.safe", Operator: OpEquals, Value: value.Bool(true)},
				},
			},
		},
	}
	ev := NewEvaluator(policy, nil)

	d := ev.Decide(mustCall(t, "test", map[string]any{"safe": true}))
	if d.Action != ActionAllow || d.MatchedRule.Name != "hi" {
		t.Fatalf("safe=true: got %+v, want Allow by hi", d)
	}

	d = ev.Decide(mustCall(t, "test", map[string]any{"safe": false}))
	if d.Action != ActionBlock || d.MatchedRule.Name != "lo" {
		t.Fatalf("safe=false: got %+v, want Block by lo", d)
	}
}

// Condition fields can index into nested arrays and objects.
func TestScenarioC_NestedPathExtraction(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "nested", DefaultAction: ActionBlock,
		Rules: []Rule{
			{
				Name: "match-first-id", Priority: 0, Action: ActionAllow,
				Conditions: []Condition{
					{Field: "toolCall.parameters.items.0.id", Operator: OpEquals, Value: value.Number(7)},
				},
			},
		},
	}
	ev := NewEvaluator(policy, nil)
	call := mustCall(t, "x", map[string]any{
		"items": []any{map[string]any{"id": 7.0}, map[string]any{"id": 8.0}},
	})
	d := ev.Decide(call)
	if d.Action != ActionAllow {
		t.Fatalf("got %+v, want Allow", d)
	}
}

// The regex operator matches anywhere in the extracted string; anchoring
// comes only from the pattern itself.
func TestScenarioD_Regex(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "regex", DefaultAction: ActionBlock,
		Rules: []Rule{
			{
				Name: "block-admin", Priority: 100, Action: ActionBlock,
				Conditions: []Condition{{Field: "toolCall.toolName", Operator: OpRegex, Value: value.String("_admin$")}},
			},
			{
				Name: "allow-readlike", Priority: 10, Action: ActionAllow,
				Conditions: []Condition{{Field: "toolCall.toolName", Operator: OpRegex, Value: value.String("^(read|get|list|fetch)_[a-z]+$")}},
			},
		},
	}
	ev := NewEvaluator(policy, nil)

	if d := ev.Decide(mustCall(t, "read_users", nil)); d.Action != ActionAllow {
		t.Fatalf("read_users: got %v, want Allow", d.Action)
	}
	if d := ev.Decide(mustCall(t, "read_admin", nil)); d.Action != ActionBlock {
		t.Fatalf("read_admin: got %v, want Block", d.Action)
	}
	if d := ev.Decide(mustCall(t, "delete_users", nil)); d.Action != ActionBlock {
		t.Fatalf("delete_users: got %v, want default Block", d.Action)
	}
}

func TestInvalidRegexIsNonFatalNonMatch(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "badregex", DefaultAction: ActionAllow,
		Rules: []Rule{
			{
				Name: "broken", Priority: 0, Action: ActionBlock,
				Conditions: []Condition{{Field: "toolCall.toolName", Operator: OpRegex, Value: value.String("(unterminated")}},
			},
		},
	}
	ev := NewEvaluator(policy, nil)
	d := ev.Decide(mustCall(t, "anything", nil))
	if d.Action != ActionAllow {
		t.Fatalf("got %v, want default Allow (regex compile failure is a non-match)", d.Action)
	}
}

func TestUnknownOperatorIsNonMatch(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "unknownop", DefaultAction: ActionAllow,
		Rules: []Rule{
			{
				Name: "weird", Priority: 0, Action: ActionBlock,
				Conditions: []Condition{{Field: "toolCall.toolName", Operator: Operator("nope"), Value: value.String("x")}},
			},
		},
	}
	ev := NewEvaluator(policy, nil)
	d := ev.Decide(mustCall(t, "x", nil))
	if d.Action != ActionAllow {
		t.Fatalf("got %v, want default Allow", d.Action)
	}
}

func TestInOperator(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "in", DefaultAction: ActionBlock,
		Rules: []Rule{
			{
				Name: "allowlist", Priority: 0, Action: ActionAllow,
				Conditions: []Condition{{
					Field: "toolCall.parameters.role", Operator: OpIn,
					Value: value.Array([]value.Value{value.String("admin"), value.String("owner")}),
				}},
			},
		},
	}
	ev := NewEvaluator(policy, nil)
	if d := ev.Decide(mustCall(t, "x", map[string]any{"role": "admin"})); d.Action != ActionAllow {
		t.Fatalf("role=admin: got %v, want Allow", d.Action)
	}
	if d := ev.Decide(mustCall(t, "x", map[string]any{"role": "guest"})); d.Action != ActionBlock {
		t.Fatalf("role=guest: got %v, want Block", d.Action)
	}
}

func TestNumericCoercionNaNIsFalse(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "num", DefaultAction: ActionAllow,
		Rules: []Rule{
			{
				Name: "gt", Priority: 0, Action: ActionBlock,
				Conditions: []Condition{{Field: "toolCall.parameters.amount", Operator: OpGT, Value: value.Number(10)}},
			},
		},
	}
	ev := NewEvaluator(policy, nil)
	d := ev.Decide(mustCall(t, "x", map[string]any{"amount": "not-a-number"}))
	if d.Action != ActionAllow {
		t.Fatalf("got %v, want default (NaN coercion -> false)", d.Action)
	}
}

// Invariant 2: priority ordering, ties broken by declaration order.
func TestPriorityTieBrokenByDeclarationOrder(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "ties", DefaultAction: ActionBlock,
		Rules: []Rule{
			{Name: "first", Priority: 5, Action: ActionAllow, Conditions: nil},
			{Name: "second", Priority: 5, Action: ActionBlock, Conditions: nil},
		},
	}
	ev := NewEvaluator(policy, nil)
	d := ev.Decide(mustCall(t, "x", nil))
	if d.MatchedRule == nil || d.MatchedRule.Name != "first" {
		t.Fatalf("got %+v, want tie broken toward declaration order (first)", d)
	}
}

func TestEqualsMissingFieldMatchesOnlyAgainstNull(t *testing.T) {
	policy := &Policy{
		Version: "1", Name: "missing", DefaultAction: ActionBlock,
		Rules: []Rule{
			{
				Name: "absent-is-null", Priority: 0, Action: ActionAllow,
				Conditions: []Condition{{Field: "toolCall.parameters.missing", Operator: OpEquals, Value: value.Null}},
			},
		},
	}
	ev := NewEvaluator(policy, nil)
	d := ev.Decide(mustCall(t, "x", nil))
	if d.Action != ActionAllow {
		t.Fatalf("got %v, want Allow (missing field equals null)", d.Action)
	}
}
