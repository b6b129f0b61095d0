package guardpolicy

import (
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agentguard/agentguard/internal/domain/value"
)

// Evaluator applies a Policy's rules, in priority order, to a ToolCall.
// Evaluation never fails: pathological conditions degrade to non-matches
// and are logged as diagnostics.
type Evaluator struct {
	policy *Policy
	rules  []Rule // pre-sorted by descending priority, stable on ties
	logger *slog.Logger
}

// NewEvaluator builds an Evaluator bound to policy, pre-sorting its rules.
// logger may be nil, in which case diagnostics are discarded.
func NewEvaluator(policy *Policy, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	rules := make([]Rule, len(policy.Rules))
	copy(rules, policy.Rules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return &Evaluator{policy: policy, rules: rules, logger: logger}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Decide evaluates call against the bound policy and returns a Decision.
// It never returns an error: per the spec, evaluation never throws.
func (e *Evaluator) Decide(call ToolCall) Decision {
	evalCtx := NewEvaluationContext(call, e.policy, time.Now())
	ctxValue := evalCtx.AsValue()

	for i := range e.rules {
		rule := &e.rules[i]
		if e.ruleMatches(rule, ctxValue) {
			return Decision{
				Action:      rule.Action,
				MatchedRule: rule,
				Reason:      "Matched rule: " + rule.Name,
			}
		}
	}
	return Decision{
		Action: e.policy.DefaultAction,
		Reason: "No matching rules found",
	}
}

func (e *Evaluator) ruleMatches(rule *Rule, ctxValue value.Value) bool {
	for _, cond := range rule.Conditions {
		if !e.conditionMatches(rule.Name, cond, ctxValue) {
			return false
		}
	}
	return true
}

func (e *Evaluator) conditionMatches(ruleName string, cond Condition, ctxValue value.Value) bool {
	extracted, found := value.Get(ctxValue, cond.Field)

	switch cond.Operator {
	case OpEquals:
		if !found {
			return cond.Value.IsNull()
		}
		return value.Equal(extracted, cond.Value)

	case OpContains:
		return stringBinary(extracted, cond.Value, strings.Contains)

	case OpStartsWith:
		return stringBinary(extracted, cond.Value, hasPrefix)

	case OpEndsWith:
		return stringBinary(extracted, cond.Value, hasSuffix)

	case OpRegex:
		s, ok := extracted.AsString()
		if !ok {
			return false
		}
		pattern, ok := cond.Value.AsString()
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			e.logger.Warn("policy condition: invalid regex, treating as non-match",
				"rule", ruleName, "field", cond.Field, "pattern", pattern, "error", err)
			return false
		}
		return re.MatchString(s)

	case OpIn:
		elems, ok := cond.Value.AsArray()
		if !ok || !found {
			return false
		}
		for _, e2 := range elems {
			if value.Equal(extracted, e2) {
				return true
			}
		}
		return false

	case OpGT, OpLT, OpGTE, OpLTE:
		if !found {
			return false
		}
		lhs, lok := toFloat(extracted)
		rhs, rok := toFloat(cond.Value)
		if !lok || !rok {
			return false
		}
		switch cond.Operator {
		case OpGT:
			return lhs > rhs
		case OpLT:
			return lhs < rhs
		case OpGTE:
			return lhs >= rhs
		case OpLTE:
			return lhs <= rhs
		}
		return false

	default:
		e.logger.Warn("policy condition: unknown operator, treating as non-match",
			"rule", ruleName, "field", cond.Field, "operator", cond.Operator)
		return false
	}
}

func stringBinary(a, b value.Value, f func(s, t string) bool) bool {
	as, aok := a.AsString()
	bs, bok := b.AsString()
	if !aok || !bok {
		return false
	}
	return f(as, bs)
}

func hasPrefix(s, prefix string) bool { return strings.HasPrefix(s, prefix) }

func hasSuffix(s, suffix string) bool { return strings.HasSuffix(s, suffix) }

// toFloat coerces a Value to float64 for numeric operators: numbers pass
// through, strings are parsed, everything else fails.
func toFloat(v value.Value) (float64, bool) {
	if n, ok := v.AsFloat64(); ok {
		return n, true
	}
	if s, ok := v.AsString(); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
