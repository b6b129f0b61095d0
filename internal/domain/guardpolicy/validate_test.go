package guardpolicy

import (
	"testing"

	"github.com/agentguard/agentguard/internal/domain/value"
)

func TestValidateRejectsMissingFields(t *testing.T) {
	p := &Policy{}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for empty policy")
	}
}

func TestValidateRejectsUnknownAction(t *testing.T) {
	p := &Policy{Version: "1", Name: "p", DefaultAction: Action("nonsense")}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for unknown default action")
	}
}

func TestValidateRejectsNonArrayInValue(t *testing.T) {
	p := &Policy{
		Version: "1", Name: "p", DefaultAction: ActionAllow,
		Rules: []Rule{{
			Name: "r", Action: ActionBlock,
			Conditions: []Condition{{Field: "a", Operator: OpIn, Value: value.String("not-an-array")}},
		}},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for non-array `in` value")
	}
}

func TestValidateRejectsNonNumericComparisonValue(t *testing.T) {
	p := &Policy{
		Version: "1", Name: "p", DefaultAction: ActionAllow,
		Rules: []Rule{{
			Name: "r", Action: ActionBlock,
			Conditions: []Condition{{Field: "a", Operator: OpGT, Value: value.Bool(true)}},
		}},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for non-numeric gt value")
	}
}

func TestValidateRejectsMalformedWebhookURL(t *testing.T) {
	p := &Policy{
		Version: "1", Name: "p", DefaultAction: ActionAllow,
		Webhook: &WebhookConfig{URL: "not a url"},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for malformed webhook url")
	}
}

func TestValidateRejectsShortSigningSecret(t *testing.T) {
	p := &Policy{
		Version: "1", Name: "p", DefaultAction: ActionAllow,
		Webhook: &WebhookConfig{
			URL:      "https://example.com/hook",
			Security: &WebhookSecurityConfig{SigningSecret: []byte("too-short")},
		},
	}
	if err := p.Validate(); err == nil {
		t.Fatalf("Validate() = nil, want error for short signing secret")
	}
}

func TestValidateAcceptsWellFormedPolicy(t *testing.T) {
	p := &Policy{
		Version: "1", Name: "p", DefaultAction: ActionAllow,
		Rules: []Rule{{
			Name: "r", Action: ActionBlock,
			Conditions: []Condition{{Field: "toolCall.toolName", Operator: OpEquals, Value: value.String("x")}},
		}},
		Webhook: &WebhookConfig{
			URL: "https://example.com/hook",
			Security: &WebhookSecurityConfig{
				SigningSecret: make([]byte, 32),
			},
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}
