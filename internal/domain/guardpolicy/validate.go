package guardpolicy

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate rejects missing required fields, unknown operators/actions,
// a non-array Value for the "in" operator, a non-numeric Value for
// numeric operators, and a malformed webhook URL. It is hand-written
// rather than struct-tag driven because the payload shapes (dynamically
// typed Condition.Value) don't fit validator's struct-tag model cleanly.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Version) == "" {
		return fmt.Errorf("policy: version is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("policy: name is required")
	}
	if !p.DefaultAction.Valid() {
		return fmt.Errorf("policy: unknown defaultAction %q", p.DefaultAction)
	}
	for i, r := range p.Rules {
		if err := r.validate(); err != nil {
			return fmt.Errorf("policy: rule[%d] %q: %w", i, r.Name, err)
		}
	}
	if p.Webhook != nil {
		if err := p.Webhook.validate(); err != nil {
			return fmt.Errorf("policy: webhook: %w", err)
		}
	}
	return nil
}

func (r *Rule) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !r.Action.Valid() {
		return fmt.Errorf("unknown action %q", r.Action)
	}
	for i, c := range r.Conditions {
		if err := c.validate(); err != nil {
			return fmt.Errorf("condition[%d]: %w", i, err)
		}
	}
	return nil
}

func (c *Condition) validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("field is required")
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	switch c.Operator {
	case OpIn:
		if _, ok := c.Value.AsArray(); !ok {
			return fmt.Errorf("operator %q requires an array value", c.Operator)
		}
	case OpGT, OpLT, OpGTE, OpLTE:
		if _, ok := toFloat(c.Value); !ok {
			return fmt.Errorf("operator %q requires a numeric value", c.Operator)
		}
	case OpRegex:
		if _, ok := c.Value.AsString(); !ok {
			return fmt.Errorf("operator %q requires a string value", c.Operator)
		}
	}
	return nil
}

func (w *WebhookConfig) validate() error {
	if strings.TrimSpace(w.URL) == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(w.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("malformed webhook url %q", w.URL)
	}
	if w.Security != nil {
		if len(w.Security.SigningSecret) < 32 {
			return fmt.Errorf("security.signingSecret must be at least 32 bytes")
		}
		if w.Security.EncryptionKey != nil && len(w.Security.EncryptionKey) != 32 {
			return fmt.Errorf("security.encryptionKey must be exactly 32 raw bytes")
		}
	}
	return nil
}
