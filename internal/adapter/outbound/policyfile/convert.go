package policyfile

import (
	"encoding/hex"
	"fmt"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
	"github.com/agentguard/agentguard/internal/domain/value"
)

func (w *policyWire) toDomain() (*guardpolicy.Policy, error) {
	rules := make([]guardpolicy.Rule, len(w.Rules))
	for i, rw := range w.Rules {
		conditions := make([]guardpolicy.Condition, len(rw.Conditions))
		for j, cw := range rw.Conditions {
			conditions[j] = guardpolicy.Condition{
				Field:    cw.Field,
				Operator: guardpolicy.Operator(cw.Operator),
				Value:    value.From(cw.Value),
			}
		}
		rules[i] = guardpolicy.Rule{
			Name:        rw.Name,
			Description: rw.Description,
			Priority:    rw.Priority,
			Action:      guardpolicy.Action(rw.Action),
			Conditions:  conditions,
		}
	}

	policy := &guardpolicy.Policy{
		Version:       w.Version,
		Name:          w.Name,
		Description:   w.Description,
		DefaultAction: guardpolicy.Action(w.DefaultAction),
		Rules:         rules,
	}

	if w.Webhook != nil {
		webhook, err := w.Webhook.toDomain()
		if err != nil {
			return nil, err
		}
		policy.Webhook = webhook
	}
	return policy, nil
}

func (w *webhookWire) toDomain() (*guardpolicy.WebhookConfig, error) {
	cfg := &guardpolicy.WebhookConfig{
		URL:       w.URL,
		TimeoutMs: w.TimeoutMs,
		Retries:   w.Retries,
		Headers:   w.Headers,
	}
	if w.Security == nil {
		return cfg, nil
	}

	signingSecret, err := hex.DecodeString(w.Security.SigningSecretHex)
	if err != nil {
		return nil, fmt.Errorf("webhook.security.signingSecretHex: %w", err)
	}
	var encryptionKey []byte
	if w.Security.EncryptionKeyHex != "" {
		encryptionKey, err = hex.DecodeString(w.Security.EncryptionKeyHex)
		if err != nil {
			return nil, fmt.Errorf("webhook.security.encryptionKeyHex: %w", err)
		}
	}

	cfg.Security = &guardpolicy.WebhookSecurityConfig{
		SigningSecret:        signingSecret,
		EncryptionKey:        encryptionKey,
		EncryptSensitiveData: w.Security.EncryptSensitiveData,
		SensitiveFields:      w.Security.SensitiveFields,
	}
	return cfg, nil
}
