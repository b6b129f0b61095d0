package hitl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentguard/agentguard/internal/adapter/outbound/httpsender"
	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
	"github.com/agentguard/agentguard/internal/domain/guarderr"
	"github.com/agentguard/agentguard/internal/domain/security"
	"github.com/agentguard/agentguard/internal/domain/value"
)

const (
	defaultContentType = "application/json"
	defaultUserAgent   = "AgentGuard/1.0"
)

// buildPayload renders the outgoing webhook body:
// {"type": "approval_request", "request": {id, toolCall, timestamp,
// expiresAt}, "timestamp"}. If cfg.Security.EncryptSensitiveData is true,
// each resolvable sensitive field path is replaced in place by its
// encryption envelope from env. Encryption is not skipped when env has no
// encryption key: the Encrypt error is returned and no payload is built.
func buildPayload(req ApprovalRequest, cfg *guardpolicy.WebhookConfig, env *security.Envelope, now time.Time) (value.Value, error) {
	requestObj := map[string]value.Value{
		"id":        value.String(req.ID),
		"toolCall":  req.ToolCall.AsValue(),
		"timestamp": value.String(req.CreatedAt.UTC().Format(time.RFC3339)),
		"expiresAt": value.String(req.ExpiresAt.UTC().Format(time.RFC3339)),
	}
	payload := value.Object(map[string]value.Value{
		"type":      value.String("approval_request"),
		"request":   value.Object(requestObj),
		"timestamp": value.String(now.UTC().Format(time.RFC3339)),
	})

	if cfg.Security == nil || !cfg.Security.EncryptSensitiveData || len(cfg.Security.SensitiveFields) == 0 {
		return payload, nil
	}

	for _, path := range cfg.Security.SensitiveFields {
		leaf, ok := value.Get(payload, path)
		if !ok {
			continue // paths that don't resolve are silently skipped
		}
		envelope, err := env.Encrypt(leaf.Interface())
		if err != nil {
			return value.Null, fmt.Errorf("hitl: encrypting sensitive field %q: %w", path, err)
		}
		replacement := value.Object(map[string]value.Value{
			"encrypted": value.String(envelope.Encrypted),
			"iv":        value.String(envelope.IV),
			"tag":       value.String(envelope.Tag),
		})
		updated, replaced := value.ReplaceLeaf(payload, path, replacement)
		if replaced {
			payload = updated
		}
	}
	return payload, nil
}

// buildHeaders merges default headers, caller-supplied extras, and
// security headers, with security headers winning on any key collision.
func buildHeaders(cfg *guardpolicy.WebhookConfig, secHeaders security.Headers, hasSecurity bool) map[string]string {
	headers := map[string]string{
		"Content-Type": defaultContentType,
		"User-Agent":   defaultUserAgent,
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if hasSecurity {
		for k, v := range secHeaders.ToMap() {
			headers[k] = v
		}
	}
	return headers
}

// dispatch sends one approval-request webhook, retrying with exponential
// backoff (2^(attempt-1) seconds) up to cfg.EffectiveRetries() attempts.
// Non-2xx responses, network errors, and timeouts all count as attempt
// failures. Exhaustion returns a *guarderr.WebhookFailedError.
func dispatch(ctx context.Context, sender httpsender.HTTPSender, cfg *guardpolicy.WebhookConfig, env *security.Envelope, req ApprovalRequest, logger *slog.Logger, metrics Metrics, now func() time.Time) error {
	payloadValue, err := buildPayload(req, cfg, env, now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(payloadValue.Interface())
	if err != nil {
		return fmt.Errorf("hitl: marshaling webhook payload: %w", err)
	}

	var secHeaders security.Headers
	hasSecurity := cfg.Security != nil
	if hasSecurity {
		secHeaders, err = env.GenerateHeaders(body, req.ID, now())
		if err != nil {
			return fmt.Errorf("hitl: generating security headers: %w", err)
		}
	}
	headers := buildHeaders(cfg, secHeaders, hasSecurity)

	timeout := cfg.EffectiveTimeout()
	retries := cfg.EffectiveRetries()

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		status, _, sendErr := sender.Send(ctx, cfg.URL, headers, body, timeout)
		if sendErr == nil && status >= 200 && status < 300 {
			metrics.RecordWebhookAttempt(true)
			return nil
		}
		metrics.RecordWebhookAttempt(false)
		if sendErr != nil {
			lastErr = sendErr
		} else {
			lastErr = fmt.Errorf("webhook returned non-2xx status %d", status)
		}
		logger.Warn("webhook delivery attempt failed",
			"request_id", req.ID, "attempt", attempt, "retries", retries, "error", lastErr)

		if attempt == retries {
			break
		}
		backoff := time.Duration(1<<(attempt-1)) * time.Second
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return &guarderr.WebhookFailedError{URL: cfg.URL, Attempt: attempt, Cause: ctx.Err()}
		}
	}
	return &guarderr.WebhookFailedError{URL: cfg.URL, Attempt: retries, Cause: lastErr}
}
