package agentguard

import (
	"log/slog"

	"github.com/agentguard/agentguard/internal/adapter/outbound/httpsender"
	"github.com/agentguard/agentguard/internal/service"
)

// Option is a functional option for configuring a Guard at construction.
type Option func(*service.Config)

// WithPolicyFile configures the Guard to load its policy from path. Mutually
// exclusive with WithInlinePolicy; the last one applied wins.
func WithPolicyFile(path string) Option {
	return func(cfg *service.Config) {
		cfg.PolicySource = service.PolicySource{Path: path}
	}
}

// WithInlinePolicy configures the Guard with an already-built policy instead
// of a file path. Mutually exclusive with WithPolicyFile; the last one
// applied wins.
func WithInlinePolicy(policy *Policy) Option {
	return func(cfg *service.Config) {
		cfg.PolicySource = service.PolicySource{Inline: policy}
	}
}

// WithWebhook sets the config-level webhook fallback used when the loaded
// policy declares none.
func WithWebhook(webhook *WebhookConfig) Option {
	return func(cfg *service.Config) {
		cfg.Webhook = webhook
	}
}

// WithLogger sets the structured logger the Guard, Evaluator, and HITL
// Coordinator log through. If not set, defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *service.Config) {
		cfg.Logger = logger
	}
}

// WithMetrics sets the metrics sink the Guard records decisions and pending
// approval counts to. If not set, decisions are recorded nowhere.
func WithMetrics(metrics service.Metrics) Option {
	return func(cfg *service.Config) {
		cfg.Metrics = metrics
	}
}

// WithHTTPSender sets a custom webhook transport, e.g. for testing or a
// proxying/custom-TLS transport. If not set, defaults to the standard
// net/http-backed sender.
func WithHTTPSender(sender httpsender.HTTPSender) Option {
	return func(cfg *service.Config) {
		cfg.Sender = sender
	}
}
