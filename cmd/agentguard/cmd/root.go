// Package cmd provides the CLI commands for AgentGuard.
package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentguard",
	Short: "AgentGuard - policy-mediated tool-call interceptor",
	Long: `AgentGuard wraps AI agent tool calls with a declarative policy engine
and an optional human-in-the-loop approval workflow.

Quick start:
  1. Create a policy file: agentguard init
  2. Validate it:          agentguard validate
  3. Dry-run a call:       agentguard test transfer_funds amount=500

Configuration:
  The policy file is located at ./agentguard-policy.yaml,
  $HOME/.agentguard/agentguard-policy.yaml, or /etc/agentguard/agentguard-policy.yaml,
  unless --policy names one explicitly.

  Environment variables override the webhook URL and signing secret with the
  AGENTGUARD_ prefix, e.g. AGENTGUARD_WEBHOOK_URL, AGENTGUARD_WEBHOOK_SIGNINGSECRETHEX.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "policy", "", "policy file (default: ./agentguard-policy.yaml)")
}

func initConfig() {
	viper.SetEnvPrefix("AGENTGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// resolvePolicyPath returns the explicit --policy flag value, or the first
// default policy file found across the standard search path: working
// directory, then $HOME/.agentguard/, then /etc/agentguard/.
func resolvePolicyPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, _ := os.UserHomeDir()
	candidates := []string{
		"agentguard-policy.yaml",
		"agentguard-policy.yml",
		filepath.Join(home, ".agentguard", "agentguard-policy.yaml"),
	}
	if runtime.GOOS != "windows" {
		candidates = append(candidates, "/etc/agentguard/agentguard-policy.yaml")
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no policy file found (searched %s); pass --policy explicitly", strings.Join(candidates, ", "))
}

// applyWebhookEnvOverrides overlays AGENTGUARD_WEBHOOK_URL and
// AGENTGUARD_WEBHOOK_SIGNINGSECRETHEX onto the loaded policy's webhook
// config, mirroring the teacher's convention of letting environment
// variables override file-based settings. viper.AutomaticEnv (wired in
// initConfig) makes these keys visible as "webhook.url" /
// "webhook.signingsecrethex" without an explicit BindEnv call. A no-op
// when neither variable is set.
func applyWebhookEnvOverrides(policy *guardpolicy.Policy) error {
	url := viper.GetString("webhook.url")
	secretHex := viper.GetString("webhook.signingsecrethex")
	if url == "" && secretHex == "" {
		return nil
	}
	if policy.Webhook == nil {
		policy.Webhook = &guardpolicy.WebhookConfig{}
	}
	if url != "" {
		policy.Webhook.URL = url
	}
	if secretHex != "" {
		secret, err := hex.DecodeString(secretHex)
		if err != nil {
			return fmt.Errorf("AGENTGUARD_WEBHOOK_SIGNINGSECRETHEX: %w", err)
		}
		if policy.Webhook.Security == nil {
			policy.Webhook.Security = &guardpolicy.WebhookSecurityConfig{}
		}
		policy.Webhook.Security.SigningSecret = secret
	}
	return nil
}
