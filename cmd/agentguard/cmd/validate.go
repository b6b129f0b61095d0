package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentguard/agentguard/internal/adapter/outbound/policyfile"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Load and validate a policy file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := pathOrResolve(args)
		if err != nil {
			return err
		}
		policy, err := policyfile.Load(path)
		if err != nil {
			return err
		}
		if err := applyWebhookEnvOverrides(policy); err != nil {
			return err
		}
		fmt.Printf("%s: %q is valid (%d rule(s), default action %q)\n", path, policy.Name, len(policy.Rules), policy.DefaultAction)
		return nil
	},
}

func pathOrResolve(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return resolvePolicyPath()
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
