package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentguard/agentguard/internal/adapter/outbound/policyfile"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter policy file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "agentguard-policy.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("refusing to overwrite existing file %q", path)
		}
		if err := os.WriteFile(path, policyfile.GenerateSample(), 0o644); err != nil {
			return fmt.Errorf("writing %q: %w", path, err)
		}
		fmt.Printf("wrote starter policy to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
