package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentguard/agentguard/internal/adapter/outbound/policyfile"
	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
)

var testCmd = &cobra.Command{
	Use:   "test [path] <toolName> [key=value...]",
	Short: "Dry-run a tool call against a policy and print the decision",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		explicitPath, toolName, kvArgs, err := splitTestArgs(args)
		if err != nil {
			return err
		}

		var path string
		if explicitPath != "" {
			path = explicitPath
		} else {
			path, err = resolvePolicyPath()
			if err != nil {
				return err
			}
		}
		policy, err := policyfile.Load(path)
		if err != nil {
			return err
		}
		if err := applyWebhookEnvOverrides(policy); err != nil {
			return err
		}

		params, err := parseKeyValueArgs(kvArgs)
		if err != nil {
			return err
		}

		call, err := guardpolicy.NewToolCall(guardpolicy.ToolCallInput{ToolName: toolName, Parameters: params})
		if err != nil {
			return err
		}

		decision := guardpolicy.NewEvaluator(policy, nil).Decide(call)
		rule := "default"
		if decision.MatchedRule != nil {
			rule = decision.MatchedRule.Name
		}
		fmt.Printf("decision: %s\n", decision.Action)
		fmt.Printf("rule:     %s\n", rule)
		fmt.Printf("reason:   %s\n", decision.Reason)
		return nil
	},
}

// splitTestArgs separates the leading positional arguments ([path]
// toolName) from the trailing key=value pairs. key=value pairs are
// recognized by containing "="; everything before the first one is
// positional. One positional argument means just toolName was given; two
// means path then toolName, mirroring validate.go's pathOrResolve
// treatment of an optional leading path.
func splitTestArgs(args []string) (path, toolName string, kvArgs []string, err error) {
	split := len(args)
	for i, a := range args {
		if strings.Contains(a, "=") {
			split = i
			break
		}
	}
	positional := args[:split]
	kvArgs = args[split:]

	switch len(positional) {
	case 1:
		return "", positional[0], kvArgs, nil
	case 2:
		return positional[0], positional[1], kvArgs, nil
	case 0:
		return "", "", nil, fmt.Errorf("missing required argument <toolName>")
	default:
		return "", "", nil, fmt.Errorf("too many positional arguments before key=value pairs: %v", positional)
	}
}

// parseKeyValueArgs parses "key=value" pairs, decoding each value as JSON
// when it parses and falling back to the raw string otherwise.
func parseKeyValueArgs(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("malformed argument %q, expected key=value", arg)
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			params[key] = decoded
		} else {
			params[key] = raw
		}
	}
	return params, nil
}

func init() {
	rootCmd.AddCommand(testCmd)
}
