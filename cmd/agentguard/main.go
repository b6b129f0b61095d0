// Command agentguard provides the policy file tooling: init, validate,
// test, and version. The library itself is embedded via pkg/agentguard;
// this binary never runs a guard, it only authors and checks policy
// documents.
package main

import "github.com/agentguard/agentguard/cmd/agentguard/cmd"

func main() {
	cmd.Execute()
}
