package policyfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
	"github.com/agentguard/agentguard/internal/domain/guarderr"
)

// Loader reads policy documents from YAML files. It satisfies
// service.PolicyLoader.
type Loader struct{}

// NewLoader builds a Loader.
func NewLoader() *Loader { return &Loader{} }

// Load reads, validates, and converts the policy document at path.
// Failures of any kind (missing file, malformed YAML, struct-tag
// validation, domain validation) are wrapped in guarderr.PolicyLoadError.
func (l *Loader) Load(path string) (*guardpolicy.Policy, error) {
	return Load(path)
}

// Load is the package-level form of Loader.Load, usable without
// constructing a Loader.
func Load(path string) (*guardpolicy.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &guarderr.PolicyLoadError{Path: path, Cause: err}
	}

	var wire policyWire
	if err := yaml.Unmarshal(raw, &wire); err != nil {
		return nil, &guarderr.PolicyLoadError{Path: path, Cause: fmt.Errorf("parsing yaml: %w", err)}
	}
	if err := wire.validate(); err != nil {
		return nil, &guarderr.PolicyLoadError{Path: path, Cause: err}
	}

	policy, err := wire.toDomain()
	if err != nil {
		return nil, &guarderr.PolicyLoadError{Path: path, Cause: err}
	}
	if err := policy.Validate(); err != nil {
		return nil, &guarderr.PolicyLoadError{Path: path, Cause: err}
	}
	return policy, nil
}
