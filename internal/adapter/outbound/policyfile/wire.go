// Package policyfile loads a policy document from a YAML file and converts
// it into the domain guardpolicy.Policy via a wire-struct-then-convert
// pattern: a tagged struct for gopkg.in/yaml.v3 unmarshal and
// go-playground/validator/v10 struct-tag validation, with a small set of
// custom validators and cross-field checks run after v.Struct() succeeds.
package policyfile

// policyWire is the on-disk shape of a policy document.
type policyWire struct {
	Version       string          `yaml:"version" validate:"required"`
	Name          string          `yaml:"name" validate:"required"`
	Description   string          `yaml:"description"`
	DefaultAction string          `yaml:"defaultAction" validate:"required,oneof=allow block require_approval"`
	Rules         []ruleWire      `yaml:"rules" validate:"omitempty,dive"`
	Webhook       *webhookWire    `yaml:"webhook" validate:"omitempty"`
}

type ruleWire struct {
	Name        string          `yaml:"name" validate:"required"`
	Description string          `yaml:"description"`
	Priority    int             `yaml:"priority"`
	Action      string          `yaml:"action" validate:"required,oneof=allow block require_approval"`
	Conditions  []conditionWire `yaml:"conditions" validate:"required,min=1,dive"`
}

type conditionWire struct {
	Field    string `yaml:"field" validate:"required"`
	Operator string `yaml:"operator" validate:"required,policy_operator"`
	Value    any    `yaml:"value"`
}

type webhookWire struct {
	URL       string            `yaml:"url" validate:"required,url"`
	TimeoutMs int               `yaml:"timeoutMs" validate:"omitempty,min=1"`
	Retries   int               `yaml:"retries" validate:"omitempty,min=1"`
	Headers   map[string]string `yaml:"headers"`
	Security  *securityWire     `yaml:"security"`
}

type securityWire struct {
	// SigningSecret and EncryptionKey are hex-encoded on disk: never raw
	// bytes in YAML.
	SigningSecretHex     string   `yaml:"signingSecretHex" validate:"required,hexadecimal"`
	EncryptionKeyHex     string   `yaml:"encryptionKeyHex" validate:"omitempty,hexadecimal"`
	EncryptSensitiveData bool     `yaml:"encryptSensitiveData"`
	SensitiveFields      []string `yaml:"sensitiveFields"`
}
