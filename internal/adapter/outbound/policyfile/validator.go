package policyfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agentguard/agentguard/internal/domain/guardpolicy"
)

// RegisterCustomValidators registers the policy_operator rule, following
// internal/config.RegisterCustomValidators's pattern of a small number of
// hand-written FieldLevel validators layered on struct tags.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("policy_operator", validatePolicyOperator); err != nil {
		return fmt.Errorf("failed to register policy_operator validator: %w", err)
	}
	return nil
}

func validatePolicyOperator(fl validator.FieldLevel) bool {
	return guardpolicy.Operator(fl.Field().String()).Valid()
}

// validate runs struct-tag validation on w, then the cross-field checks
// the tag model can't express: webhook security secret lengths, and (for
// the "in"/numeric/regex operators) Condition.Value shape, which is left
// to guardpolicy.Policy.Validate() after conversion since Value is
// dynamically typed here too.
func (w *policyWire) validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(w); err != nil {
		return formatValidationErrors(err)
	}
	if w.Webhook != nil && w.Webhook.Security != nil {
		if err := w.Webhook.Security.validate(); err != nil {
			return fmt.Errorf("webhook.security: %w", err)
		}
	}
	return nil
}

func (s *securityWire) validate() error {
	secretLen := len(s.SigningSecretHex) / 2
	if secretLen < 32 {
		return errors.New("signingSecretHex must decode to at least 32 bytes")
	}
	if s.EncryptionKeyHex != "" && len(s.EncryptionKeyHex)/2 != 32 {
		return errors.New("encryptionKeyHex must decode to exactly 32 bytes")
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hexadecimal":
		return fmt.Sprintf("%s must be hex-encoded", field)
	case "policy_operator":
		return fmt.Sprintf("%s must be one of the supported condition operators", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
