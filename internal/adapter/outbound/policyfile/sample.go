package policyfile

// GenerateSample returns a fully-annotated starter policy document.
// gopkg.in/yaml.v3 does not preserve comments through Marshal, so the
// sample is a hand-written template rather than a marshaled struct, kept
// as static, commented YAML instead of being generated.
func GenerateSample() []byte {
	return []byte(sampleYAML)
}

const sampleYAML = `# AgentGuard policy document.
# Rules are evaluated in descending priority order; ties break by
# declaration order. The first rule whose conditions all match wins.
version: "1"
name: "starter-policy"
description: "A starting point: allow by default, gate risky calls."

# One of: allow, block, require_approval
defaultAction: allow

rules:
  - name: "block-admin-deletes"
    description: "Never allow deleting admin-scoped records outright."
    priority: 100
    action: block
    conditions:
      - field: toolCall.toolName
        operator: startsWith
        value: "delete_"
      - field: toolCall.parameters.scope
        operator: equals
        value: "admin"

  - name: "large-transfer-needs-approval"
    description: "Transfers over 10,000 require a human decision."
    priority: 50
    action: require_approval
    conditions:
      - field: toolCall.parameters.amount
        operator: gt
        value: 10000

# Uncomment and fill in to enable human-in-the-loop webhook dispatch for
# require_approval decisions. signingSecretHex/encryptionKeyHex are
# hex-encoded raw bytes (32+ bytes for signing, exactly 32 for encryption).
#
# webhook:
#   url: "https://approvals.example.com/agentguard/hook"
#   timeoutMs: 10000
#   retries: 3
#   headers:
#     X-Team: "platform"
#   security:
#     signingSecretHex: "REPLACE_WITH_64_HEX_CHARS_MINIMUM"
#     encryptionKeyHex: "REPLACE_WITH_EXACTLY_64_HEX_CHARS"
#     encryptSensitiveData: true
#     sensitiveFields:
#       - "request.toolCall.parameters.apiKey"
`
