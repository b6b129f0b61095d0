// Package security implements the webhook security envelope: HMAC-SHA256
// signing with timestamp+nonce freshness, and AES-256-GCM encryption of
// designated sensitive sub-fields. It is pure computation over byte
// strings and carries no state of its own (the nonce cache that guards
// replay lives in the HITL coordinator, which owns a NonceCache from this
// package).
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// freshnessWindow bounds how far a signed timestamp may drift from now
// before verification rejects it.
const freshnessWindow = 5 * time.Minute

// ivLength is 16 bytes rather than the standard 12-byte AES-GCM nonce, kept
// for bit-level compatibility with existing responders. AES-GCM accepts
// any nonce length via cipher.NewGCMWithNonceSize.
const ivLength = 16

// Envelope holds an HMAC signing secret and an optional AES-256-GCM key.
type Envelope struct {
	signingSecret []byte
	encryptionKey []byte // nil if not configured
}

// New builds an Envelope. signingSecret must be at least 32 bytes;
// encryptionKey, if non-nil, must be exactly 32 bytes.
func New(signingSecret, encryptionKey []byte) (*Envelope, error) {
	if len(signingSecret) < 32 {
		return nil, errors.New("security: signing secret must be at least 32 bytes")
	}
	if encryptionKey != nil && len(encryptionKey) != 32 {
		return nil, errors.New("security: encryption key must be exactly 32 bytes")
	}
	return &Envelope{signingSecret: signingSecret, encryptionKey: encryptionKey}, nil
}

// Sign returns the hex-encoded HMAC-SHA256 of
// timestampMs || "." || nonce || "." || requestID || "." || payload.
func (e *Envelope) Sign(payload []byte, requestID string, timestampMs int64, nonce string) string {
	mac := hmac.New(sha256.New, e.signingSecret)
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	mac.Write([]byte("."))
	mac.Write([]byte(nonce))
	mac.Write([]byte("."))
	mac.Write([]byte(requestID))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the freshness window and recomputes the signature in
// constant time.
func (e *Envelope) Verify(payload []byte, signature, requestID string, timestampMs int64, nonce string, now time.Time) bool {
	driftMs := now.UnixMilli() - timestampMs
	if driftMs < 0 {
		driftMs = -driftMs
	}
	if time.Duration(driftMs)*time.Millisecond > freshnessWindow {
		return false
	}
	expected := e.Sign(payload, requestID, timestampMs, nonce)
	return constantTimeEqualHex(expected, signature)
}

func constantTimeEqualHex(a, b string) bool {
	ab, errA := hex.DecodeString(a)
	bb, errB := hex.DecodeString(b)
	if errA != nil || errB != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	return subtle.ConstantTimeCompare(ab, bb) == 1
}

// Headers is the security header set attached to outgoing webhooks and
// expected on inbound approval responses.
type Headers struct {
	Signature string
	Timestamp string
	Nonce     string
	RequestID string
}

// ToMap renders Headers as the lower-cased x-agentguard-* header map plus
// the static Content-Type/User-Agent pair.
func (h Headers) ToMap() map[string]string {
	return map[string]string{
		"x-agentguard-signature":  h.Signature,
		"x-agentguard-timestamp":  h.Timestamp,
		"x-agentguard-nonce":      h.Nonce,
		"x-agentguard-request-id": h.RequestID,
		"Content-Type":            "application/json",
		"User-Agent":              "AgentGuard/1.0",
	}
}

// GenerateHeaders signs payload for requestID, minting a fresh timestamp
// and nonce.
func (e *Envelope) GenerateHeaders(payload []byte, requestID string, now time.Time) (Headers, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return Headers{}, fmt.Errorf("security: generating nonce: %w", err)
	}
	timestampMs := now.UnixMilli()
	sig := e.Sign(payload, requestID, timestampMs, nonce)
	return Headers{
		Signature: sig,
		Timestamp: strconv.FormatInt(timestampMs, 10),
		Nonce:     nonce,
		RequestID: requestID,
	}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ValidationResult is the outcome of validating an inbound response's
// security headers.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// ValidateResponse checks presence of the four required headers, parses
// the timestamp, checks the requestId against expectedRequestID, then
// verifies the signature. Nonce uniqueness is NOT checked here — that is
// the HITL coordinator's responsibility via NonceCache, performed only
// after this call succeeds: signature and id-match checks run before
// nonce uniqueness.
func (e *Envelope) ValidateResponse(body []byte, headers Headers, expectedRequestID string, now time.Time) ValidationResult {
	if headers.Signature == "" || headers.Timestamp == "" || headers.Nonce == "" || headers.RequestID == "" {
		return ValidationResult{Valid: false, Reason: "Missing required security headers"}
	}
	timestampMs, err := strconv.ParseInt(headers.Timestamp, 10, 64)
	if err != nil {
		return ValidationResult{Valid: false, Reason: "Invalid timestamp format"}
	}
	if headers.RequestID != expectedRequestID {
		return ValidationResult{Valid: false, Reason: "Request ID mismatch"}
	}
	if !e.Verify(body, headers.Signature, headers.RequestID, timestampMs, headers.Nonce, now) {
		return ValidationResult{Valid: false, Reason: "Invalid signature"}
	}
	return ValidationResult{Valid: true}
}

// EncryptedEnvelope is the wire shape of an encrypted sensitive field.
type EncryptedEnvelope struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	Tag       string `json:"tag"`
}

// Encrypt serializes {"value": v} as JSON and encrypts it with AES-256-GCM
// under a fresh 16-byte IV.
func (e *Envelope) Encrypt(v any) (EncryptedEnvelope, error) {
	if e.encryptionKey == nil {
		return EncryptedEnvelope{}, errors.New("security: encryption key not configured")
	}
	plaintext, err := json.Marshal(map[string]any{"value": v})
	if err != nil {
		return EncryptedEnvelope{}, fmt.Errorf("security: marshaling plaintext: %w", err)
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedEnvelope{}, fmt.Errorf("security: generating iv: %w", err)
	}

	block, err := aes.NewCipher(e.encryptionKey)
	if err != nil {
		return EncryptedEnvelope{}, fmt.Errorf("security: building aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return EncryptedEnvelope{}, fmt.Errorf("security: building gcm: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it back out so the
	// wire envelope carries ciphertext and tag as separate fields.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagSize := gcm.Overhead()
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return EncryptedEnvelope{
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		IV:        base64.StdEncoding.EncodeToString(iv),
		Tag:       base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// Decrypt inverts Encrypt, returning the original JSON-shaped value. Any
// GCM authentication failure (tampered ciphertext, tag, or IV) is surfaced
// as an error.
func (e *Envelope) Decrypt(env EncryptedEnvelope) (any, error) {
	if e.encryptionKey == nil {
		return nil, errors.New("security: encryption key not configured")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("security: decoding ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("security: decoding iv: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return nil, fmt.Errorf("security: decoding tag: %w", err)
	}

	block, err := aes.NewCipher(e.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("security: building aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, fmt.Errorf("security: building gcm: %w", err)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: gcm authentication failed: %w", err)
	}

	var wrapper struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(plaintext, &wrapper); err != nil {
		return nil, fmt.Errorf("security: unmarshaling plaintext: %w", err)
	}
	return wrapper.Value, nil
}
