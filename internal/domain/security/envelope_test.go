package security

import (
	"strconv"
	"testing"
	"time"
)

func secretOf(n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = byte('a' + i%26)
	}
	return s
}

func newTestEnvelope(t *testing.T) *Envelope {
	t.Helper()
	env, err := New(secretOf(32), secretOf(32))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return env
}

// Invariant 6: signature round-trip, with tampering flipping it to false.
func TestSignVerifyRoundTrip(t *testing.T) {
	env := newTestEnvelope(t)
	now := time.Now()
	payload := []byte(`{"a":1}`)
	sig := env.Sign(payload, "req-1", now.UnixMilli(), "nonce-1")

	if !env.Verify(payload, sig, "req-1", now.UnixMilli(), "nonce-1", now) {
		t.Fatalf("Verify() = false, want true for untampered inputs")
	}

	cases := map[string]struct {
		payload   []byte
		sig       string
		requestID string
		ts        int64
		nonce     string
	}{
		"tampered payload":   {[]byte(`{"a":2}`), sig, "req-1", now.UnixMilli(), "nonce-1"},
		"tampered requestID": {payload, sig, "req-2", now.UnixMilli(), "nonce-1"},
		"tampered timestamp":  {payload, sig, "req-1", now.UnixMilli() + 1, "nonce-1"},
		"tampered nonce":      {payload, sig, "req-1", now.UnixMilli(), "nonce-2"},
		"tampered signature":  {payload, sig[:len(sig)-2] + "00", "req-1", now.UnixMilli(), "nonce-1"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if env.Verify(c.payload, c.sig, c.requestID, c.ts, c.nonce, now) {
				t.Fatalf("Verify() = true, want false for %s", name)
			}
		})
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	env := newTestEnvelope(t)
	now := time.Now()
	stale := now.Add(-6 * time.Minute)
	payload := []byte(`{}`)
	sig := env.Sign(payload, "req", stale.UnixMilli(), "n")

	if env.Verify(payload, sig, "req", stale.UnixMilli(), "n", now) {
		t.Fatalf("Verify() = true, want false for timestamp outside freshness window")
	}
}

// Invariant 9: signature substitution resistance.
func TestSignatureSubstitutionResistance(t *testing.T) {
	env := newTestEnvelope(t)
	now := time.Now()
	body1 := []byte(`{"decision":"APPROVE"}`)
	headers, err := env.GenerateHeaders(body1, "req-1", now)
	if err != nil {
		t.Fatalf("GenerateHeaders() error: %v", err)
	}

	// Reuse the same signature/timestamp/nonce against a different body and id.
	body2 := []byte(`{"decision":"DENY"}`)
	ts, err := strconv.ParseInt(headers.Timestamp, 10, 64)
	if err != nil {
		t.Fatalf("parsing timestamp: %v", err)
	}
	if env.Verify(body2, headers.Signature, "req-2", ts, headers.Nonce, now) {
		t.Fatalf("Verify() = true, want false for substituted body and request id")
	}
}

// Invariant 7: encryption round-trip; distinct ciphertexts/IVs per call.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	env := newTestEnvelope(t)

	e1, err := env.Encrypt("top-secret-key")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	e2, err := env.Encrypt("top-secret-key")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if e1.Encrypted == e2.Encrypted || e1.IV == e2.IV {
		t.Fatalf("Encrypt() produced identical ciphertext/IV across calls")
	}

	got, err := env.Decrypt(e1)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if got != "top-secret-key" {
		t.Fatalf("Decrypt() = %v, want top-secret-key", got)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	env := newTestEnvelope(t)
	e, err := env.Encrypt(map[string]any{"n": 1.0})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	e.Encrypted = e.Encrypted[:len(e.Encrypted)-2] + "AA"
	if _, err := env.Decrypt(e); err == nil {
		t.Fatalf("Decrypt() = nil error, want GCM authentication failure")
	}
}

func TestEncryptWithoutKeyFailsCleanly(t *testing.T) {
	env, err := New(secretOf(32), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := env.Encrypt("x"); err == nil {
		t.Fatalf("Encrypt() = nil error, want failure without encryption key")
	}
	if _, err := env.Decrypt(EncryptedEnvelope{}); err == nil {
		t.Fatalf("Decrypt() = nil error, want failure without encryption key")
	}
}

func TestValidateResponseMissingHeaders(t *testing.T) {
	env := newTestEnvelope(t)
	res := env.ValidateResponse([]byte(`{}`), Headers{}, "req", time.Now())
	if res.Valid || res.Reason != "Missing required security headers" {
		t.Fatalf("ValidateResponse() = %+v, want missing-headers rejection", res)
	}
}

func TestValidateResponseRequestIDMismatch(t *testing.T) {
	env := newTestEnvelope(t)
	now := time.Now()
	body := []byte(`{}`)
	headers, err := env.GenerateHeaders(body, "req-a", now)
	if err != nil {
		t.Fatalf("GenerateHeaders() error: %v", err)
	}
	res := env.ValidateResponse(body, headers, "req-b", now)
	if res.Valid || res.Reason != "Request ID mismatch" {
		t.Fatalf("ValidateResponse() = %+v, want request id mismatch", res)
	}
}

func TestValidateResponseValid(t *testing.T) {
	env := newTestEnvelope(t)
	now := time.Now()
	body := []byte(`{"ok":true}`)
	headers, err := env.GenerateHeaders(body, "req-x", now)
	if err != nil {
		t.Fatalf("GenerateHeaders() error: %v", err)
	}
	res := env.ValidateResponse(body, headers, "req-x", now)
	if !res.Valid {
		t.Fatalf("ValidateResponse() = %+v, want valid", res)
	}
}

// Invariant 8 (nonce side only here; full flow covered in hitl package).
func TestNonceCacheRejectsDuplicate(t *testing.T) {
	cache := NewNonceCache()
	now := time.Now()
	if dup := cache.CheckAndRecord("n1", now); dup {
		t.Fatalf("first CheckAndRecord() = duplicate, want fresh")
	}
	if dup := cache.CheckAndRecord("n1", now); !dup {
		t.Fatalf("second CheckAndRecord() = fresh, want duplicate")
	}
}

func TestNonceCacheSweepEvictsOld(t *testing.T) {
	cache := NewNonceCache()
	old := time.Now().Add(-11 * time.Minute)
	cache.CheckAndRecord("old", old)
	cache.CheckAndRecord("fresh", time.Now())

	removed := cache.Sweep(time.Now())
	if removed != 1 {
		t.Fatalf("Sweep() removed %d, want 1", removed)
	}
	if cache.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", cache.Size())
	}
}
