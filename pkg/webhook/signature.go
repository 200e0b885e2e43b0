// Package webhook verifies, deduplicates, and dispatches inbound GitHub
// webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignBody computes the X-Hub-Signature-256 header value for a payload.
func SignBody(secret string, body []byte) string {
	sig := hmac.New(sha256.New, []byte(secret))
	sig.Write(body) // nolint: errcheck
	return "sha256=" + hex.EncodeToString(sig.Sum(nil))
}

// VerifySignature checks a delivery's HMAC header against the raw body using
// a constant-time compare.
func VerifySignature(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, "sha256=") {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	sig := hmac.New(sha256.New, []byte(secret))
	sig.Write(body) // nolint: errcheck
	return hmac.Equal(sig.Sum(nil), want)
}
