package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"regexp"
	"strings"
)

// Attribute keys the Redactor treats specially.
const (
	// KeyIdentity holds the identity a limiter keyed a decision on.
	KeyIdentity = "identity"

	// KeyAPIKey and KeyAuthorization hold credentials.
	KeyAPIKey        = "api_key"
	KeyAuthorization = "authorization"
)

// Masked replaces secret values.
const Masked = "***"

// bearerPattern matches bearer tokens embedded in free-form strings such as
// error messages.
var bearerPattern = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`)

// Redactor rewrites log attributes before they are written.
//
// Credentials are always masked. Identities are replaced by their
// Fingerprint when identity redaction is on, so records about the same
// identity can still be correlated.
type Redactor struct {
	redactIdentities bool
}

// NewRedactor creates a Redactor.
func NewRedactor(redactIdentities bool) *Redactor {
	return &Redactor{redactIdentities: redactIdentities}
}

// ReplaceAttr has the signature of slog.HandlerOptions.ReplaceAttr.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch strings.ToLower(a.Key) {
	case KeyIdentity:
		if r.redactIdentities && a.Value.Kind() == slog.KindString {
			return slog.String(a.Key, Fingerprint(a.Value.String()))
		}
		return a
	case KeyAPIKey, KeyAuthorization:
		return slog.String(a.Key, Masked)
	}

	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.Contains(s, "Bearer") {
			return slog.String(a.Key, bearerPattern.ReplaceAllString(s, "Bearer "+Masked))
		}
	}
	return a
}

// Fingerprint returns a short stable digest of s: the first 16 hex
// characters of its SHA-256. The empty string maps to itself.
func Fingerprint(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
