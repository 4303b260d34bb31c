// Package security holds the checks that sit between record data and
// the outside world: SSRF guarding for outbound HTTP, webhook request
// validation, screens for record-derived SQL and shell values, path
// sanitation for the file nodes, and redaction for logged records.
// Values on edges are workflow-author and upstream-system controlled,
// so anything rendered from one is treated as untrusted here.
package security

import (
	"encoding/json"
	"net/mail"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidationError names the field that failed and why; the message is
// written to be safe to hand straight back to an HTTP caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// MaxWebhookBodyBytes bounds the JSON body a webhook ingestion request
// may carry; a trigger payload is a record, not a file upload.
const MaxWebhookBodyBytes = 1 << 20

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// InputValidator validates the pieces of an inbound webhook request
// before any workflow runs — the secret_id path segment, the body's
// size and JSON-ness — plus email addresses rendered from records by
// the EmailSend node.
type InputValidator struct{}

func NewInputValidator() *InputValidator { return &InputValidator{} }

// ValidateUUID requires id to be a well-formed UUID; field labels the
// error for the caller.
func (*InputValidator) ValidateUUID(id, field string) error {
	if id == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if !uuidPattern.MatchString(id) {
		return &ValidationError{Field: field, Message: "must be a valid UUID"}
	}
	return nil
}

// ValidateJSONSize rejects bodies over MaxWebhookBodyBytes before any
// parsing work is spent on them.
func (*InputValidator) ValidateJSONSize(body []byte) error {
	if len(body) > MaxWebhookBodyBytes {
		return &ValidationError{Field: "body", Message: "exceeds the maximum size"}
	}
	return nil
}

// ValidateJSON requires body to be well-formed JSON within the size
// bound.
func (v *InputValidator) ValidateJSON(body []byte) error {
	if err := v.ValidateJSONSize(body); err != nil {
		return err
	}
	if !json.Valid(body) {
		return &ValidationError{Field: "body", Message: "is not valid JSON"}
	}
	return nil
}

// ValidateEmail requires addr to parse as a bare RFC 5322 address —
// "Name <a@b>" forms are rejected too, since a rendered recipient
// field should hold exactly an address and nothing else.
func (*InputValidator) ValidateEmail(addr string) error {
	if addr == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	if len(addr) > 254 {
		return &ValidationError{Field: "email", Message: "exceeds the maximum address length"}
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	return nil
}

// SanitizePath cleans a record-derived relative path and rejects null
// bytes, traversal, and absolute paths. A node that deliberately
// accepts absolute paths (FileRead/FileWrite) handles that case itself
// before falling back to this check for relative ones.
func SanitizePath(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", &ValidationError{Field: "path", Message: "contains a null byte"}
	}
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, `\`) {
		return "", &ValidationError{Field: "path", Message: "must be relative"}
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", &ValidationError{Field: "path", Message: "escapes the working directory"}
	}
	return cleaned, nil
}

// sqlScreenPatterns are substrings whose presence in a rendered query
// parameter marks it as a probable injection attempt. Parameter binding
// already keeps these inert; the screen exists so a value that looks
// like an attack is refused loudly instead of bound quietly.
var sqlScreenPatterns = []string{
	"--", ";", "/*", "*/", "@@",
	"union", "select", "insert", "update", "delete", "drop",
	"alter", "create", "exec(", "execute(", "declare", "cast(",
	"sys.", "table",
}

// ContainsSQLInjection reports whether s resembles a SQL injection
// attempt. Defense-in-depth only, never a substitute for binding.
func ContainsSQLInjection(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range sqlScreenPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// shellScreenChars are the characters a remote shell would interpret; a
// rendered SshCommand argument containing any of them is refused rather
// than escaped, since escaping rules differ across shells.
const shellScreenChars = "|&;$><`\\'\"\n\r(){}[]!~"

// ContainsShellMetaChars reports whether s contains any character a
// shell would interpret.
func ContainsShellMetaChars(s string) bool {
	return strings.ContainsAny(s, shellScreenChars)
}

// WebhookSignatureValidator checks the shape of an HMAC signature
// header before the actual comparison happens; the crypto itself lives
// with the webhook server, next to the secret.
type WebhookSignatureValidator struct{}

var hexDigestPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ValidateSignatureFormat requires signature to look like a hex-encoded
// SHA-256 digest, so a malformed header fails with a shape error
// instead of surfacing later as a confusing mismatch.
func (*WebhookSignatureValidator) ValidateSignatureFormat(signature string) error {
	if signature == "" {
		return &ValidationError{Field: "signature", Message: "is required"}
	}
	if !hexDigestPattern.MatchString(signature) {
		return &ValidationError{Field: "signature", Message: "must be a 64-character hex digest"}
	}
	return nil
}
