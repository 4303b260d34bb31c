package security

import (
	"strings"
	"unicode"
)

// OutputSanitizer scrubs strings headed into records. HttpRequest runs
// a non-JSON response body through it before wrapping the body as a
// string record, so control characters from a misbehaving external
// service never ride an edge into downstream nodes.
type OutputSanitizer struct{}

func NewOutputSanitizer() *OutputSanitizer { return &OutputSanitizer{} }

// SanitizeForJSON strips control characters from s, keeping the
// whitespace that carries meaning in a text body (newline, carriage
// return, tab).
func (*OutputSanitizer) SanitizeForJSON(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// redactedFieldMarkers flag a record field as credential-shaped by
// substring match on its lowercased name. EdgeData events carry whole
// records, and a workflow that moves an api_key through an edge should
// not see it echoed by the CLI trace printer.
var redactedFieldMarkers = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "private_key", "privatekey",
	"auth", "bearer", "cookie", "session",
}

// LogSanitizer redacts credential-shaped fields from a record's native
// map form before it is logged or printed.
type LogSanitizer struct{}

func NewLogSanitizer() *LogSanitizer { return &LogSanitizer{} }

// SanitizeForLog returns a copy of fields with every credential-shaped
// key's value replaced by a redaction marker, recursing into nested
// maps so a secret buried inside a sub-record is covered too.
func (s *LogSanitizer) SanitizeForLog(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		switch {
		case isRedactedField(key):
			out[key] = "[redacted]"
		default:
			if nested, ok := value.(map[string]any); ok {
				out[key] = s.SanitizeForLog(nested)
			} else {
				out[key] = value
			}
		}
	}
	return out
}

func isRedactedField(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range redactedFieldMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
