package security

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUUID(t *testing.T) {
	v := NewInputValidator()

	require.NoError(t, v.ValidateUUID("4f2a0c6e-9d1b-4b7a-8f35-1c2d3e4f5a6b", "secret_id"))

	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"not a uuid", "hello"},
		{"missing segment", "4f2a0c6e-9d1b-4b7a-8f35"},
		{"bad version digit", "4f2a0c6e-9d1b-9b7a-8f35-1c2d3e4f5a6b"},
		{"bad variant digit", "4f2a0c6e-9d1b-4b7a-0f35-1c2d3e4f5a6b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUUID(tt.id, "secret_id")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "secret_id")
		})
	}
}

func TestValidateJSON(t *testing.T) {
	v := NewInputValidator()

	assert.NoError(t, v.ValidateJSON([]byte(`{"ok": [1, 2, 3]}`)))
	assert.Error(t, v.ValidateJSON([]byte(`{"broken`)))
	assert.Error(t, v.ValidateJSON(nil))

	oversized := bytes.Repeat([]byte("a"), MaxWebhookBodyBytes+1)
	assert.Error(t, v.ValidateJSONSize(oversized))
	assert.NoError(t, v.ValidateJSONSize([]byte(`{}`)))
}

func TestValidateEmail(t *testing.T) {
	v := NewInputValidator()

	assert.NoError(t, v.ValidateEmail("ada@example.com"))
	assert.NoError(t, v.ValidateEmail("ada.lovelace+wf@mail.example.com"))

	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"no at sign", "not-an-address"},
		{"display name form", "Ada <ada@example.com>"},
		{"bare domain", "@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.ValidateEmail(tt.addr))
		})
	}
}

func TestSanitizePath(t *testing.T) {
	got, err := SanitizePath("data/./out.txt")
	require.NoError(t, err)
	assert.Equal(t, "data/out.txt", got)

	tests := []struct {
		name string
		path string
	}{
		{"traversal", "../../etc/passwd"},
		{"traversal after clean", "data/../../../etc/passwd"},
		{"absolute", "/etc/passwd"},
		{"null byte", "data\x00.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizePath(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestContainsSQLInjection(t *testing.T) {
	flagged := []string{
		"x'; DROP TABLE users; --",
		"1 UNION SELECT secret FROM vault",
		"value /* sneak */",
	}
	for _, s := range flagged {
		assert.True(t, ContainsSQLInjection(s), "should flag %q", s)
	}

	clean := []string{"ada", "order 42", "2026-08-02"}
	for _, s := range clean {
		assert.False(t, ContainsSQLInjection(s), "should pass %q", s)
	}
}

func TestContainsShellMetaChars(t *testing.T) {
	assert.True(t, ContainsShellMetaChars("/tmp; rm -rf /"))
	assert.True(t, ContainsShellMetaChars("$(whoami)"))
	assert.True(t, ContainsShellMetaChars("a|b"))
	assert.False(t, ContainsShellMetaChars("/var/log/app.log"))
	assert.False(t, ContainsShellMetaChars("plain-value_1.2"))
}

func TestValidateSignatureFormat(t *testing.T) {
	v := &WebhookSignatureValidator{}

	require.NoError(t, v.ValidateSignatureFormat("a3f1b2c4d5e6a7f8a3f1b2c4d5e6a7f8a3f1b2c4d5e6a7f8a3f1b2c4d5e6a7f8"))
	assert.Error(t, v.ValidateSignatureFormat(""))
	assert.Error(t, v.ValidateSignatureFormat("tooshort"))
	assert.Error(t, v.ValidateSignatureFormat("zz"+string(bytes.Repeat([]byte("a"), 62))))
}

func TestSanitizeForJSONStripsControlCharacters(t *testing.T) {
	s := NewOutputSanitizer()
	assert.Equal(t, "ab", s.SanitizeForJSON("a\x00\x07b"))
	assert.Equal(t, "line1\nline2\ttabbed", s.SanitizeForJSON("line1\nline2\ttabbed"))
	assert.Equal(t, "plain", s.SanitizeForJSON("plain"))
}

func TestSanitizeForLogRedactsCredentialFields(t *testing.T) {
	s := NewLogSanitizer()
	in := map[string]any{
		"name":    "ada",
		"api_key": "sk-123",
		"nested": map[string]any{
			"Password": "hunter2",
			"count":    3,
		},
	}

	out := s.SanitizeForLog(in)
	assert.Equal(t, "ada", out["name"])
	assert.Equal(t, "[redacted]", out["api_key"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "[redacted]", nested["Password"])
	assert.Equal(t, 3, nested["count"])

	// The input map is left untouched.
	assert.Equal(t, "sk-123", in["api_key"])
}
