package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURLDeniesPrivateAddresses(t *testing.T) {
	v := NewURLValidator()

	tests := []struct {
		name string
		url  string
	}{
		{"loopback", "http://127.0.0.1/admin"},
		{"loopback high", "http://127.8.8.8/"},
		{"rfc1918 10", "http://10.0.0.5:8080/"},
		{"rfc1918 172", "https://172.16.1.1/"},
		{"rfc1918 192", "http://192.168.1.1/router"},
		{"link local metadata", "http://169.254.169.254/latest/meta-data/"},
		{"ipv6 loopback", "http://[::1]/"},
		{"ipv6 unique local", "http://[fc00::1]/"},
		{"ipv4 mapped loopback", "http://[::ffff:127.0.0.1]/"},
		{"localhost name", "http://localhost:9200/"},
		{"localhost subdomain", "http://evil.localhost/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.ValidateURL(tt.url), "should deny %s", tt.url)
		})
	}
}

func TestValidateURLRejectsBadShapes(t *testing.T) {
	v := NewURLValidator()

	assert.Error(t, v.ValidateURL(""))
	assert.Error(t, v.ValidateURL("ftp://example.com/file"))
	assert.Error(t, v.ValidateURL("file:///etc/passwd"))
	assert.Error(t, v.ValidateURL("http://"))
	assert.Error(t, v.ValidateURL("://missing-scheme"))
}

func TestValidateURLAllowsPublicLiterals(t *testing.T) {
	// Public IP literals avoid DNS, so these assert the accept path
	// deterministically.
	v := NewURLValidator()
	assert.NoError(t, v.ValidateURL("http://93.184.216.34/"))
	assert.NoError(t, v.ValidateURL("https://8.8.8.8:8443/query?q=1"))
}

func TestValidateURLAllowOverridesDenyList(t *testing.T) {
	v := NewURLValidator()
	require.NoError(t, v.Allow("10.1.2.0/24"))

	assert.NoError(t, v.ValidateURL("http://10.1.2.3/internal"))
	// The exemption is scoped: the rest of 10/8 stays denied.
	assert.Error(t, v.ValidateURL("http://10.9.9.9/"))
}

func TestAllowRejectsMalformedRange(t *testing.T) {
	v := NewURLValidator()
	assert.Error(t, v.Allow("not-a-cidr"))
}
