package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDestination(t *testing.T) {
	assert.NoError(t, checkDestination("exports", "runs/2026/run-1.json"))
	assert.NoError(t, checkDestination("my-bucket.v2", "a"))

	tests := []struct {
		name   string
		bucket string
		key    string
	}{
		{"empty bucket", "", "k"},
		{"short bucket", "ab", "k"},
		{"uppercase bucket", "Exports", "k"},
		{"bucket with slash", "a/b", "k"},
		{"empty key", "exports", ""},
		{"absolute key", "exports", "/etc/passwd"},
		{"traversal key", "exports", "a/../../b"},
		{"oversized key", "exports", string(make([]byte, 1025))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, checkDestination(tt.bucket, tt.key))
		})
	}
}

func TestNewS3StorageRequiresCredentials(t *testing.T) {
	_, err := NewS3Storage("", "id", "secret")
	assert.Error(t, err)
	_, err = NewS3Storage("eu-west-1", "", "secret")
	assert.Error(t, err)
	_, err = NewS3Storage("eu-west-1", "id", "")
	assert.Error(t, err)

	s, err := NewS3Storage("eu-west-1", "id", "secret")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestNewGCSStorageRejectsMalformedCredentials(t *testing.T) {
	_, err := NewGCSStorage(context.Background(), "", `{}`)
	assert.Error(t, err)
	_, err = NewGCSStorage(context.Background(), "proj", `not json`)
	assert.Error(t, err)
}

func TestNewAzureBlobStorageRequiresAccount(t *testing.T) {
	_, err := NewAzureBlobStorage("", "key")
	assert.Error(t, err)
	_, err = NewAzureBlobStorage("account", "")
	assert.Error(t, err)
}
