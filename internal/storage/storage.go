// Package storage backs the FileUpload node with provider-switched
// object stores (S3, GCS, Azure Blob) and the MongoWrite node with a
// document store. The node writes one object per input record; nothing
// here lists, deletes, or reads back — a workflow that needs an
// object's content fetches it with HttpRequest or FileRead.
package storage

import (
	"context"
	"io"
	"regexp"
	"strings"
)

// FileStorage is the object-store surface FileUpload runs against.
type FileStorage interface {
	// Upload writes data under bucket/key. opts may be nil.
	Upload(ctx context.Context, bucket, key string, data io.Reader, opts *UploadOptions) error
	// Close releases the provider's connections, if it holds any.
	Close() error
}

// UploadOptions carries the optional object attributes a workflow can
// set on an upload.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ValidationError reports a rejected destination before any provider
// call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// bucketPattern covers the naming rules S3, GCS, and Azure containers
// share: 3-63 chars, lowercase alphanumeric with interior dots/hyphens.
var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// checkDestination validates a bucket/key pair once for every provider,
// so a templated destination rendered from record data cannot name an
// invalid bucket or smuggle traversal into the key.
func checkDestination(bucket, key string) error {
	if !bucketPattern.MatchString(bucket) {
		return &ValidationError{Field: "bucket", Message: "name must be 3-63 lowercase alphanumeric characters with interior dots or hyphens"}
	}
	switch {
	case key == "":
		return &ValidationError{Field: "key", Message: "is required"}
	case len(key) > 1024:
		return &ValidationError{Field: "key", Message: "exceeds 1024 characters"}
	case strings.HasPrefix(key, "/"):
		return &ValidationError{Field: "key", Message: "must not start with /"}
	case strings.Contains(key, ".."):
		return &ValidationError{Field: "key", Message: "must not contain .."}
	}
	return nil
}
