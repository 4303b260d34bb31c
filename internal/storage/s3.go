package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Storage writes objects to AWS S3 with static credentials, the form
// the engine's secret map carries them in.
type S3Storage struct {
	client *s3.S3
}

func NewS3Storage(region, accessKeyID, secretAccessKey string) (*S3Storage, error) {
	switch {
	case region == "":
		return nil, &ValidationError{Field: "region", Message: "is required"}
	case accessKeyID == "":
		return nil, &ValidationError{Field: "access_key_id", Message: "is required"}
	case secretAccessKey == "":
		return nil, &ValidationError{Field: "secret_access_key", Message: "is required"}
	}

	sess, err := session.NewSession(aws.NewConfig().
		WithRegion(region).
		WithCredentials(credentials.NewStaticCredentials(accessKeyID, secretAccessKey, "")))
	if err != nil {
		return nil, fmt.Errorf("storage: s3 session: %w", err)
	}
	return &S3Storage{client: s3.New(sess)}, nil
}

func (s *S3Storage) Upload(ctx context.Context, bucket, key string, data io.Reader, opts *UploadOptions) error {
	if err := checkDestination(bucket, key); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   aws.ReadSeekCloser(data),
	}
	if opts != nil {
		if opts.ContentType != "" {
			input.ContentType = aws.String(opts.ContentType)
		}
		if len(opts.Metadata) > 0 {
			input.Metadata = aws.StringMap(opts.Metadata)
		}
	}

	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return fmt.Errorf("storage: s3 put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Close is a no-op; the v1 SDK client holds no connections of its own.
func (s *S3Storage) Close() error { return nil }
