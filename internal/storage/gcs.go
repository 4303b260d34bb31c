package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStorage writes objects to Google Cloud Storage using an inline
// service-account credentials blob from the secret map.
type GCSStorage struct {
	client *gcs.Client
}

func NewGCSStorage(ctx context.Context, projectID, credentialsJSON string) (*GCSStorage, error) {
	if projectID == "" {
		return nil, &ValidationError{Field: "project_id", Message: "is required"}
	}
	if !json.Valid([]byte(credentialsJSON)) {
		return nil, &ValidationError{Field: "credentials_json", Message: "must be a JSON service-account key"}
	}

	client, err := gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCSStorage{client: client}, nil
}

func (g *GCSStorage) Upload(ctx context.Context, bucket, key string, data io.Reader, opts *UploadOptions) error {
	if err := checkDestination(bucket, key); err != nil {
		return err
	}

	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if opts != nil {
		w.ContentType = opts.ContentType
		if len(opts.Metadata) > 0 {
			w.Metadata = opts.Metadata
		}
	}

	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("storage: gcs write %s/%s: %w", bucket, key, err)
	}
	// The object only materializes on a clean Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: gcs commit %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *GCSStorage) Close() error { return g.client.Close() }
