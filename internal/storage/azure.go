package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureBlobStorage writes blobs to an Azure storage account with
// shared-key auth; bucket maps to container, key to blob name.
type AzureBlobStorage struct {
	client *azblob.Client
}

func NewAzureBlobStorage(accountName, accountKey string) (*AzureBlobStorage, error) {
	if accountName == "" {
		return nil, &ValidationError{Field: "account_name", Message: "is required"}
	}
	if accountKey == "" {
		return nil, &ValidationError{Field: "account_key", Message: "is required"}
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("storage: azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: azure client: %w", err)
	}
	return &AzureBlobStorage{client: client}, nil
}

func (a *AzureBlobStorage) Upload(ctx context.Context, bucket, key string, data io.Reader, opts *UploadOptions) error {
	if err := checkDestination(bucket, key); err != nil {
		return err
	}

	var streamOpts azblob.UploadStreamOptions
	if opts != nil {
		if opts.ContentType != "" {
			streamOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(opts.ContentType)}
		}
		if len(opts.Metadata) > 0 {
			meta := make(map[string]*string, len(opts.Metadata))
			for k, v := range opts.Metadata {
				meta[k] = to.Ptr(v)
			}
			streamOpts.Metadata = meta
		}
	}

	if _, err := a.client.UploadStream(ctx, bucket, key, data, &streamOpts); err != nil {
		return fmt.Errorf("storage: azure upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Close is a no-op; the Azure client manages its own transport.
func (a *AzureBlobStorage) Close() error { return nil }
