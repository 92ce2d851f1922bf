package source

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"semlayer/internal/config"
)

var _ ObjectReader = (*AzureReader)(nil)

// AzureReader reads blobs from Azure Blob Storage. Only account-key
// authentication is supported.
type AzureReader struct {
	client *azblob.Client
}

// NewAzureReader creates a reader from AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY.
func NewAzureReader(cfg *config.Config) (*AzureReader, error) {
	if cfg == nil || cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
		return nil, fmt.Errorf("AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for az:// sources")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureReader{client: client}, nil
}

// ReadObject implements ObjectReader. bucket is the container name.
func (r *AzureReader) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := r.client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		return nil, fmt.Errorf("download az://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	return io.ReadAll(resp.Body)
}
