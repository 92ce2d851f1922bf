package source

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"semlayer/internal/config"
)

var _ ObjectReader = (*GCSReader)(nil)

// GCSReader reads objects from Google Cloud Storage.
type GCSReader struct {
	client *storage.Client
}

// NewGCSReader creates a reader authenticated with GCS_KEY_FILE, or with
// application default credentials when no key file is configured.
func NewGCSReader(ctx context.Context, cfg *config.Config) (*GCSReader, error) {
	var opts []option.ClientOption
	if cfg != nil && cfg.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSReader{client: client}, nil
}

// ReadObject implements ObjectReader.
func (r *GCSReader) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := r.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, key, err)
	}
	defer rc.Close() //nolint:errcheck
	return io.ReadAll(rc)
}
