package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"semlayer/internal/config"
)

var _ ObjectReader = (*S3Reader)(nil)

// S3Reader reads objects from S3-compatible storage.
type S3Reader struct {
	client *s3.Client
}

// NewS3Reader creates a reader from the S3_* settings. Endpoints without a
// scheme are assumed to be HTTPS and are addressed path-style.
func NewS3Reader(cfg *config.Config) (*S3Reader, error) {
	if cfg == nil || !cfg.HasS3Config() {
		return nil, fmt.Errorf("S3 config is incomplete")
	}

	endpoint := *cfg.S3Endpoint
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	client := s3.New(s3.Options{
		Region: *cfg.S3Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			*cfg.S3KeyID, *cfg.S3Secret, "",
		),
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	})
	return &S3Reader{client: client}, nil
}

// ReadObject implements ObjectReader.
func (r *S3Reader) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close() //nolint:errcheck
	return io.ReadAll(out.Body)
}
