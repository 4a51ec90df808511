// Package artifact downloads model artifacts from S3-compatible object
// stores such as AWS S3, DigitalOcean Spaces or MinIO.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/config"
	"github.com/fyrsmithlabs/pacer/internal/logging"
)

const defaultRegion = "us-east-1"

// ErrNotConfigured is returned when the artifact section lacks a bucket,
// key or credentials.
var ErrNotConfigured = errors.New("artifact store not configured")

// S3Fetcher downloads single objects to local files.
type S3Fetcher struct {
	client *s3.Client
	logger *logging.Logger
}

// NewS3Fetcher builds a client from static credentials. A custom endpoint
// switches the client to that host; PathStyle forces bucket-in-path
// addressing for stores that do not support virtual hosts.
func NewS3Fetcher(ctx context.Context, cfg config.ArtifactConfig, logger *logging.Logger) (*S3Fetcher, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey.Value(), cfg.SecretKey.Value(), "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Fetcher{client: client, logger: logger.Named("artifact")}, nil
}

// Fetch downloads bucket/key to dest. The object is written to a temporary
// file next to dest and renamed into place, so dest is either the previous
// file or the complete object.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key, dest string) error {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	n, err := io.Copy(tmp, out.Body)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}

	f.logger.Info(ctx, "model artifact downloaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.String("dest", dest),
		zap.Int64("bytes", n),
	)
	return nil
}
