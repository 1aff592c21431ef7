// Package storage reads objects from S3-compatible storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/rowens2025/powervisualize/internal/infrastructure/config"
)

// ErrObjectNotFound is returned when the bucket or key does not exist
var ErrObjectNotFound = errors.New("object not found")

// maxObjectSize bounds what GetObject will read into memory
const maxObjectSize = 8 << 20

// S3ObjectReader reads whole objects using AWS S3 SDK v2. It works with any
// S3-compatible endpoint (AWS S3, MinIO, R2).
type S3ObjectReader struct {
	client *s3.Client
	logger *zap.Logger
}

// S3ObjectReaderOption is a functional option for configuring S3ObjectReader
type S3ObjectReaderOption func(*S3ObjectReader)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ObjectReaderOption {
	return func(s *S3ObjectReader) {
		s.logger = logger
	}
}

// NewS3ObjectReader creates a reader from configuration. Static credentials
// are used when both keys are set; otherwise the default AWS credential
// chain applies.
func NewS3ObjectReader(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3ObjectReaderOption) (*S3ObjectReader, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	reader := &S3ObjectReader{client: client, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(reader)
	}
	return reader, nil
}

// GetObject reads the object at bucket/key
func (s *S3ObjectReader) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" || key == "" {
		return nil, errors.New("bucket and key are required")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var noSuchBucket *types.NoSuchBucket
		if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to get object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object s3://%s/%s: %w", bucket, key, err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("object s3://%s/%s exceeds %d bytes", bucket, key, maxObjectSize)
	}

	s.logger.Debug("Fetched object", zap.String("bucket", bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	return data, nil
}

// ParseS3URL splits s3://bucket/key into its parts
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid object URL %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid object URL %q: scheme must be s3", raw)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid object URL %q: bucket and key are required", raw)
	}
	return bucket, key, nil
}
