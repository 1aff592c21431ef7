package fallback

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rowens2025/powervisualize/internal/infrastructure/storage"
)

// Source reads the raw fallback document
type Source interface {
	Read(ctx context.Context) ([]byte, error)
	String() string
}

// FileSource reads the document from the local filesystem
type FileSource struct {
	Path string
}

func (s FileSource) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	return data, nil
}

func (s FileSource) String() string { return s.Path }

// ObjectGetter is the subset of storage.S3ObjectReader used here
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3Source reads the document from object storage
type S3Source struct {
	Bucket string
	Key    string
	Client ObjectGetter
}

func (s S3Source) Read(ctx context.Context) ([]byte, error) {
	return s.Client.GetObject(ctx, s.Bucket, s.Key)
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

// ParseSource maps a configured location to a Source. s3:// locations need
// a client; anything else is a file path.
func ParseSource(location string, client ObjectGetter) (Source, error) {
	if !strings.HasPrefix(location, "s3://") {
		if location == "" {
			return nil, fmt.Errorf("fallback source is empty")
		}
		return FileSource{Path: location}, nil
	}
	bucket, key, err := storage.ParseS3URL(location)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("fallback source %s needs object storage configured", location)
	}
	return S3Source{Bucket: bucket, Key: key, Client: client}, nil
}
