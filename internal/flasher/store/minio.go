package store

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/abflash-io/abflash/pkg/options"
)

type minioStore struct {
	client     *minio.Client
	bucketName string
}

var _ Store = (*minioStore)(nil)

// NewMinIOStore creates a Store backed by an S3-compatible endpoint.
func NewMinIOStore(opts *options.S3Options) (Store, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &minioStore{
		client:     client,
		bucketName: opts.BucketName,
	}, nil
}

func (s *minioStore) Fetch(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, -1, fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	// GetObject is lazy; Stat forces the first request so missing objects
	// fail here instead of on the first Read.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, -1, fmt.Errorf("failed to stat %s: %w", key, err)
	}

	return obj, stat.Size, nil
}

func (s *minioStore) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("firmware bucket %q does not exist", s.bucketName)
	}
	return nil
}
