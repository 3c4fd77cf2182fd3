package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"MINIO_BUCKET" envDefault:"opsuite-documents"`
	PublicURL string `env:"MINIO_PUBLIC_URL" envDefault:"http://localhost:9000"`
	UseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
}

type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects and creates the bucket if it is missing. The bucket
// stays private: receipts and inspection documents are served via presigned
// URLs.
func NewMinioStore(ctx context.Context, cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, publicURL: cfg.PublicURL}, nil
}

func (s *MinioStore) Put(ctx context.Context, prefix, filename, contentType string, r io.Reader, size int64) (*Object, error) {
	key := ObjectKey(prefix, filename)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	return &Object{
		Key:         key,
		URL:         fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.publicURL, "/"), s.bucket, key),
		FileName:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *MinioStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	reqParams := make(url.Values)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, reqParams)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
