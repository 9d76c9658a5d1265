// Package objectstore provides blob storage backed by MinIO/S3.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is the narrow blob interface the pipeline depends on.
type Store interface {
	Get(ctx context.Context, bucket, key string) (data []byte, contentType string, err error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
}

// MinioStore implements Store for MinIO and S3-compatible endpoints.
type MinioStore struct {
	client *minio.Client
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore connects to the endpoint and ensures the given buckets exist.
func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, buckets ...string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, bucket := range buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
			}
		}
	}

	return &MinioStore{client: client}, nil
}

func (m *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object: %w", err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read object: %w", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat object: %w", err)
	}
	return data, stat.ContentType, nil
}

func (m *MinioStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (m *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// RecipeImagePath returns the recipe-scoped key for a hero image.
func RecipeImagePath(recipeID int64, suffix string) string {
	return fmt.Sprintf("recipes/%d/cover%s", recipeID, suffix)
}

// PublicURL joins the public base URL with an object key.
func PublicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
