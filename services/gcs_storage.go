package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBlobStorage stores blobs in a Google Cloud Storage bucket
type GCSBlobStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSBlobStorage opens a storage client for bucket
func NewGCSBlobStorage(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSBlobStorage, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSBlobStorage{client: client, bucket: bucket}, nil
}

// Upload streams body into the bucket
func (g *GCSBlobStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	wc := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "private, max-age=3600"

	if _, err := io.Copy(wc, body); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to copy file to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// Metadata reads the object's attributes
func (g *GCSBlobStorage) Metadata(ctx context.Context, key string) (*BlobObject, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read GCS metadata: %w", err)
	}
	return &BlobObject{
		Key:         key,
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		UpdatedAt:   attrs.Updated,
	}, nil
}

// URL returns a V4 signed GET URL
func (g *GCSBlobStorage) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	url, err := g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(PresignExpiry),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

// Delete removes the object; a missing object is not an error
func (g *GCSBlobStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Close releases the storage client
func (g *GCSBlobStorage) Close() error {
	return g.client.Close()
}
