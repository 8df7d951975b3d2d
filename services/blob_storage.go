package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	appConfig "github.com/kendall-kelly/consulting-portal-api/config"
)

//go:generate mockgen -source=blob_storage.go -destination=blob_storage_gomock.go -package=services

// ErrBlobNotFound is returned when a key has no stored object
var ErrBlobNotFound = errors.New("blob not found")

// BlobObject describes a stored object
type BlobObject struct {
	Key         string
	ContentType string
	Size        int64
	UpdatedAt   time.Time
}

// BlobStorage is the blob adapter used for documents, chat attachments and catalog images.
// Delete is idempotent: deleting a missing key succeeds.
type BlobStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Metadata(ctx context.Context, key string) (*BlobObject, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewBlobStorage builds the provider selected by STORAGE_PROVIDER
func NewBlobStorage(ctx context.Context, cfg *appConfig.Config) (BlobStorage, error) {
	switch cfg.StorageProvider {
	case "s3":
		return NewS3BlobStorage(ctx, cfg)
	case "gcs":
		opts, err := appConfig.GoogleClientOptions(cfg)
		if err != nil {
			return nil, err
		}
		return NewGCSBlobStorage(ctx, cfg.GCSBucket, opts...)
	case "local", "":
		return NewLocalBlobStorage(cfg.UploadDir)
	}
	return nil, fmt.Errorf("unsupported storage provider %q", cfg.StorageProvider)
}
