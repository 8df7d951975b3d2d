package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/utils"
	"go.uber.org/zap"
)

// ImageService handles catalog images: upload, URL resolution and deletion
type ImageService interface {
	// UploadImage validates and uploads an image under prefix, returns the storage key
	UploadImage(ctx context.Context, prefix string, file UploadFile) (string, error)

	// GetImageURL generates a URL for accessing an uploaded image
	GetImageURL(ctx context.Context, imageKey string) (string, error)

	// DeleteImage removes an image from storage
	DeleteImage(ctx context.Context, imageKey string) error
}

// BlobImageService implements ImageService on top of BlobStorage
type BlobImageService struct {
	blobs  BlobStorage
	logger *zap.Logger
	now    func() time.Time
}

// NewImageService creates an ImageService backed by blobs
func NewImageService(blobs BlobStorage, logger *zap.Logger) *BlobImageService {
	return &BlobImageService{blobs: blobs, logger: logger, now: time.Now}
}

// UploadImage validates the image file and uploads it
func (s *BlobImageService) UploadImage(ctx context.Context, prefix string, file UploadFile) (string, error) {
	contentType, body, err := prepareUpload(file, utils.ImageRules)
	if err != nil {
		return "", err
	}

	key := utils.BuildStorageKey(file.Name, s.now(), prefix, "image")
	if _, _, err := storeBlob(ctx, s.blobs, s.logger, key, contentType, body, file.Size); err != nil {
		return "", err
	}
	return key, nil
}

// GetImageURL generates a URL for accessing an image
func (s *BlobImageService) GetImageURL(ctx context.Context, imageKey string) (string, error) {
	if imageKey == "" {
		return "", nil
	}

	url, err := s.blobs.URL(ctx, imageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate image URL: %w", err)
	}
	return url, nil
}

// DeleteImage deletes an image from storage
func (s *BlobImageService) DeleteImage(ctx context.Context, imageKey string) error {
	if imageKey == "" {
		return nil
	}

	if err := s.blobs.Delete(ctx, imageKey); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
