package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// LocalBlobStorage keeps blobs on the local filesystem and serves them through /api/v1/uploads
type LocalBlobStorage struct {
	root string
}

// NewLocalBlobStorage creates the upload directory if it doesn't exist
func NewLocalBlobStorage(root string) (*LocalBlobStorage, error) {
	if root == "" {
		root = utils.UploadDir
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBlobStorage{root: root}, nil
}

// Root returns the directory blobs are stored under
func (l *LocalBlobStorage) Root() string {
	return l.root
}

// Path resolves key to a file path, rejecting keys that escape the root
func (l *LocalBlobStorage) Path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.Contains(key, "\\") || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

// Upload saves the body to the local filesystem
func (l *LocalBlobStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (err error) {
	fullPath, err := l.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, body); err != nil {
		return fmt.Errorf("failed to save file: %w", err)
	}
	return nil
}

// Metadata stats the file and sniffs its content type
func (l *LocalBlobStorage) Metadata(ctx context.Context, key string) (*BlobObject, error) {
	fullPath, err := l.Path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(fullPath); err == nil {
		contentType = mt.String()
	} else {
		log.Printf("warning: could not detect content type of %s: %v", key, err)
	}

	return &BlobObject{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size(),
		UpdatedAt:   info.ModTime(),
	}, nil
}

// URL returns the API path the file is served from
func (l *LocalBlobStorage) URL(ctx context.Context, key string) (string, error) {
	return utils.LocalFileURL(key), nil
}

// Delete removes the file; a missing file is not an error
func (l *LocalBlobStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	fullPath, err := l.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
