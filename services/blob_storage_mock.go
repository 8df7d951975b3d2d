package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type memoryBlob struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// MemoryBlobStorage is an in-memory BlobStorage for tests and local runs.
// Setting one of the Fail* fields makes the matching operation return that error.
type MemoryBlobStorage struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob

	FailUpload   error
	FailMetadata error
	FailURL      error
	FailDelete   error

	uploads int
}

// NewMemoryBlobStorage creates an empty in-memory store
func NewMemoryBlobStorage() *MemoryBlobStorage {
	return &MemoryBlobStorage{blobs: make(map[string]memoryBlob)}
}

// Upload stores a copy of body
func (m *MemoryBlobStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	if m.FailUpload != nil {
		return m.FailUpload
	}

	content, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	m.blobs[key] = memoryBlob{data: content, contentType: contentType, updatedAt: time.Now()}
	return nil
}

// Metadata reports what was stored under key
func (m *MemoryBlobStorage) Metadata(ctx context.Context, key string) (*BlobObject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailMetadata != nil {
		return nil, m.FailMetadata
	}

	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return &BlobObject{
		Key:         key,
		ContentType: blob.contentType,
		Size:        int64(len(blob.data)),
		UpdatedAt:   blob.updatedAt,
	}, nil
}

// URL returns a fake presigned URL for a stored key
func (m *MemoryBlobStorage) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	if m.FailURL != nil {
		return "", m.FailURL
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// Delete removes key
func (m *MemoryBlobStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDelete != nil {
		return m.FailDelete
	}
	delete(m.blobs, key)
	return nil
}

// GetUploadedFiles returns all stored blobs (for testing assertions)
func (m *MemoryBlobStorage) GetUploadedFiles() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent race conditions
	files := make(map[string][]byte, len(m.blobs))
	for k, v := range m.blobs {
		files[k] = v.data
	}
	return files
}

// FileExists checks if a blob exists in memory
func (m *MemoryBlobStorage) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.blobs[key]
	return exists
}

// UploadCount is the number of Upload calls, failed ones included
func (m *MemoryBlobStorage) UploadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}

// Clear removes all blobs
func (m *MemoryBlobStorage) Clear() {
	m.mu.Lock()
	m.blobs = make(map[string]memoryBlob)
	m.uploads = 0
	m.mu.Unlock()
}
