package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxFileSize is the ceiling for order documents and chat attachments, 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024
	// MaxUserFileSize is the ceiling for profile documents, 20MB in bytes
	MaxUserFileSize = 20 * 1024 * 1024
	// SniffLength is how many leading bytes are inspected for content detection
	SniffLength = 3072
)

var (
	// UploadDir is the directory where the local storage provider keeps blobs
	// Can be overridden for testing
	UploadDir = "./uploads"

	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// AllowedDocumentTypes is the MIME allow-list for order documents
var AllowedDocumentTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// containerTypes are detections too generic to trust over the declared type
var containerTypes = []string{
	"application/zip",
	"application/x-ole-storage",
	"application/octet-stream",
}

// UploadRules describe what a given upload flow accepts. A nil AllowedTypes accepts any type.
type UploadRules struct {
	MaxSize      int64
	AllowedTypes []string
}

// OrderDocumentRules apply to order documents and chat attachments
var OrderDocumentRules = UploadRules{MaxSize: MaxFileSize, AllowedTypes: AllowedDocumentTypes}

// ChatAttachmentRules apply to files sent in the order chat
var ChatAttachmentRules = UploadRules{MaxSize: MaxFileSize}

// UserDocumentRules apply to profile documents
var UserDocumentRules = UploadRules{MaxSize: MaxUserFileSize}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateFileSize rejects empty files and files over the ceiling
func ValidateFileSize(size int64, rules UploadRules) error {
	if size <= 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: "File is empty",
		}
	}
	if rules.MaxSize > 0 && size > rules.MaxSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", rules.MaxSize/(1024*1024)),
		}
	}
	return nil
}

// DetectContentType sniffs the MIME type from the leading bytes of a file.
// Zip and OLE containers fall back to the declared type since Office formats share them.
func DetectContentType(head []byte, declared string) string {
	detected := mimetype.Detect(head)
	declared = baseMediaType(declared)
	for _, generic := range containerTypes {
		if detected.Is(generic) && declared != "" {
			return declared
		}
	}
	return baseMediaType(detected.String())
}

// ValidateDocumentFile checks size and type before anything is written to storage
// and returns the content type to store with the blob
func ValidateDocumentFile(size int64, head []byte, declared string, rules UploadRules) (string, error) {
	if err := ValidateFileSize(size, rules); err != nil {
		return "", err
	}

	contentType := DetectContentType(head, declared)
	if rules.AllowedTypes == nil {
		return contentType, nil
	}
	for _, allowed := range rules.AllowedTypes {
		if contentType == allowed {
			return contentType, nil
		}
	}
	return "", &FileUploadError{
		Code:    "INVALID_FILE_TYPE",
		Message: fmt.Sprintf("File type %s is not allowed. Upload PDF, image, Word or Excel files", contentType),
	}
}

// SanitizeFileName strips any path and replaces characters unsafe in storage keys
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// BuildStorageKey joins prefix segments with a timestamped file name,
// e.g. orders/{orderId}/contract/1700000000000000000_deed.pdf
func BuildStorageKey(name string, now time.Time, segments ...string) string {
	file := fmt.Sprintf("%d_%s", now.UnixNano(), SanitizeFileName(name))
	return strings.Join(append(segments, file), "/")
}

// LocalFileURL returns the URL path the API serves locally stored blobs from
func LocalFileURL(key string) string {
	if key == "" {
		return ""
	}
	return fmt.Sprintf("/api/v1/uploads/%s", key)
}

func baseMediaType(t string) string {
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// ImageRules apply to service catalog images
var ImageRules = UploadRules{
	MaxSize:      MaxFileSize,
	AllowedTypes: []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
}
