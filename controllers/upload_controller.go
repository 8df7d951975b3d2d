package controllers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// UploadController serves blobs written by the local storage provider
type UploadController struct {
	storage *services.LocalBlobStorage
}

// NewUploadController creates an UploadController
func NewUploadController(storage *services.LocalBlobStorage) *UploadController {
	return &UploadController{storage: storage}
}

// GetUpload handles GET /api/v1/uploads/*key
func (h *UploadController) GetUpload(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	if key == "" {
		respondError(c, utils.NewAppError("INVALID_REQUEST", "File key is required", http.StatusBadRequest, nil))
		return
	}

	// Security: Prevent directory traversal attacks
	path, err := h.storage.Path(key)
	if err != nil {
		respondError(c, utils.NewAppError("INVALID_FILENAME", "Invalid filename", http.StatusBadRequest, err))
		return
	}

	meta, err := h.storage.Metadata(c.Request.Context(), key)
	if errors.Is(err, services.ErrBlobNotFound) {
		respondError(c, utils.NewAppError("FILE_NOT_FOUND", "File not found", http.StatusNotFound, err))
		return
	}
	if err != nil {
		respondError(c, utils.Internal(utils.CodeStorage, "Failed to read file", err))
		return
	}
	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		respondError(c, utils.NewAppError("FILE_NOT_FOUND", "File not found", http.StatusNotFound, nil))
		return
	}

	c.Header("Content-Type", meta.ContentType)
	c.Header("Cache-Control", "private, max-age=3600")
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(path)
}
