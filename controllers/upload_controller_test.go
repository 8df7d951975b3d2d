package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUploadRouter(t *testing.T) (*services.LocalBlobStorage, http.Handler) {
	t.Helper()
	storage, err := services.NewLocalBlobStorage(t.TempDir())
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/uploads/*key", NewUploadController(storage).GetUpload)
	return storage, router
}

func TestGetUpload_Success(t *testing.T) {
	storage, router := setupUploadRouter(t)
	key := "orders/o-1/contract/1700000000000_engagement.pdf"
	require.NoError(t, storage.Upload(t.Context(), key, "application/pdf", bytes.NewReader(pdfContent), int64(len(pdfContent))))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/"+key, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=3600", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, pdfContent, w.Body.Bytes())
}

func TestGetUpload_Errors(t *testing.T) {
	storage, router := setupUploadRouter(t)
	require.NoError(t, storage.Upload(t.Context(), "users/u-1/photo.png", "image/png", bytes.NewReader(pngContent), int64(len(pngContent))))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedError  string
	}{
		{name: "Missing file", path: "/uploads/users/u-1/nothing.png", expectedStatus: http.StatusNotFound, expectedError: "FILE_NOT_FOUND"},
		{name: "Empty key", path: "/uploads/", expectedStatus: http.StatusBadRequest, expectedError: "INVALID_REQUEST"},
		{name: "Directory traversal", path: "/uploads/users/..%2F..%2Fetc%2Fpasswd", expectedStatus: http.StatusBadRequest, expectedError: "INVALID_FILENAME"},
		{name: "Directory", path: "/uploads/users/u-1", expectedStatus: http.StatusNotFound, expectedError: "FILE_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.expectedError)
		})
	}
}
