package controllers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// ConfirmationRequest carries the code destructive operations must echo back
type ConfirmationRequest struct {
	ConfirmationCode string `json:"confirmation_code"`
}

// respondError writes err in the error envelope
func respondError(c *gin.Context, err error) {
	utils.AbortWithError(c, err)
}

// bindJSON binds the body into req, writing a VALIDATION_ERROR on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, utils.ValidationError("Invalid request data", err).WithDetails(err.Error()))
		return false
	}
	return true
}

// requireConfirmation checks the confirmation code in the request body
func requireConfirmation(c *gin.Context, expected string) bool {
	var req ConfirmationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, utils.ValidationError("Invalid request data", err).WithDetails(err.Error()))
			return false
		}
	}
	if expected != "" && strings.TrimSpace(req.ConfirmationCode) != expected {
		respondError(c, utils.NewAppError(utils.CodeConfirmation,
			"Confirmation code is missing or incorrect", http.StatusBadRequest, nil))
		return false
	}
	return true
}

// formFile opens the multipart file in field. The caller closes the returned file.
func formFile(c *gin.Context, field string) (services.UploadFile, multipart.File, bool) {
	header, err := c.FormFile(field)
	if err != nil {
		respondError(c, utils.NewAppError("NO_FILE", "No file was uploaded", http.StatusBadRequest, err))
		return services.UploadFile{}, nil, false
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, utils.Internal(utils.CodeInternal, "Failed to read uploaded file", err))
		return services.UploadFile{}, nil, false
	}
	return services.UploadFile{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, file, true
}
