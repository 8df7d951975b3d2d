package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// DocumentIDsRequest selects documents for batch operations
type DocumentIDsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

// DocumentController serves order documents and profile documents
type DocumentController struct {
	documents *services.DocumentService
}

// NewDocumentController creates a DocumentController
func NewDocumentController(documents *services.DocumentService) *DocumentController {
	return &DocumentController{documents: documents}
}

// UploadOrderDocument handles POST /api/v1/orders/:id/documents (multipart: file, category)
func (h *DocumentController) UploadOrderDocument(c *gin.Context) {
	upload, file, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	doc, err := h.documents.UploadOrderDocument(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"),
		upload, models.DocumentCategory(c.PostForm("category")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, doc)
}

// ListOrderDocuments handles GET /api/v1/orders/:id/documents?category=
func (h *DocumentController) ListOrderDocuments(c *gin.Context) {
	docs, err := h.documents.ListOrderDocuments(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"),
		models.DocumentCategory(c.Query("category")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, docs)
}

// CategoryCounts handles GET /api/v1/orders/:id/documents/categories
func (h *DocumentController) CategoryCounts(c *gin.Context) {
	counts, err := h.documents.CategoryCounts(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, counts)
}

// DeleteOrderDocument handles DELETE /api/v1/orders/:id/documents/:docId
func (h *DocumentController) DeleteOrderDocument(c *gin.Context) {
	err := h.documents.DeleteOrderDocument(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), c.Param("docId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Document deleted",
	})
}

// BatchDeleteOrderDocuments handles POST /api/v1/orders/:id/documents/batch-delete.
// A partial failure answers 207 with per-document results.
func (h *DocumentController) BatchDeleteOrderDocuments(c *gin.Context) {
	var req DocumentIDsRequest
	if !bindJSON(c, &req) {
		return
	}

	results, err := h.documents.BatchDeleteOrderDocuments(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.DocumentIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, results)
}

// DownloadLinks handles POST /api/v1/orders/:id/documents/download-links
func (h *DocumentController) DownloadLinks(c *gin.Context) {
	var req DocumentIDsRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	links, err := h.documents.DownloadLinks(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.DocumentIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, links)
}

// UploadMyDocument handles POST /api/v1/users/me/documents (multipart: file, category)
func (h *DocumentController) UploadMyDocument(c *gin.Context) {
	upload, file, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	actor := middleware.CurrentActor(c)
	doc, err := h.documents.UploadUserDocument(c.Request.Context(), actor, actor.UID, upload,
		models.DocumentCategory(c.PostForm("category")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, doc)
}

// ListMyDocuments handles GET /api/v1/users/me/documents?category=
func (h *DocumentController) ListMyDocuments(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	docs, err := h.documents.ListUserDocuments(c.Request.Context(), actor, actor.UID, models.DocumentCategory(c.Query("category")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, docs)
}

// DeleteMyDocument handles DELETE /api/v1/users/me/documents/:docId
func (h *DocumentController) DeleteMyDocument(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	if err := h.documents.DeleteUserDocument(c.Request.Context(), actor, actor.UID, c.Param("docId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Document deleted",
	})
}
