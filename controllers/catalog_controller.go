package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// ServiceRequest represents the body for creating or updating a catalog entry
type ServiceRequest struct {
	Name         string   `json:"name" binding:"required,max=200"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Price        float64  `json:"price" binding:"gte=0"`
	Currency     string   `json:"currency" binding:"omitempty,len=3"`
	Features     []string `json:"features"`
	Deliverables []string `json:"deliverables"`
	IsActive     *bool    `json:"is_active"`
}

func (r ServiceRequest) input() services.ServiceInput {
	return services.ServiceInput{
		Name:         r.Name,
		Description:  r.Description,
		Category:     r.Category,
		Price:        r.Price,
		Currency:     r.Currency,
		Features:     r.Features,
		Deliverables: r.Deliverables,
		IsActive:     r.IsActive,
	}
}

// CatalogController serves /services
type CatalogController struct {
	catalog      *services.CatalogService
	confirmation string
}

// NewCatalogController creates a CatalogController
func NewCatalogController(catalog *services.CatalogService, confirmation string) *CatalogController {
	return &CatalogController{catalog: catalog, confirmation: confirmation}
}

// ListServices handles GET /api/v1/services?include_inactive=true
func (h *CatalogController) ListServices(c *gin.Context) {
	list, err := h.catalog.ListServices(c.Request.Context(), middleware.CurrentActor(c), c.Query("include_inactive") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, list)
}

// GetService handles GET /api/v1/services/:id
func (h *CatalogController) GetService(c *gin.Context) {
	svc, err := h.catalog.GetService(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, svc)
}

// CreateService handles POST /api/v1/services (admin only)
func (h *CatalogController) CreateService(c *gin.Context) {
	var req ServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.catalog.CreateService(c.Request.Context(), middleware.CurrentActor(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, svc)
}

// UpdateService handles PUT /api/v1/services/:id (admin only)
func (h *CatalogController) UpdateService(c *gin.Context) {
	var req ServiceRequest
	if !bindJSON(c, &req) {
		return
	}
	svc, err := h.catalog.UpdateService(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, svc)
}

// UploadServiceImage handles POST /api/v1/services/:id/image (admin only, multipart: file)
func (h *CatalogController) UploadServiceImage(c *gin.Context) {
	upload, file, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	svc, err := h.catalog.UploadServiceImage(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), upload)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, svc)
}

// DeleteService handles DELETE /api/v1/services/:id (admin only, confirmation code required)
func (h *CatalogController) DeleteService(c *gin.Context) {
	if !requireConfirmation(c, h.confirmation) {
		return
	}
	if err := h.catalog.DeleteService(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Service deleted",
	})
}
