package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"limit"`
	Offset   int `json:"-"`
}

// NewPaginationParams clamps page and limit to sane values
func NewPaginationParams(page, limit int) PaginationParams {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	return PaginationParams{
		Page:     page,
		PageSize: limit,
		Offset:   (page - 1) * limit,
	}
}

// GetPaginationParams extracts pagination parameters from request
func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return NewPaginationParams(page, limit)
}

// PageInfo is returned alongside paginated lists
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// NewPageInfo computes page metadata for a total item count
func NewPageInfo(p PaginationParams, total int64) PageInfo {
	pages := 0
	if p.PageSize > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return PageInfo{Page: p.Page, Limit: p.PageSize, Total: total, TotalPages: pages}
}
