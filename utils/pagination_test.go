package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
		wantOff   int
	}{
		{"defaults", "", 1, 20, 0},
		{"explicit", "?page=3&limit=10", 3, 10, 20},
		{"limit above max", "?limit=500", 1, 20, 0},
		{"negative page", "?page=-2&limit=5", 1, 5, 0},
		{"garbage", "?page=abc&limit=xyz", 1, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/api/v1/orders"+tt.query, nil)

			p := GetPaginationParams(c)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.PageSize)
			assert.Equal(t, tt.wantOff, p.Offset)
		})
	}
}

func TestNewPageInfo(t *testing.T) {
	info := NewPageInfo(NewPaginationParams(2, 20), 41)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, int64(41), info.Total)

	assert.Equal(t, 0, NewPageInfo(NewPaginationParams(1, 20), 0).TotalPages)
}
