package utils

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody renders err in the API error envelope
func ErrorBody(err *AppError) gin.H {
	body := gin.H{
		"code":    err.Code,
		"message": err.Message,
	}
	if err.Details != nil {
		body["details"] = err.Details
	}
	return gin.H{
		"success": false,
		"error":   body,
	}
}

// AbortWithError writes the envelope for err and stops the handler chain
func AbortWithError(c *gin.Context, err error) {
	appErr := AsAppError(err)
	c.AbortWithStatusJSON(appErr.Status, ErrorBody(appErr))
}

// Success writes a success envelope carrying data. User text such as chat messages is written unescaped.
func Success(c *gin.Context, status int, data interface{}) {
	c.PureJSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}
