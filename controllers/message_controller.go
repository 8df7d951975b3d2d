package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// MessageController serves the order chat
type MessageController struct {
	messages *services.MessageService
}

// NewMessageController creates a MessageController
func NewMessageController(messages *services.MessageService) *MessageController {
	return &MessageController{messages: messages}
}

// GetOrderMessages handles GET /api/v1/orders/:id/messages - oldest first
func (h *MessageController) GetOrderMessages(c *gin.Context) {
	messages, err := h.messages.GetOrderMessages(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

// SendOrderMessage handles POST /api/v1/orders/:id/messages
func (h *MessageController) SendOrderMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewAppError(utils.CodeEmptyMessage, "Message text is required", http.StatusBadRequest, err))
		return
	}

	msg, err := h.messages.SendOrderMessage(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    msg,
	})
}

// SendOrderMessageWithAttachment handles POST /api/v1/orders/:id/messages/attachment (multipart: file, message)
func (h *MessageController) SendOrderMessageWithAttachment(c *gin.Context) {
	upload, file, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	msg, err := h.messages.SendOrderMessageWithAttachment(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"),
		c.PostForm("message"), upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    msg,
	})
}

// MarkOrderMessagesAsRead handles POST /api/v1/orders/:id/messages/read
func (h *MessageController) MarkOrderMessagesAsRead(c *gin.Context) {
	count, err := h.messages.MarkOrderMessagesAsRead(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{"marked": count})
}

// UnreadCount handles GET /api/v1/orders/:id/messages/unread
func (h *MessageController) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, gin.H{"unread": count})
}
