package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	ServiceID   string   `json:"service_id"`
	ServiceName string   `json:"service_name"`
	Amount      *float64 `json:"amount" binding:"omitempty,gte=0"`
	Currency    string   `json:"currency" binding:"omitempty,len=3"`
	Notes       string   `json:"notes"`
}

// UpdateOrderStatusRequest represents the request body for a status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed processing completed cancelled"`
	Note   string `json:"note"`
}

// UpdatePaymentRequest represents a payment outcome reported for an order
type UpdatePaymentRequest struct {
	PaymentID       string `json:"payment_id"`
	PaymentStatus   string `json:"payment_status" binding:"required"`
	PaymentResponse string `json:"payment_response"`
}

// AddNoteRequest represents a staff note on the order timeline
type AddNoteRequest struct {
	Note string `json:"note" binding:"required"`
}

// OrderController serves /orders
type OrderController struct {
	orders       *services.OrderService
	confirmation string
}

// NewOrderController creates an OrderController
func NewOrderController(orders *services.OrderService, confirmation string) *OrderController {
	return &OrderController{orders: orders, confirmation: confirmation}
}

// CreateOrder handles POST /api/v1/orders - creates a new order (clients only)
func (h *OrderController) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), middleware.CurrentActor(c), services.CreateOrderInput{
		ServiceID:   req.ServiceID,
		ServiceName: req.ServiceName,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - clients see their own orders, staff see all
func (h *OrderController) ListOrders(c *gin.Context) {
	page := utils.GetPaginationParams(c)
	result, err := h.orders.ListOrders(c.Request.Context(), middleware.CurrentActor(c), services.ListOrdersQuery{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		ClientID:      c.Query("client_id"),
		ServiceID:     c.Query("service_id"),
		Search:        c.Query("search"),
		SortBy:        c.Query("sort_by"),
		SortOrder:     c.Query("sort_order"),
		Page:          page,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       result.Orders,
		"pagination": result.Page,
	})
}

// GetOrder handles GET /api/v1/orders/:id
func (h *OrderController) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status
func (h *OrderController) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"),
		models.OrderStatus(req.Status), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, order)
}

// UpdateOrderPayment handles POST /api/v1/orders/:id/payment
func (h *OrderController) UpdateOrderPayment(c *gin.Context) {
	var req UpdatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateOrderPayment(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), services.PaymentUpdate{
		PaymentID:       req.PaymentID,
		PaymentStatus:   req.PaymentStatus,
		PaymentResponse: req.PaymentResponse,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, order)
}

// AddOrderNote handles POST /api/v1/orders/:id/notes
func (h *OrderController) AddOrderNote(c *gin.Context) {
	var req AddNoteRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.AddOrderNote(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusCreated, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id (admin only, confirmation code required)
func (h *OrderController) DeleteOrder(c *gin.Context) {
	if !requireConfirmation(c, h.confirmation) {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order deleted",
	})
}
