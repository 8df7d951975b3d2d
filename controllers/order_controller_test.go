package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")

	tests := []struct {
		name           string
		uid            string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, response map[string]interface{})
	}{
		{
			name: "Successfully create order as client",
			uid:  clientUID,
			requestBody: map[string]interface{}{
				"service_name": "GST Registration",
				"amount":       4999,
				"notes":        "Need it before the quarter closes",
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, "GST Registration", data["service_name"])
				assert.Equal(t, float64(4999), data["amount"])
				assert.Equal(t, "INR", data["currency"])
				assert.Equal(t, "pending", data["status"])
				assert.Equal(t, "pending", data["payment_status"])
				assert.Equal(t, clientUID, data["client_id"])
				assert.Equal(t, float64(1), data["version"])

				timeline := data["timeline"].([]interface{})
				require.Len(t, timeline, 1)
				assert.Equal(t, "pending", timeline[0].(map[string]interface{})["status"])
			},
		},
		{
			name:           "Fail to create order as employee",
			uid:            employeeUID,
			requestBody:    map[string]interface{}{"service_name": "GST Registration", "amount": 4999},
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:           "Fail without amount or service",
			uid:            clientUID,
			requestBody:    map[string]interface{}{"service_name": "GST Registration"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Fail with negative amount",
			uid:            clientUID,
			requestBody:    map[string]interface{}{"service_name": "GST Registration", "amount": -1},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Fail with malformed currency",
			uid:            clientUID,
			requestBody:    map[string]interface{}{"service_name": "GST Registration", "amount": 10, "currency": "RUPEES"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Fail with unknown service",
			uid:            clientUID,
			requestBody:    map[string]interface{}{"service_id": "missing"},
			expectedStatus: http.StatusNotFound,
			expectedError:  "SERVICE_NOT_FOUND",
		},
		{
			name:           "Fail with user not found",
			uid:            "nonexistent",
			requestBody:    map[string]interface{}{"service_name": "GST Registration", "amount": 4999},
			expectedStatus: http.StatusNotFound,
			expectedError:  "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.POST("/orders", env.authed(tt.uid, controller.CreateOrder)...)

			w, response := performJSON(t, router, http.MethodPost, "/orders", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.False(t, response["success"].(bool))
				assert.Equal(t, tt.expectedError, errorCode(response))
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, response)
			}
		})
	}
}

func TestListOrders_ScopedByRole(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")
	for i := 0; i < 3; i++ {
		env.createOrder(t)
	}

	tests := []struct {
		name          string
		uid           string
		expectedCount int
	}{
		{name: "Client sees own orders", uid: clientUID, expectedCount: 3},
		{name: "Other client sees nothing", uid: otherUID, expectedCount: 0},
		{name: "Employee sees all orders", uid: employeeUID, expectedCount: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/orders", env.authed(tt.uid, controller.ListOrders)...)

			w, response := performJSON(t, router, http.MethodGet, "/orders", nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Len(t, response["data"].([]interface{}), tt.expectedCount)

			pagination := response["pagination"].(map[string]interface{})
			assert.Equal(t, float64(tt.expectedCount), pagination["total"])
		})
	}
}

func TestListOrders_PaginationAndFilters(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, env.createOrder(t).ID)
	}
	_, err := env.orders.UpdateOrderStatus(t.Context(), actorFor(employeeUID, "employee"), ids[0], "processing", "")
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/orders", env.authed(employeeUID, controller.ListOrders)...)

	w, response := performJSON(t, router, http.MethodGet, "/orders?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, response["data"].([]interface{}), 2)
	pagination := response["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), pagination["page"])
	assert.Equal(t, float64(2), pagination["limit"])
	assert.Equal(t, float64(5), pagination["total"])
	assert.Equal(t, float64(3), pagination["total_pages"])

	w, response = performJSON(t, router, http.MethodGet, "/orders?status=processing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := response["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, ids[0], data[0].(map[string]interface{})["id"])
}

func TestGetOrder(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")
	order := env.createOrder(t)

	tests := []struct {
		name           string
		uid            string
		orderID        string
		expectedStatus int
		expectedError  string
	}{
		{name: "Owner can view", uid: clientUID, orderID: order.ID, expectedStatus: http.StatusOK},
		{name: "Employee can view", uid: employeeUID, orderID: order.ID, expectedStatus: http.StatusOK},
		{name: "Other client is forbidden", uid: otherUID, orderID: order.ID, expectedStatus: http.StatusForbidden, expectedError: "FORBIDDEN"},
		{name: "Missing order", uid: adminUID, orderID: "missing", expectedStatus: http.StatusNotFound, expectedError: "ORDER_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/orders/:id", env.authed(tt.uid, controller.GetOrder)...)

			w, response := performJSON(t, router, http.MethodGet, "/orders/"+tt.orderID, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(response))
				return
			}
			assert.Equal(t, order.ID, response["data"].(map[string]interface{})["id"])
		})
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")
	order := env.createOrder(t)

	router := setupTestRouter()
	router.PATCH("/orders/:id/status", env.authed(employeeUID, controller.UpdateOrderStatus)...)
	path := fmt.Sprintf("/orders/%s/status", order.ID)

	w, response := performJSON(t, router, http.MethodPatch, path, gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(response))

	w, response = performJSON(t, router, http.MethodPatch, path, gin.H{"status": "confirmed", "note": "Documents verified"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "confirmed", data["status"])
	assert.Equal(t, float64(2), data["version"])

	timeline := data["timeline"].([]interface{})
	require.Len(t, timeline, 2)
	last := timeline[1].(map[string]interface{})
	assert.Equal(t, "confirmed", last["status"])
	assert.Equal(t, "Documents verified", last["message"])
	assert.Equal(t, employeeUID, last["updated_by"])
}

func TestUpdateOrderPayment(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")

	tests := []struct {
		name           string
		uid            string
		paymentStatus  string
		expectedStatus int
		expectedOrder  string
		expectedError  string
	}{
		{name: "Paid moves the order to processing", uid: clientUID, paymentStatus: "paid", expectedStatus: http.StatusOK, expectedOrder: "processing"},
		{name: "Failed cancels the order", uid: clientUID, paymentStatus: "failed", expectedStatus: http.StatusOK, expectedOrder: "cancelled"},
		{name: "Unknown payment status", uid: clientUID, paymentStatus: "maybe", expectedStatus: http.StatusBadRequest, expectedError: "VALIDATION_ERROR"},
		{name: "Other client is forbidden", uid: otherUID, paymentStatus: "paid", expectedStatus: http.StatusForbidden, expectedError: "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := env.createOrder(t)
			router := setupTestRouter()
			router.POST("/orders/:id/payment", env.authed(tt.uid, controller.UpdateOrderPayment)...)

			w, response := performJSON(t, router, http.MethodPost, "/orders/"+order.ID+"/payment", gin.H{
				"payment_id":     "pay_001",
				"payment_status": tt.paymentStatus,
			})
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorCode(response))
				return
			}
			data := response["data"].(map[string]interface{})
			assert.Equal(t, tt.expectedOrder, data["status"])
			assert.Equal(t, "pay_001", data["payment_id"])
		})
	}
}

func TestAddOrderNote(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")
	order := env.createOrder(t)

	router := setupTestRouter()
	router.POST("/orders/:id/notes", env.authed(employeeUID, controller.AddOrderNote)...)

	w, response := performJSON(t, router, http.MethodPost, "/orders/"+order.ID+"/notes", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(response))

	w, response = performJSON(t, router, http.MethodPost, "/orders/"+order.ID+"/notes", gin.H{"note": "Called the client"})
	require.Equal(t, http.StatusCreated, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"], "a note never changes the status")
	timeline := data["timeline"].([]interface{})
	assert.Equal(t, "note", timeline[len(timeline)-1].(map[string]interface{})["status"])
}

func TestDeleteOrder(t *testing.T) {
	env := setupTestEnv(t)
	controller := NewOrderController(env.orders, "DELETE")
	order := env.createOrder(t)

	router := setupTestRouter()
	router.DELETE("/orders/:id", env.authed(adminUID, controller.DeleteOrder)...)
	path := "/orders/" + order.ID

	w, response := performJSON(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", errorCode(response))

	w, response = performJSON(t, router, http.MethodDelete, path, gin.H{"confirmation_code": "delete"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "confirmation is case sensitive")
	assert.Equal(t, "CONFIRMATION_REQUIRED", errorCode(response))

	w, response = performJSON(t, router, http.MethodDelete, path, gin.H{"confirmation_code": "DELETE"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Order deleted", response["message"])

	w, response = performJSON(t, router, http.MethodDelete, path, gin.H{"confirmation_code": "DELETE"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", errorCode(response))
}
