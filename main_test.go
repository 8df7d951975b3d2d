package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/config"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testUserHeader = "X-Test-User"

// headerIdentity serves a profile derived from the uid
type headerIdentity struct{}

func (headerIdentity) Profile(ctx context.Context, uid, accessToken string) (*services.IdentityProfile, error) {
	return &services.IdentityProfile{Email: uid + "@example.com", DisplayName: uid}, nil
}

// headerAuth trusts the uid in X-Test-User
func headerAuth(c *gin.Context) {
	uid := c.GetHeader(testUserHeader)
	if uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false})
		return
	}
	c.Set(middleware.ContextUserID, uid)
	c.Next()
}

func setupTestApp(t *testing.T) *application {
	t.Helper()
	gin.SetMode(gin.TestMode)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:"+t.Name()+"?mode=memory&cache=shared")

	cfg := &config.Config{
		DBDriver:                   "sqlite",
		GoEnv:                      "test",
		AuthProvider:               "auth0",
		StorageProvider:            "local",
		UploadDir:                  filepath.Join(t.TempDir(), "uploads"),
		CORSAllowedOrigins:         []string{"http://localhost:3000"},
		OrderTransitionMode:        "permissive",
		PaymentFailureCancelsOrder: true,
		DestructiveConfirmation:    "DELETE",
		ChatRatePerMinute:          100,
	}

	app, err := newApplication(context.Background(), cfg, zaptest.NewLogger(t), &authSetup{
		authenticate: headerAuth,
		identity:     headerIdentity{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func doJSON(t *testing.T, app *application, method, path, uid string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set(testUserHeader, uid)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func register(t *testing.T, app *application, uid string, role models.Role) {
	t.Helper()
	w, _ := doJSON(t, app, http.MethodPost, "/api/v1/users", uid, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	if role != models.DefaultRole {
		require.NoError(t, config.GetDB().Model(&models.User{}).Where("uid = ?", uid).Update("role", role).Error)
	}
}

func TestHealthCheck(t *testing.T) {
	app := setupTestApp(t)

	w, response := doJSON(t, app, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Len(t, response, 2, "Response should have exactly 2 fields")
	assert.Equal(t, true, response["success"])
	assert.Equal(t, "Consulting Portal API is running", response["message"])
}

func TestHealthEndpointMethod(t *testing.T) {
	app := setupTestApp(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		w, _ := doJSON(t, app, method, "/api/v1/health", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s should not be allowed", method)
	}

	w, _ := doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "Endpoint should require /api/v1 prefix")
}

func TestDatabaseStatus(t *testing.T) {
	app := setupTestApp(t)

	w, response := doJSON(t, app, http.MethodGet, "/api/v1/database/status", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, response["success"])
}

func TestHealthEndpointResponseTime(t *testing.T) {
	app := setupTestApp(t)

	start := time.Now()
	w, _ := doJSON(t, app, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Health endpoint should respond in less than 100ms")
}

func TestProtectedRoutesRequireRegistration(t *testing.T) {
	app := setupTestApp(t)

	w, _ := doJSON(t, app, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, response := doJSON(t, app, http.MethodGet, "/api/v1/orders", "stranger", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "USER_NOT_FOUND", response["error"].(map[string]interface{})["code"])

	register(t, app, "stranger", models.RoleClient)
	w, _ = doJSON(t, app, http.MethodGet, "/api/v1/orders", "stranger", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// a second first-login call is idempotent
	w, _ = doJSON(t, app, http.MethodPost, "/api/v1/users", "stranger", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestOrderWorkflowAcceptance walks one order from creation to completion through the wired router
func TestOrderWorkflowAcceptance(t *testing.T) {
	app := setupTestApp(t)
	register(t, app, "client-1", models.RoleClient)
	register(t, app, "employee-1", models.RoleEmployee)
	register(t, app, "admin-1", models.RoleAdmin)

	w, response := doJSON(t, app, http.MethodPost, "/api/v1/orders", "client-1", gin.H{
		"service_name": "GST Registration",
		"amount":       4999,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := response["data"].(map[string]interface{})
	orderID := order["id"].(string)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "INR", order["currency"])

	// clients cannot move the status
	w, _ = doJSON(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "client-1", gin.H{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, response = doJSON(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/payment", "client-1", gin.H{
		"payment_id":     "pay_123",
		"payment_status": "paid",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "processing", response["data"].(map[string]interface{})["status"])

	// document upload through multipart
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "invoice.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n%test document\n"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("category", "invoice"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID+"/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(testUserHeader, "employee-1")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var uploaded struct {
		Data models.Document `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	assert.Equal(t, models.CategoryInvoice, uploaded.Data.Category)
	require.NotEmpty(t, uploaded.Data.URL)

	// local storage serves the uploaded file back
	fileReq := httptest.NewRequest(http.MethodGet, uploaded.Data.URL, nil)
	fileRec := httptest.NewRecorder()
	app.router.ServeHTTP(fileRec, fileReq)
	assert.Equal(t, http.StatusOK, fileRec.Code)
	assert.Equal(t, "nosniff", fileRec.Header().Get("X-Content-Type-Options"))

	w, _ = doJSON(t, app, http.MethodPost, "/api/v1/orders/"+orderID+"/messages", "client-1", gin.H{"message": "Any update?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, response = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID+"/messages/unread", "employee-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), response["data"].(map[string]interface{})["unread"])

	w, response = doJSON(t, app, http.MethodPatch, "/api/v1/orders/"+orderID+"/status", "employee-1", gin.H{
		"status": "completed",
		"note":   "Filed with the department",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	completed := response["data"].(map[string]interface{})
	assert.Equal(t, "completed", completed["status"])
	assert.Equal(t, true, completed["is_terminal"])

	w, response = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID, "client-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	timeline := response["data"].(map[string]interface{})["timeline"].([]interface{})
	statuses := make([]string, 0, len(timeline))
	for _, event := range timeline {
		statuses = append(statuses, event.(map[string]interface{})["status"].(string))
	}
	assert.Equal(t, "pending", statuses[0])
	assert.Contains(t, statuses, "document_added")
	assert.Contains(t, statuses, "message_sent")
	assert.Equal(t, "completed", statuses[len(statuses)-1])

	// deletion needs the confirmation code
	w, response = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+orderID, "admin-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CONFIRMATION_REQUIRED", response["error"].(map[string]interface{})["code"])

	w, _ = doJSON(t, app, http.MethodDelete, "/api/v1/orders/"+orderID, "admin-1", gin.H{"confirmation_code": "DELETE"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, app, http.MethodGet, "/api/v1/orders/"+orderID, "client-1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
