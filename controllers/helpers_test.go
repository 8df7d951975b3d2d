package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	clientUID   = "client-1"
	otherUID    = "client-2"
	employeeUID = "employee-1"
	adminUID    = "admin-1"
)

// pdfContent is detected as application/pdf
var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

// pngContent is a PNG signature followed by padding
var pngContent = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

type testEnv struct {
	db        *gorm.DB
	store     *services.GormStore
	blobs     *services.MemoryBlobStorage
	orders    *services.OrderService
	documents *services.DocumentService
	messages  *services.MessageService
	users     *services.UserService
	catalog   *services.CatalogService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Service{},
		&models.Order{},
		&models.OrderEvent{},
		&models.Document{},
		&models.Message{},
	), "Failed to migrate test database")
	return db
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	log := zaptest.NewLogger(t)
	store := services.NewGormStore(db)
	blobs := services.NewMemoryBlobStorage()
	orders := services.NewOrderService(store, blobs, nil, log, services.OrderServiceConfig{PaymentFailureCancelsOrder: true})

	env := &testEnv{
		db:        db,
		store:     store,
		blobs:     blobs,
		orders:    orders,
		documents: services.NewDocumentService(orders, store, blobs, log, services.DefaultDownloadStagger),
		messages:  services.NewMessageService(store, orders, blobs, log),
		users:     services.NewUserService(store, blobs, log),
		catalog:   services.NewCatalogService(store, services.NewImageService(blobs, log), log),
	}

	for _, u := range []models.User{
		{UID: clientUID, Email: "asha@example.com", DisplayName: "Asha Client", Role: models.RoleClient},
		{UID: otherUID, Email: "ravi@example.com", DisplayName: "Ravi Client", Role: models.RoleClient},
		{UID: employeeUID, Email: "esha@example.com", DisplayName: "Esha Employee", Role: models.RoleEmployee},
		{UID: adminUID, Email: "arun@example.com", DisplayName: "Arun Admin", Role: models.RoleAdmin},
	} {
		require.NoError(t, store.CreateUser(context.Background(), &u))
	}
	return env
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// mockAuthMiddleware sets up the context the way EnsureValidToken does
func mockAuthMiddleware(uid, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, uid)
		c.Set(middleware.ContextAccessToken, accessToken)
		c.Set(middleware.ContextClaims, &validator.ValidatedClaims{
			RegisteredClaims: validator.RegisteredClaims{Subject: uid},
			CustomClaims:     &middleware.CustomClaims{},
		})
		c.Next()
	}
}

// authed is the handler chain for a signed-in, registered user
func (e *testEnv) authed(uid string, handler gin.HandlerFunc) []gin.HandlerFunc {
	return []gin.HandlerFunc{mockAuthMiddleware(uid, "mock-token"), middleware.LoadActor(e.users), handler}
}

// createOrder places an INR order for clientUID
func (e *testEnv) createOrder(t *testing.T) *models.Order {
	t.Helper()
	amount := 4999.0
	order, err := e.orders.CreateOrder(context.Background(),
		services.Actor{UID: clientUID, Role: models.RoleClient, DisplayName: "Asha Client"},
		services.CreateOrderInput{ServiceName: "GST Registration", Amount: &amount, Currency: "INR"})
	require.NoError(t, err)
	return order
}

func actorFor(uid string, role models.Role) services.Actor {
	return services.Actor{UID: uid, Role: role}
}

// performJSON sends body as JSON (nil sends no body) and decodes the response envelope
func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, _ := http.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return perform(t, router, req)
}

func perform(t *testing.T, router *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

// multipartRequest builds a multipart upload with one file part and extra form fields
func multipartRequest(t *testing.T, path, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func errorCode(response map[string]interface{}) string {
	if errData, ok := response["error"].(map[string]interface{}); ok {
		code, _ := errData["code"].(string)
		return code
	}
	return ""
}
