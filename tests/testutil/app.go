package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/config"
	"github.com/kendall-kelly/consulting-portal-api/controllers"
	"github.com/kendall-kelly/consulting-portal-api/middleware"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/routes"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AppOptions tunes a TestApp
type AppOptions struct {
	Orders            services.OrderServiceConfig
	ChatRatePerMinute int
	// Authenticate defaults to HeaderAuth
	Authenticate gin.HandlerFunc
}

// TestApp is the full router over an in-memory database and blob store
type TestApp struct {
	Router *gin.Engine
	DB     *gorm.DB
	Store  *services.GormStore
	Blobs  *services.MemoryBlobStorage
	Orders *services.OrderService
}

// NewTestApp wires every service and route the way main does, minus external providers
func NewTestApp(t *testing.T, opts AppOptions) *TestApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, config.AutoMigrate(db))

	if opts.Authenticate == nil {
		opts.Authenticate = HeaderAuth
	}
	if opts.ChatRatePerMinute == 0 {
		opts.ChatRatePerMinute = 1000
	}

	log := zaptest.NewLogger(t)
	store := services.NewGormStore(db)
	blobs := services.NewMemoryBlobStorage()
	orders := services.NewOrderService(store, blobs, nil, log, opts.Orders)
	documents := services.NewDocumentService(orders, store, blobs, log, services.DefaultDownloadStagger)
	messages := services.NewMessageService(store, orders, blobs, log)
	users := services.NewUserService(store, blobs, log)
	catalog := services.NewCatalogService(store, services.NewImageService(blobs, log), log)

	router := routes.SetupRouter(routes.Handlers{
		Health:    controllers.NewHealthController(store, "sqlite"),
		Orders:    controllers.NewOrderController(orders, "DELETE"),
		Documents: controllers.NewDocumentController(documents),
		Messages:  controllers.NewMessageController(messages),
		Users:     controllers.NewUserController(users, StaticIdentity{}, log, "DELETE"),
		Catalog:   controllers.NewCatalogController(catalog, "DELETE"),
	}, routes.Options{
		Logger:       log,
		Authenticate: opts.Authenticate,
		Users:        users,
		ChatLimiter:  middleware.NewUserRateLimiter(opts.ChatRatePerMinute),
	})

	return &TestApp{Router: router, DB: db, Store: store, Blobs: blobs, Orders: orders}
}

// CreateUser stores a user directly with the given role
func (a *TestApp) CreateUser(t *testing.T, uid, name string, role models.Role) {
	t.Helper()
	require.NoError(t, a.Store.CreateUser(context.Background(), &models.User{
		UID:         uid,
		Email:       strings.ReplaceAll(uid, "|", "_") + "@example.com",
		DisplayName: name,
		Role:        role,
	}))
}
