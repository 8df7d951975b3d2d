package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	clientActor   = Actor{UID: "client-1", Role: models.RoleClient, DisplayName: "Asha Client"}
	otherClient   = Actor{UID: "client-2", Role: models.RoleClient, DisplayName: "Ravi Client"}
	employeeActor = Actor{UID: "employee-1", Role: models.RoleEmployee, DisplayName: "Esha Employee"}
	adminActor    = Actor{UID: "admin-1", Role: models.RoleAdmin, DisplayName: "Arun Admin"}
	consultant    = Actor{UID: "consultant-1", Role: models.RoleConsultant, DisplayName: "Kiran Consultant"}
)

// pdfBytes is a minimal payload mimetype detects as application/pdf
var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

// pngBytes is a PNG signature followed by padding
var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

type testEnv struct {
	store     *GormStore
	blobs     *MemoryBlobStorage
	orders    *OrderService
	documents *DocumentService
	messages  *MessageService
	users     *UserService
	catalog   *CatalogService
	db        *gorm.DB
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
	))
	return db
}

func setupTestEnv(t *testing.T, cfg OrderServiceConfig) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	log := zaptest.NewLogger(t)
	store := NewGormStore(db)
	blobs := NewMemoryBlobStorage()
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = RetryConfig{MaxAttempts: 3, Backoff: ExponentialBackoff{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}}
	}

	orders := NewOrderService(store, blobs, nil, log, cfg)
	env := &testEnv{
		store:     store,
		blobs:     blobs,
		orders:    orders,
		documents: NewDocumentService(orders, store, blobs, log, DefaultDownloadStagger),
		messages:  NewMessageService(store, orders, blobs, log),
		users:     NewUserService(store, blobs, log),
		catalog:   NewCatalogService(store, NewImageService(blobs, log), log),
		db:        db,
	}
	for _, a := range []Actor{clientActor, otherClient, employeeActor, adminActor, consultant} {
		require.NoError(t, store.CreateUser(context.Background(), &models.User{
			UID:         a.UID,
			Email:       a.UID + "@example.com",
			DisplayName: a.DisplayName,
			Role:        a.Role,
		}))
	}
	return env
}

func amount(v float64) *float64 { return &v }

// createOrder places an INR order for clientActor
func (e *testEnv) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := e.orders.CreateOrder(context.Background(), clientActor, CreateOrderInput{
		ServiceName: "GST Registration",
		Amount:      amount(4999),
		Currency:    "INR",
	})
	require.NoError(t, err)
	return order
}

func pdfUpload(name string) UploadFile {
	return UploadFile{Name: name, Size: int64(len(pdfBytes)), ContentType: "application/pdf", Body: bytes.NewReader(pdfBytes)}
}
