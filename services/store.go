package services

import (
	"context"
	"errors"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/models"
)

var (
	// ErrRecordNotFound is returned by stores when the addressed record does not exist
	ErrRecordNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when a compare-and-swap write finds a newer version
	ErrVersionConflict = errors.New("version conflict")
	// ErrDocumentNotFound means a mutation named a document the order no longer holds
	ErrDocumentNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("duplicate record")
)

// OrderFilter narrows and orders ListOrders results
type OrderFilter struct {
	ClientID      string
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	ServiceID     string
	Search        string
	SortBy        string
	SortDesc      bool
	Limit         int
	Offset        int
}

// Sortable order columns
var orderSortColumns = map[string]string{
	"created_at": "createdAt",
	"updated_at": "updatedAt",
	"amount":     "amount",
	"status":     "status",
}

// ValidOrderSort reports whether field can be used as OrderFilter.SortBy
func ValidOrderSort(field string) bool {
	_, ok := orderSortColumns[field]
	return ok
}

// OrderMutation is a versioned change to one order. The store applies it only if the
// order is still at ExpectedVersion, then bumps the version and UpdatedAt.
type OrderMutation struct {
	ExpectedVersion   int
	Status            *models.OrderStatus
	PaymentStatus     *models.PaymentStatus
	PaymentID         *string
	PaymentResponse   *string
	AppendEvents      []models.OrderEvent
	AddDocument       *models.Document
	RemoveDocumentIDs []string
}

// OrderStore persists orders with their timeline and documents
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	ApplyOrderMutation(ctx context.Context, orderID string, m OrderMutation, now time.Time) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// MessageStore persists order chat messages
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, orderID string) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, orderID, readerID string) (int64, error)
	CountUnread(ctx context.Context, orderID, readerID string) (int64, error)
}

// UserUpdate holds the profile fields a user may change. Nil fields are left alone.
type UserUpdate struct {
	DisplayName *string
	PhotoURL    *string
	Phone       *string
	Address     *string
	CompanyName *string
	TaxID       *string
}

// UserStore persists users and their profile documents
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, uid string) (*models.User, error)
	UpdateUser(ctx context.Context, uid string, update UserUpdate) (*models.User, error)
	TouchSignIn(ctx context.Context, uid string, at time.Time) error
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	SetUserRole(ctx context.Context, uid string, role models.Role) (*models.User, error)
	DeleteUser(ctx context.Context, uid string) error
	AddUserDocument(ctx context.Context, uid string, doc *models.Document) error
	RemoveUserDocument(ctx context.Context, uid, documentID string) error
	ListUserDocuments(ctx context.Context, uid string) ([]models.Document, error)
}

// CatalogStore persists the service catalog
type CatalogStore interface {
	CreateService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	UpdateService(ctx context.Context, svc *models.Service) error
	DeleteService(ctx context.Context, id string) error
}

// Store is the full persistence adapter
type Store interface {
	OrderStore
	MessageStore
	UserStore
	CatalogStore
	Ping(ctx context.Context) error
}

// applyToOrder applies the non-relational part of a mutation in memory
func applyToOrder(order *models.Order, m OrderMutation, now time.Time) {
	if m.Status != nil {
		order.Status = *m.Status
	}
	if m.PaymentStatus != nil {
		order.PaymentStatus = *m.PaymentStatus
	}
	if m.PaymentID != nil {
		order.PaymentID = m.PaymentID
	}
	if m.PaymentResponse != nil {
		order.PaymentResponse = m.PaymentResponse
	}
	order.Timeline = append(order.Timeline, m.AppendEvents...)
	if m.AddDocument != nil {
		order.Documents = append(order.Documents, *m.AddDocument)
	}
	for _, id := range m.RemoveDocumentIDs {
		if i := order.FindDocument(id); i >= 0 {
			order.Documents = append(order.Documents[:i], order.Documents[i+1:]...)
		}
	}
	order.Version++
	order.UpdatedAt = now
}
