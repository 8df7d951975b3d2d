package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order represents a single purchased-service transaction with its own status and audit trail
type Order struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id" firestore:"id"`
	ClientID        string        `gorm:"not null;index" json:"client_id" firestore:"clientId"`
	ServiceID       string        `gorm:"index" json:"service_id" firestore:"serviceId"`
	ServiceName     string        `json:"service_name" firestore:"serviceName"`
	Status          OrderStatus   `gorm:"not null;default:'pending';index" json:"status" firestore:"status"`
	PaymentStatus   PaymentStatus `gorm:"not null;default:'pending'" json:"payment_status" firestore:"paymentStatus"`
	PaymentID       *string       `json:"payment_id,omitempty" firestore:"paymentId,omitempty"`
	PaymentResponse *string       `gorm:"type:text" json:"payment_response,omitempty" firestore:"paymentResponse,omitempty"`
	Amount          float64       `gorm:"not null" json:"amount" firestore:"amount"`
	Currency        string        `gorm:"not null;size:3" json:"currency" firestore:"currency"`
	Notes           string        `gorm:"type:text" json:"notes,omitempty" firestore:"notes,omitempty"`
	Documents       []Document    `gorm:"polymorphic:Owner;polymorphicValue:order" json:"documents" firestore:"documents"`
	Timeline        []OrderEvent  `gorm:"foreignKey:OrderID" json:"timeline" firestore:"timeline"`
	Version         int           `gorm:"not null;default:1" json:"version" firestore:"version"`
	IsTerminal      bool          `gorm:"-" json:"is_terminal" firestore:"-"`
	CreatedAt       time.Time     `json:"created_at" firestore:"createdAt"`
	UpdatedAt       time.Time     `json:"updated_at" firestore:"updatedAt"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns an id to new orders
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// FillEmptyCollections replaces nil documents and timeline with empty slices so both encode as []
func (o *Order) FillEmptyCollections() {
	if o.Documents == nil {
		o.Documents = []Document{}
	}
	if o.Timeline == nil {
		o.Timeline = []OrderEvent{}
	}
}

// FindDocument returns the index of the document with the given id, or -1
func (o *Order) FindDocument(documentID string) int {
	for i := range o.Documents {
		if o.Documents[i].ID == documentID {
			return i
		}
	}
	return -1
}

// OrderEvent is one entry in an order's append-only timeline
type OrderEvent struct {
	Seq       uint      `gorm:"primaryKey;autoIncrement" json:"-" firestore:"-"`
	ID        string    `gorm:"uniqueIndex;size:36;not null" json:"id" firestore:"id"`
	OrderID   string    `gorm:"not null;index;size:36" json:"-" firestore:"-"`
	Status    string    `gorm:"not null" json:"status" firestore:"status"`
	Message   string    `gorm:"type:text" json:"message" firestore:"message"`
	Timestamp time.Time `gorm:"not null" json:"timestamp" firestore:"timestamp"`
	UpdatedBy string    `json:"updated_by" firestore:"updatedBy"`
}

// TableName specifies the table name for the OrderEvent model
func (OrderEvent) TableName() string {
	return "order_events"
}

// NewOrderEvent builds a timeline event stamped at now
func NewOrderEvent(status, message, updatedBy string, now time.Time) OrderEvent {
	return OrderEvent{
		ID:        uuid.NewString(),
		Status:    status,
		Message:   message,
		Timestamp: now,
		UpdatedBy: updatedBy,
	}
}
