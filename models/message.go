package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message sender roles as shown in the order chat
const (
	SenderRoleClient   = "client"
	SenderRoleEmployee = "employee"
	SenderRoleSystem   = "system"
)

// SenderRoleFor maps a user role onto the role shown next to chat messages
func SenderRoleFor(role Role) string {
	if role == RoleClient {
		return SenderRoleClient
	}
	return SenderRoleEmployee
}

// Attachment is a lightweight file reference carried by a chat message
type Attachment struct {
	Name       string `json:"name" firestore:"name"`
	URL        string `json:"url" firestore:"url"`
	StorageKey string `json:"storage_key" firestore:"storageKey"`
	Type       string `json:"type" firestore:"type"`
	Size       int64  `json:"size" firestore:"size"`
}

// Message represents a message in an order conversation
type Message struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id" firestore:"id"`
	OrderID     string       `gorm:"not null;index;size:36" json:"order_id" firestore:"orderId"`
	SenderID    string       `gorm:"not null;index" json:"sender_id" firestore:"senderId"`
	SenderName  string       `json:"sender_name" firestore:"senderName"`
	SenderRole  string       `gorm:"not null" json:"sender_role" firestore:"senderRole"`
	Message     string       `gorm:"type:text" json:"message" firestore:"message"`
	Attachments []Attachment `gorm:"serializer:json" json:"attachments" firestore:"attachments"`
	Timestamp   time.Time    `gorm:"not null;index" json:"timestamp" firestore:"timestamp"`
	IsRead      bool         `gorm:"not null;default:false" json:"is_read" firestore:"isRead"`
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns an id to new messages
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
