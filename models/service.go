package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is an entry in the firm's service catalog. Orders reference it by ID.
type Service struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id" firestore:"id"`
	Name         string    `gorm:"not null" json:"name" firestore:"name"`
	Description  string    `gorm:"type:text" json:"description" firestore:"description"`
	Category     string    `gorm:"index" json:"category" firestore:"category"`
	Price        float64   `gorm:"not null" json:"price" firestore:"price"`
	Currency     string    `gorm:"not null;default:'INR';size:3" json:"currency" firestore:"currency"`
	Features     []string  `gorm:"serializer:json" json:"features" firestore:"features"`
	Deliverables []string  `gorm:"serializer:json" json:"deliverables" firestore:"deliverables"`
	IsActive     bool      `gorm:"not null;index" json:"is_active" firestore:"isActive"`
	Image        *string   `json:"image,omitempty" firestore:"image,omitempty"` // storage key
	ImageURL     string    `gorm:"-" json:"image_url,omitempty" firestore:"-"`
	CreatedAt    time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updatedAt"`
}

// TableName specifies the table name for the Service model
func (Service) TableName() string {
	return "services"
}

// BeforeCreate assigns an id to new catalog entries
func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
