package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentCategory tags a document for filtering in the portal
type DocumentCategory string

const (
	CategoryContract       DocumentCategory = "contract"
	CategoryInvoice        DocumentCategory = "invoice"
	CategoryReport         DocumentCategory = "report"
	CategoryIdentification DocumentCategory = "identification"
	CategoryFinancial      DocumentCategory = "financial"
	CategoryLegal          DocumentCategory = "legal"
	CategoryOther          DocumentCategory = "other"
)

// DocumentCategories lists every known category
var DocumentCategories = []DocumentCategory{
	CategoryContract,
	CategoryInvoice,
	CategoryReport,
	CategoryIdentification,
	CategoryFinancial,
	CategoryLegal,
	CategoryOther,
}

// Valid reports whether c is a known category
func (c DocumentCategory) Valid() bool {
	for _, known := range DocumentCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Document owners
const (
	OwnerOrder = "order"
	OwnerUser  = "user"
)

// Document is a file attached to exactly one order or one user profile
type Document struct {
	Seq        uint             `gorm:"primaryKey;autoIncrement" json:"-" firestore:"-"`
	ID         string           `gorm:"uniqueIndex;size:36;not null" json:"id" firestore:"id"`
	OwnerID    string           `gorm:"not null;index:idx_documents_owner" json:"-" firestore:"-"`
	OwnerType  string           `gorm:"not null;index:idx_documents_owner" json:"-" firestore:"-"`
	Name       string           `gorm:"not null" json:"name" firestore:"name"`
	StorageKey string           `gorm:"not null" json:"storage_key" firestore:"storageKey"`
	URL        string           `gorm:"-" json:"url" firestore:"-"` // computed from StorageKey at read time
	Type       string           `json:"type" firestore:"type"`
	Size       int64            `json:"size" firestore:"size"`
	Category   DocumentCategory `gorm:"not null;index" json:"category" firestore:"category"`
	UploadedBy string           `json:"uploaded_by" firestore:"uploadedBy"`
	UploadedAt time.Time        `json:"uploaded_at" firestore:"uploadedAt"`
}

// TableName specifies the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns an id to new documents
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
