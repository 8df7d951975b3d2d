package models

import (
	"time"
)

// Role is the portal role of a user. It is authoritative from persistence, not from the identity token.
type Role string

const (
	RoleClient     Role = "client"
	RoleEmployee   Role = "employee"
	RoleAdmin      Role = "admin"
	RoleConsultant Role = "consultant"
)

// DefaultRole is assigned and persisted on first login
const DefaultRole = RoleClient

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleEmployee, RoleAdmin, RoleConsultant:
		return true
	}
	return false
}

// IsStaff reports whether r belongs to the firm rather than to a client
func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin || r == RoleConsultant
}

// User represents a portal user (client, employee, admin or consultant)
type User struct {
	UID            string     `gorm:"primaryKey;size:128" json:"uid" firestore:"uid"` // identity provider subject
	Email          string     `gorm:"uniqueIndex;not null" json:"email" firestore:"email"`
	DisplayName    string     `json:"display_name" firestore:"displayName"`
	PhotoURL       string     `json:"photo_url,omitempty" firestore:"photoURL,omitempty"`
	Role           Role       `gorm:"not null;default:'client';index" json:"role" firestore:"role"`
	Phone          string     `json:"phone,omitempty" firestore:"phone,omitempty"`
	Address        string     `gorm:"type:text" json:"address,omitempty" firestore:"address,omitempty"`
	CompanyName    string     `json:"company_name,omitempty" firestore:"companyName,omitempty"`
	TaxID          string     `json:"tax_id,omitempty" firestore:"taxId,omitempty"`
	Documents      []Document `gorm:"polymorphic:Owner;polymorphicValue:user" json:"documents,omitempty" firestore:"documents"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updated_at" firestore:"updatedAt"`
	LastSignInTime *time.Time `json:"last_sign_in_time,omitempty" firestore:"lastSignInTime,omitempty"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Name returns the display name, falling back to the email address
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
