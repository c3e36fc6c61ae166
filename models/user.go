package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents a storefront customer or a back-office admin
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Auth0ID   string         `gorm:"size:128;uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name      string         `gorm:"size:255;not null" json:"name"`
	Email     string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string         `gorm:"size:20;not null;default:'customer'" json:"role"` // "customer" or "admin"
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user may use back-office endpoints
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
