package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleClient UserRole = "client"
	RoleWorker UserRole = "worker"
	RoleAdmin  UserRole = "admin"
)

type User struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Email           string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	FirstName       string    `json:"firstName" gorm:"size:100"`
	LastName        string    `json:"lastName" gorm:"size:100"`
	ProfileImageURL *string   `json:"profileImageUrl" gorm:"size:500"`
	PasswordHash    *string   `json:"-" gorm:"column:password;size:255"` // nil for accounts created by an identity provider
	Role            UserRole  `json:"role" gorm:"type:varchar(20);not null;default:'client';check:role IN ('client','worker','admin')"`
	City            string    `json:"city" gorm:"size:100;index"`
	CreatedAt       time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updatedAt" gorm:"autoUpdateTime"`

	WorkerProfile *WorkerProfile `json:"workerProfile,omitempty" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate is a GORM hook that runs before creating a user
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleClient
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// IsValidRole checks if the user role is valid
func (u *User) IsValidRole() bool {
	return u.Role.IsValid()
}

func (r UserRole) IsValid() bool {
	switch r {
	case RoleClient, RoleWorker, RoleAdmin:
		return true
	default:
		return false
	}
}

func (u *User) IsWorker() bool {
	return u.Role == RoleWorker
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsClient() bool {
	return u.Role == RoleClient
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
