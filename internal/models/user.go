package models

import (
	"time"
)

// UserRole is stored as a small integer; lower values carry more privilege.
type UserRole int

const (
	RoleAdmin       UserRole = 1
	RoleCoordinator UserRole = 2
	RoleTeacher     UserRole = 3
	RoleStudent     UserRole = 4
)

func (r UserRole) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleCoordinator:
		return "coordinator"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	default:
		return "unknown"
	}
}

func (r UserRole) Valid() bool {
	return r >= RoleAdmin && r <= RoleStudent
}

// IsStaff reports whether the role administers the whole platform.
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleCoordinator
}

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

type User struct {
	ID           uint               `json:"id" gorm:"primaryKey"`
	Username     string             `json:"username" gorm:"uniqueIndex;not null;size:50"`
	Email        string             `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Name         string             `json:"name" gorm:"not null;size:120"`
	PasswordHash string             `json:"-" gorm:"column:password_hash;not null"`
	Role         UserRole           `json:"role" gorm:"not null;index"`
	Status       RegistrationStatus `json:"status" gorm:"not null;default:pending;index;size:20"`

	// Stored file keys, relative to the upload directory.
	Photo       *string `json:"photo" gorm:"size:500"`
	DiplomaPath *string `json:"-" gorm:"column:diploma_path;size:500"`
	HasDiploma  bool    `json:"has_diploma" gorm:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Sanitize fills computed fields before the user is rendered.
func (u *User) Sanitize() *User {
	if u == nil {
		return nil
	}
	u.HasDiploma = u.DiplomaPath != nil && *u.DiplomaPath != ""
	return u
}

func (u *User) IsApproved() bool {
	return u.Status == RegistrationApproved
}
