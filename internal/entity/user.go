package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin        UserRole = "admin"
	UserRoleOperator     UserRole = "operator"
	UserRoleSaaSProvider UserRole = "saas_provider"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleOperator, UserRoleSaaSProvider:
		return true
	}
	return false
}

// User is the single account record shared by every role. Role specific
// attributes are optional columns rather than separate tables.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	Role         UserRole  `gorm:"type:varchar(32);not null;index"`

	EmailVerified        bool    `gorm:"not null;default:false"`
	VerificationToken    *string `gorm:"type:text;index"`
	VerificationExpires  *time.Time
	ResetPasswordToken   *string `gorm:"type:text;index"`
	ResetPasswordExpires *time.Time

	// admin and operator
	Location   *string `gorm:"type:varchar(255)"`
	CentreName *string `gorm:"type:varchar(255)"`
	// admin
	CreditBalance float64 `gorm:"not null;default:0"`
	// operator
	AdminID *uuid.UUID `gorm:"type:uuid;index"`
	// saas_provider
	Revenue float64 `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AdminPatch carries the whitelisted admin fields of a partial update.
// A nil field is left untouched. An empty Location or CentreName clears it.
type AdminPatch struct {
	Name          *string
	Email         *string
	Location      *string
	CentreName    *string
	CreditBalance *float64
	EmailVerified *bool
}

func (p AdminPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Location == nil &&
		p.CentreName == nil && p.CreditBalance == nil && p.EmailVerified == nil
}
