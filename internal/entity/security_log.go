package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SecurityAction string

const (
	Registered             SecurityAction = "register"
	LoginSuccess           SecurityAction = "login_success"
	LoginFailed            SecurityAction = "login_failed"
	Logout                 SecurityAction = "logout"
	EmailVerified          SecurityAction = "email_verified"
	PasswordResetRequested SecurityAction = "password_reset_requested"
	PasswordReset          SecurityAction = "password_reset"
	AdminUpdated           SecurityAction = "admin_updated"
	AdminDeleted           SecurityAction = "admin_deleted"
	ProfileUpdated         SecurityAction = "profile_updated"
)

type SecurityLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID    *uuid.UUID     `gorm:"type:uuid;index"`
	IPAddress *string        `gorm:"type:varchar(45)"`
	Action    SecurityAction `gorm:"type:varchar(64);not null;index"`

	Metadata datatypes.JSON

	CreatedAt time.Time
}
