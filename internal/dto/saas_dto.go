package dto

import (
	"time"

	"rcms/internal/entity"
)

type SaaSUpdateRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email           *string `json:"email,omitempty" validate:"omitempty,email"`
	CurrentPassword *string `json:"currentPassword,omitempty"`
	NewPassword     *string `json:"newPassword,omitempty"`
}

type SaaSProfile struct {
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Revenue       float64   `json:"revenue"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type SaaSProfileResponse struct {
	Success bool        `json:"success"`
	Data    SaaSProfile `json:"data"`
	Message string      `json:"message,omitempty"`
}

func SaaSProfileFromEntity(user *entity.User) SaaSProfile {
	return SaaSProfile{
		Name:          user.Name,
		Email:         user.Email,
		Revenue:       user.Revenue,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	}
}
