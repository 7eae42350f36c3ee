package dto

import (
	"rcms/internal/entity"
	"rcms/internal/session"
)

type RegisterRequest struct {
	Name       string  `json:"name" validate:"required,max=255"`
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,max=72"`
	Role       string  `json:"role" validate:"required,oneof=admin operator saas_provider"`
	Location   *string `json:"location,omitempty" validate:"omitempty,max=255"`
	CentreName *string `json:"centreName,omitempty" validate:"omitempty,max=255"`
	AdminID    *string `json:"adminId,omitempty" validate:"omitempty,uuid"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User      UserResponse `json:"user"`
	Redirect  string       `json:"redirect"`
	ExpiresAt int64        `json:"expiresAt"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified *bool  `json:"emailVerified,omitempty"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	verified := user.EmailVerified
	return UserResponse{
		ID:            user.ID.String(),
		Name:          user.Name,
		Email:         user.Email,
		Role:          string(user.Role),
		EmailVerified: &verified,
	}
}

func UserResponseFromIdentity(identity session.Identity) UserResponse {
	return UserResponse{
		ID:    identity.UserID.String(),
		Name:  identity.Name,
		Email: identity.Email,
		Role:  string(identity.Role),
	}
}

// SessionResponse is empty when no valid session accompanies the request.
type SessionResponse struct {
	User *UserResponse `json:"user,omitempty"`
}
