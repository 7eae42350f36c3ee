package service

import (
	"time"

	"rcms/internal/entity"
	"rcms/internal/session"
)

// RequestMeta is what the HTTP layer knows about the caller, recorded in
// the security log.
type RequestMeta struct {
	IPAddress *string
	UserAgent string
}

type LoginResult struct {
	Identity  session.Identity
	Token     string
	ExpiresAt time.Time
	Redirect  string
}

type ResendResult struct {
	AlreadyVerified bool
}

// LandingPage is the dashboard a role is sent to after login.
func LandingPage(role entity.UserRole) string {
	switch role {
	case entity.UserRoleAdmin:
		return "/admin/dashboard"
	case entity.UserRoleOperator:
		return "/operator/dashboard"
	case entity.UserRoleSaaSProvider:
		return "/saas/dashboard"
	}
	return "/"
}
