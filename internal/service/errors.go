package service

import "errors"

var (
	ErrMissingFields          = errors.New("missing required fields")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidRole            = errors.New("invalid user role")
	ErrEmailAlreadyRegistered = errors.New("user with this email already exists")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailNotVerified       = errors.New("email not verified")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrPasswordTooShort       = errors.New("password should be at least 8 characters long")
	ErrWrongPassword          = errors.New("current password is incorrect")
	ErrUserNotFound           = errors.New("user not found")
	ErrAdminNotFound          = errors.New("admin not found")
	ErrProviderNotFound       = errors.New("saas provider not found")
	ErrUnauthorized           = errors.New("unauthorized")
)
