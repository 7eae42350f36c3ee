package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength           = 8
	DefaultVerificationTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL        = time.Hour
)

type AuthConfig struct {
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

func (c AuthConfig) verificationTTL() time.Duration {
	if c.VerificationTokenTTL > 0 {
		return c.VerificationTokenTTL
	}
	return DefaultVerificationTokenTTL
}

func (c AuthConfig) resetTTL() time.Duration {
	if c.ResetTokenTTL > 0 {
		return c.ResetTokenTTL
	}
	return DefaultResetTokenTTL
}

// EmailSender delivers the raw token; the sender decides how it is
// presented (link, plain text).
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email, name, token string) error
	SendPasswordResetEmail(ctx context.Context, email, name, token string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
