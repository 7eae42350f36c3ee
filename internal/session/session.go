// Package session issues and resolves the credential that identifies a
// logged-in user on every request.
package session

import (
	"context"
	"errors"
	"time"

	"rcms/internal/entity"

	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session")

// Identity is what a session credential carries. It is the only view of a
// user that travels with a request.
type Identity struct {
	UserID uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   entity.UserRole `json:"role"`
}

func IdentityFromUser(user *entity.User) Identity {
	return Identity{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
	}
}

// Manager is implemented by both the stateless JWT driver and the Redis
// backed store. Resolve returns ErrInvalidSession for anything it cannot
// accept.
type Manager interface {
	Issue(ctx context.Context, identity Identity) (string, time.Time, error)
	Resolve(ctx context.Context, token string) (*Identity, error)
	Revoke(ctx context.Context, token string) error
	TTL() time.Duration
}

const DefaultTTL = 30 * 24 * time.Hour

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

var (
	_ Manager = (*JWTManager)(nil)
	_ Manager = (*RedisStore)(nil)
)
