package session

import (
	"context"
	"time"

	"rcms/internal/entity"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JWTManager struct {
	Secret []byte
	Issuer string
	// Validity window of every issued token; DefaultTTL when zero.
	Lifetime time.Duration
	Now      func() time.Time
}

type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTManager(secret []byte, issuer string, ttl time.Duration) *JWTManager {
	return &JWTManager{Secret: secret, Issuer: issuer, Lifetime: ttl}
}

func (m *JWTManager) Issue(_ context.Context, identity Identity) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.TTL())
	claims := Claims{
		Name:  identity.Name,
		Email: identity.Email,
		Role:  string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.Issuer,
			Subject:   identity.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *JWTManager) Resolve(_ context.Context, tokenString string) (*Identity, error) {
	options := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return m.Secret, nil
	}, options...)
	if err != nil {
		return nil, ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidSession
	}
	role := entity.UserRole(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidSession
	}
	return &Identity{UserID: userID, Name: claims.Name, Email: claims.Email, Role: role}, nil
}

// Revoke is a no-op: a signed token stays valid until it expires.
func (m *JWTManager) Revoke(context.Context, string) error {
	return nil
}

func (m *JWTManager) TTL() time.Duration {
	return ttlOrDefault(m.Lifetime)
}

func (m *JWTManager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
