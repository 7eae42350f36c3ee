package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// GenerateRandomToken returns size bytes of crypto/rand output, hex encoded.
func GenerateRandomToken(size int) (string, error) {
	buffer := make([]byte, size)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}

// HashToken is the form a token is persisted in. Only the raw token ever
// leaves the server, inside an email link.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func ExpiryFrom(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// IsTokenValid reports whether a stored token is still usable at now.
func IsTokenValid(token *string, expiresAt *time.Time, now time.Time) bool {
	if token == nil || *token == "" || expiresAt == nil {
		return false
	}
	return expiresAt.After(now)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
