package service

import (
	"fmt"
	"time"

	"rcms/internal/utils"
)

const tokenBytes = 32

// newToken mints a single-use token. The raw value goes into the email,
// the digest and expiry into the user record.
func newToken(clock Clock, ttl time.Duration) (raw, digest string, expiresAt time.Time, err error) {
	raw, err = utils.GenerateRandomToken(tokenBytes)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate token: %w", err)
	}
	return raw, utils.HashToken(raw), utils.ExpiryFrom(clock.Now(), ttl), nil
}
