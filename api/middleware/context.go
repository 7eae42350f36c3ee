package middleware

import (
	"rcms/internal/session"

	"github.com/labstack/echo/v4"
)

const (
	contextIdentityKey = "auth_identity"
	contextTokenKey    = "auth_session_token"
)

func SetAuthContext(c echo.Context, identity *session.Identity, token string) {
	c.Set(contextIdentityKey, identity)
	c.Set(contextTokenKey, token)
}

// IdentityFromContext returns the identity the gate resolved for this
// request, if any.
func IdentityFromContext(c echo.Context) (*session.Identity, bool) {
	identity, ok := c.Get(contextIdentityKey).(*session.Identity)
	return identity, ok && identity != nil
}

func SessionTokenFromContext(c echo.Context) string {
	token, _ := c.Get(contextTokenKey).(string)
	return token
}
