package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"rcms/internal/entity"
	"rcms/internal/session"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type Verdict int

const (
	Allow Verdict = iota
	Unauthenticated
	Forbidden
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// RouteRule restricts every path under Prefix to the listed roles.
// Prefixes match whole path segments: "/saas" covers "/saas/x" but not
// "/saas_provider".
type RouteRule struct {
	Prefix string
	Roles  []entity.UserRole
}

var DefaultPublicPaths = []string{
	"/",
	"/login",
	"/signup",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
	"/healthz",
}

var DefaultPublicPrefixes = []string{
	"/static",
	"/api/auth",
}

var DefaultRules = []RouteRule{
	{Prefix: "/admin", Roles: []entity.UserRole{entity.UserRoleAdmin}},
	{Prefix: "/operator", Roles: []entity.UserRole{entity.UserRoleOperator}},
	{Prefix: "/saas", Roles: []entity.UserRole{entity.UserRoleSaaSProvider}},
	{Prefix: "/saas_provider", Roles: []entity.UserRole{entity.UserRoleSaaSProvider}},
	{Prefix: "/api/admins", Roles: []entity.UserRole{entity.UserRoleAdmin, entity.UserRoleSaaSProvider}},
	{Prefix: "/api/saas", Roles: []entity.UserRole{entity.UserRoleSaaSProvider}},
}

// Gate runs before routing on every request. It resolves the session
// credential, stores the identity in the context and then either lets the
// request through or redirects it: to the login page when there is no
// valid session, to the home page when the role does not fit the path.
type Gate struct {
	Sessions       session.Manager
	CookieName     string
	LoginPath      string
	HomePath       string
	PublicPaths    []string
	PublicPrefixes []string
	Rules          []RouteRule
	Logger         logrus.FieldLogger
}

func NewGate(sessions session.Manager, cookieName string, logger logrus.FieldLogger) *Gate {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Gate{
		Sessions:       sessions,
		CookieName:     cookieName,
		LoginPath:      "/login",
		HomePath:       "/",
		PublicPaths:    DefaultPublicPaths,
		PublicPrefixes: DefaultPublicPrefixes,
		Rules:          DefaultRules,
		Logger:         logger.WithField("component", "gate"),
	}
}

// Decide is the pure part of the gate: given a path and the resolved
// identity (nil when unauthenticated) it returns what to do.
func (g *Gate) Decide(path string, identity *session.Identity) Verdict {
	path = cleanPath(path)
	if g.isPublic(path) {
		return Allow
	}
	if identity == nil {
		return Unauthenticated
	}
	for _, rule := range g.Rules {
		if matchesPrefix(path, rule.Prefix) && !slices.Contains(rule.Roles, identity.Role) {
			return Forbidden
		}
	}
	return Allow
}

func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			identity, token := g.resolve(c)
			if identity != nil {
				SetAuthContext(c, identity, token)
			}

			switch g.Decide(req.URL.Path, identity) {
			case Unauthenticated:
				return c.Redirect(http.StatusFound, g.loginURL(c))
			case Forbidden:
				g.Logger.WithFields(logrus.Fields{
					"path": req.URL.Path,
					"role": identity.Role,
				}).Info("role not allowed on path")
				return c.Redirect(http.StatusFound, g.HomePath)
			}
			return next(c)
		}
	}
}

func (g *Gate) resolve(c echo.Context) (*session.Identity, string) {
	token := ExtractToken(c.Request(), g.CookieName)
	if token == "" || g.Sessions == nil {
		return nil, ""
	}
	identity, err := g.Sessions.Resolve(c.Request().Context(), token)
	if err != nil {
		if !errors.Is(err, session.ErrInvalidSession) {
			g.Logger.WithError(err).Warn("resolve session")
		}
		return nil, ""
	}
	return identity, token
}

// loginURL carries the full requested URL so the login page can send the
// user back after signing in.
func (g *Gate) loginURL(c echo.Context) string {
	req := c.Request()
	requested := c.Scheme() + "://" + req.Host + req.URL.RequestURI()
	return g.LoginPath + "?callbackUrl=" + url.QueryEscape(requested)
}

func (g *Gate) isPublic(path string) bool {
	if slices.Contains(g.PublicPaths, path) {
		return true
	}
	for _, prefix := range g.PublicPrefixes {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func matchesPrefix(path, prefix string) bool {
	prefix = strings.TrimRight(prefix, "/")
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func cleanPath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
