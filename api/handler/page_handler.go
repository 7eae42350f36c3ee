package handler

import (
	"net/http"
	"net/url"
	"strings"

	"rcms/internal/service"
	"rcms/internal/session"

	"github.com/labstack/echo/v4"
)

type PageData struct {
	Title       string
	User        *session.Identity
	Landing     string
	CallbackURL string
	Token       string
}

// PageHandler renders the server side pages. Access control is left to
// the gate.
type PageHandler struct{}

func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

func (h *PageHandler) Home(c echo.Context) error {
	data := h.data(c, "RCMS")
	if data.User != nil {
		data.Landing = service.LandingPage(data.User.Role)
	}
	return c.Render(http.StatusOK, "home", data)
}

func (h *PageHandler) Login(c echo.Context) error {
	data := h.data(c, "Log in")
	data.CallbackURL = sameHostCallback(c)
	return c.Render(http.StatusOK, "login", data)
}

func (h *PageHandler) Signup(c echo.Context) error {
	return c.Render(http.StatusOK, "signup", h.data(c, "Sign up"))
}

func (h *PageHandler) ForgotPassword(c echo.Context) error {
	return c.Render(http.StatusOK, "forgot-password", h.data(c, "Forgot password"))
}

func (h *PageHandler) ResetPassword(c echo.Context) error {
	data := h.data(c, "Reset password")
	data.Token = c.QueryParam("token")
	return c.Render(http.StatusOK, "reset-password", data)
}

func (h *PageHandler) VerifyEmail(c echo.Context) error {
	data := h.data(c, "Verify email")
	data.Token = c.QueryParam("token")
	return c.Render(http.StatusOK, "verify-email", data)
}

func (h *PageHandler) Dashboard(title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "dashboard", h.data(c, title))
	}
}

func (h *PageHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// sameHostCallback drops callback URLs that point at another host.
func sameHostCallback(c echo.Context) string {
	raw := c.QueryParam("callbackUrl")
	if raw == "" {
		return ""
	}
	target, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if target.Host != "" && target.Host != c.Request().Host {
		return ""
	}
	if target.Host == "" && !strings.HasPrefix(target.Path, "/") {
		return ""
	}
	return target.String()
}

func (h *PageHandler) data(c echo.Context, title string) PageData {
	return PageData{Title: title, User: identityOrNil(c)}
}
