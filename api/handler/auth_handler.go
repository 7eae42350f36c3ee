package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rcms/api/middleware"
	"rcms/internal/dto"
	"rcms/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

const DefaultSessionCookie = "session_token"

type AuthHandler struct {
	Service           *service.AuthService
	Validate          *validator.Validate
	SessionCookieName string
	CookieDomain      string
	SecureCookies     bool
	SameSite          http.SameSite
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate) *AuthHandler {
	return &AuthHandler{
		Service:           svc,
		Validate:          validate,
		SessionCookieName: DefaultSessionCookie,
		SecureCookies:     true,
		SameSite:          http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, validationMessage(err))
	}
	if _, err := h.Service.Register(c.Request().Context(), req, requestMeta(c)); err != nil {
		return writeServiceError(c, err, "Failed to register user")
	}
	return writeMessage(c, http.StatusCreated, "User registered. Please check your email for verification.")
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return writeError(c, http.StatusBadRequest, "Verification token is required")
	}
	err := h.Service.VerifyEmail(c.Request().Context(), token, requestMeta(c))
	if errors.Is(err, service.ErrInvalidToken) {
		return writeError(c, http.StatusBadRequest, "Invalid or expired verification token")
	}
	if err != nil {
		return writeServiceError(c, err, "Failed to verify email")
	}
	return writeMessage(c, http.StatusOK, "Email verified successfully")
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req dto.EmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return writeError(c, http.StatusBadRequest, "Email is required")
	}
	result, err := h.Service.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return writeServiceError(c, err, "Failed to resend verification email")
	}
	if result.AlreadyVerified {
		return writeMessage(c, http.StatusOK, "Email is already verified")
	}
	return writeMessage(c, http.StatusOK, "Verification email sent. Please check your inbox.")
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req dto.EmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return writeError(c, http.StatusBadRequest, "Email is required")
	}
	if err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email, requestMeta(c)); err != nil {
		return writeServiceError(c, err, "Failed to process password reset request")
	}
	return writeMessage(c, http.StatusOK, "If your email exists in our system, you will receive a password reset link.")
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req dto.PasswordResetRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		return writeError(c, http.StatusBadRequest, "Token and password are required")
	}
	if err := h.Service.ResetPassword(c.Request().Context(), req.Token, req.Password, requestMeta(c)); err != nil {
		return writeServiceError(c, err, "Failed to reset password")
	}
	return writeMessage(c, http.StatusOK, "Password has been reset successfully")
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := validate(h.Validate, req); err != nil {
		return writeError(c, http.StatusBadRequest, validationMessage(err))
	}
	result, err := h.Service.Login(c.Request().Context(), req.Email, req.Password, requestMeta(c))
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return writeError(c, http.StatusNotFound, "No user found with this email")
	case errors.Is(err, service.ErrEmailNotVerified):
		return writeError(c, http.StatusForbidden, "Please verify your email before logging in")
	case errors.Is(err, service.ErrInvalidCredentials):
		return writeError(c, http.StatusUnauthorized, "Invalid password")
	case err != nil:
		return writeServiceError(c, err, "Failed to log in")
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	return c.JSON(http.StatusOK, dto.LoginResponse{
		User:      dto.UserResponseFromIdentity(result.Identity),
		Redirect:  result.Redirect,
		ExpiresAt: result.ExpiresAt.Unix(),
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	token := middleware.SessionTokenFromContext(c)
	if token == "" {
		token = middleware.ExtractToken(c.Request(), h.SessionCookieName)
	}
	if err := h.Service.Logout(c.Request().Context(), token, identityOrNil(c), requestMeta(c)); err != nil {
		return writeServiceError(c, err, "Failed to log out")
	}
	h.clearSessionCookie(c)
	return writeMessage(c, http.StatusOK, "Logged out")
}

// Session reports the identity behind the request's credential, or an
// empty object when there is none.
func (h *AuthHandler) Session(c echo.Context) error {
	identity := identityOrNil(c)
	if identity == nil {
		return c.JSON(http.StatusOK, dto.SessionResponse{})
	}
	user := dto.UserResponseFromIdentity(*identity)
	return c.JSON(http.StatusOK, dto.SessionResponse{User: &user})
}

func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.Service.CurrentUser(c.Request().Context(), identityOrNil(c))
	if err != nil {
		return writeServiceError(c, err, "Failed to fetch user data")
	}
	return c.JSON(http.StatusOK, dto.UserResponseFromEntity(user))
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetCookie(&http.Cookie{
		Name:     h.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   maxAge,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: h.SameSite,
	})
}
