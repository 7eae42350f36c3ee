package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode"

	"rcms/api/middleware"
	"rcms/internal/service"
	"rcms/internal/session"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

var errMalformedBody = errors.New("invalid request body")

// decodeJSON reads the request body into target. An empty body leaves
// target untouched so required-field validation reports it.
func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return errMalformedBody
	}
	return nil
}

func writeError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

func writeMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"message": message})
}

// writeServiceError maps service errors to a status and a client message.
// Anything unrecognised becomes a 500 carrying fallback; the cause is kept
// as the internal error so only the request log sees it.
func writeServiceError(c echo.Context, err error, fallback string) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrMissingFields),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrPasswordTooShort),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrInvalidToken):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAdminNotFound),
		errors.Is(err, service.ErrProviderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmailAlreadyRegistered):
		status = http.StatusConflict
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, fallback).SetInternal(err)
	}
	return writeError(c, status, capitalize(err.Error()))
}

// validationMessage turns the first failed validator tag into the message
// the client sees.
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return capitalize(err.Error())
	}
	fieldErr := validationErrors[0]
	switch fieldErr.Tag() {
	case "required":
		return "Missing required fields"
	case "oneof":
		if fieldErr.Field() == "Role" {
			return "Invalid user role"
		}
	case "email":
		return "Invalid email address"
	case "min":
		if strings.Contains(fieldErr.Field(), "Password") {
			return "Password should be at least 8 characters long"
		}
	}
	return "Invalid " + lowerFirst(fieldErr.Field())
}

func validate(v *validator.Validate, payload any) error {
	if v == nil {
		return nil
	}
	return v.Struct(payload)
}

func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: stringPtr(c.RealIP()),
		UserAgent: c.Request().UserAgent(),
	}
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func capitalize(message string) string {
	if message == "" {
		return message
	}
	runes := []rune(message)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func lowerFirst(message string) string {
	if message == "" {
		return message
	}
	runes := []rune(message)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// HTTPErrorHandler renders every error that reaches echo as {"error": ...}.
// Redirects issued by the gate never get here.
func HTTPErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		message := "Internal server error"
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
			if text, ok := httpErr.Message.(string); ok {
				message = text
			} else if status != http.StatusInternalServerError {
				message = http.StatusText(status)
			}
			if httpErr.Internal != nil {
				logger.WithError(httpErr.Internal).WithField("path", c.Request().URL.Path).Error(message)
			}
		} else {
			logger.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = writeError(c, status, message)
		}
		if err != nil {
			logger.WithError(err).Warn("write error response")
		}
	}
}

func identityOrNil(c echo.Context) *session.Identity {
	identity, _ := middleware.IdentityFromContext(c)
	return identity
}
