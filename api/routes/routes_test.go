package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"rcms/api/handler"
	"rcms/api/middleware"
	"rcms/internal/entity"
	"rcms/internal/repository"
	"rcms/internal/service"
	"rcms/internal/session"
	"rcms/web"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, email, _, token string) error {
	return m.record("verify:"+email, token)
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, email, _, token string) error {
	return m.record("reset:"+email, token)
}

func (m *captureMailer) record(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = token
	return nil
}

func (m *captureMailer) token(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[key]
}

type panickingSessions struct{}

func (panickingSessions) Issue(context.Context, session.Identity) (string, time.Time, error) {
	return "", time.Time{}, nil
}

func (panickingSessions) Resolve(context.Context, string) (*session.Identity, error) {
	panic("session backend exploded")
}

func (panickingSessions) Revoke(context.Context, string) error { return nil }

func (panickingSessions) TTL() time.Duration { return time.Hour }

type testApp struct {
	e      *echo.Echo
	mailer *captureMailer
	users  repository.UserRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	users := repository.NewUserRepository(db)
	securityLogs := repository.NewSecurityLogRepository(db)
	sessions := session.NewJWTManager([]byte("routes-secret"), "rcms", time.Hour)
	mailer := &captureMailer{tokens: map[string]string{}}
	validate := validator.New()
	hasher := service.BcryptPasswordHasher{}

	authService := service.NewAuthService(users, securityLogs, sessions, mailer, hasher, service.RealClock{}, service.AuthConfig{}, log)
	adminService := service.NewAdminService(users, securityLogs, validate, log)
	providerService := service.NewProviderService(users, securityLogs, mailer, hasher, service.RealClock{}, service.AuthConfig{}, log)

	renderer, err := web.LoadTemplates()
	require.NoError(t, err)
	static, err := web.GetStaticFS()
	require.NoError(t, err)

	e := echo.New()
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.Renderer = renderer

	authHandler := handler.NewAuthHandler(authService, validate)
	authHandler.SecureCookies = false
	router := NewRouter(
		e,
		middleware.NewGate(sessions, handler.DefaultSessionCookie, log),
		authHandler,
		handler.NewAdminHandler(adminService),
		handler.NewSaaSHandler(providerService, validate),
		handler.NewPageHandler(),
	)
	router.Static = http.FS(static)
	router.RegisterRoutes()

	return &testApp{e: e, mailer: mailer, users: users}
}

func (a *testApp) do(t *testing.T, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == handler.DefaultSessionCookie {
			return cookie
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func (a *testApp) registerAndVerify(t *testing.T, name, email, role string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "Passw0rd!", "role": role,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.do(t, http.MethodGet, "/api/auth/verify-email?token="+a.mailer.token("verify:"+email), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (a *testApp) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "Passw0rd!"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func TestScenario_RegisterVerifyLoginUpdate(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	rec := app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Alice", "email": "a@x.com", "password": "Passw0rd!", "role": "admin",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "User registered. Please check your email for verification.", decodeBody(t, rec)["message"])

	alice, err := app.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.False(t, alice.EmailVerified)
	assert.NotEqual(t, "Passw0rd!", alice.PasswordHash)

	token := app.mailer.token("verify:a@x.com")
	rec = app.do(t, http.MethodGet, "/api/auth/verify-email?token="+token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	alice, err = app.users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, alice.EmailVerified)
	assert.Nil(t, alice.VerificationToken)

	rec = app.do(t, http.MethodGet, "/api/auth/verify-email?token="+token, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired verification token", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "A@x.com", "password": "Passw0rd!"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(t, rec)
	assert.True(t, cookie.HttpOnly)
	body := decodeBody(t, rec)
	assert.Equal(t, "/admin/dashboard", body["redirect"])
	assert.Equal(t, "admin", body["user"].(map[string]any)["role"])

	rec = app.do(t, http.MethodGet, "/api/auth/session", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decodeBody(t, rec)
	assert.Equal(t, "a@x.com", current["user"].(map[string]any)["email"])
	assert.Len(t, current, 1, "session carries only the user")

	rec = app.do(t, http.MethodGet, "/api/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	assert.Equal(t, alice.ID.String(), me["id"])
	assert.Equal(t, true, me["emailVerified"])

	rec = app.do(t, http.MethodPut, "/api/admins/"+alice.ID.String(), map[string]any{
		"creditBalance": 50, "role": "operator",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 50.0, decodeBody(t, rec)["creditBalance"])

	alice, err = app.users.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, alice.CreditBalance)
	assert.Equal(t, entity.UserRoleAdmin, alice.Role)

	rec = app.do(t, http.MethodGet, "/admin/dashboard", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Admin dashboard")
}

func TestGate_Redirects(t *testing.T) {
	app := newTestApp(t)
	app.registerAndVerify(t, "Sam", "sam@x.com", "saas_provider")
	cookie := app.login(t, "sam@x.com")

	rec := app.do(t, http.MethodGet, "/admin/dashboard", nil, cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	rec = app.do(t, http.MethodGet, "/saas/dashboard", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/operator/dashboard", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login?callbackUrl="))

	rec = app.do(t, http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/static/app.css", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAPI_RegisterErrors(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@x.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "A", "email": "a@x.com", "password": "Passw0rd!", "role": "root",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid user role", decodeBody(t, rec)["error"])

	app.registerAndVerify(t, "Alice", "a@x.com", "admin")
	rec = app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Alice", "email": "a@x.com", "password": "Passw0rd!", "role": "operator",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email already exists", decodeBody(t, rec)["error"])
}

func TestAuthAPI_RegisterShortPassword(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Bob", "email": "bob@x.com", "password": "abc", "role": "operator",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/auth/verify-email?token="+app.mailer.token("verify:bob@x.com"), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "bob@x.com", "password": "abc"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAPI_LoginFailures(t *testing.T) {
	app := newTestApp(t)
	app.registerAndVerify(t, "Alice", "a@x.com", "admin")
	rec := app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Bob", "email": "b@x.com", "password": "Passw0rd!", "role": "operator",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "b@x.com", "password": "Passw0rd!"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no session for unverified accounts")

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@x.com", "password": "nope"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthAPI_PasswordReset(t *testing.T) {
	app := newTestApp(t)
	app.registerAndVerify(t, "Alice", "a@x.com", "admin")

	generic := "If your email exists in our system, you will receive a password reset link."
	rec := app.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@x.com"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, generic, decodeBody(t, rec)["message"])

	rec = app.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "a@x.com"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, generic, decodeBody(t, rec)["message"])
	token := app.mailer.token("reset:a@x.com")
	require.NotEmpty(t, token)

	rec = app.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password should be at least 8 characters long", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Brand-new-1"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Brand-new-2"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Brand-new-1"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthAPI_ResendVerification(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "ghost@x.com"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	app.registerAndVerify(t, "Alice", "a@x.com", "admin")
	rec = app.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "a@x.com"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Email is already verified", decodeBody(t, rec)["message"])
}

func TestAuthAPI_MeWithoutSession(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodGet, "/api/auth/session", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec))
}

func TestAdminsAPI(t *testing.T) {
	app := newTestApp(t)
	app.registerAndVerify(t, "Alice", "a@x.com", "admin")
	app.registerAndVerify(t, "Sam", "sam@x.com", "saas_provider")
	app.registerAndVerify(t, "Olu", "op@x.com", "operator")
	provider := app.login(t, "sam@x.com")

	rec := app.do(t, http.MethodGet, "/api/admins", nil, provider)
	require.Equal(t, http.StatusOK, rec.Code)
	var admins []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &admins))
	require.Len(t, admins, 1)
	assert.Equal(t, "a@x.com", admins[0]["email"])
	assert.NotContains(t, admins[0], "passwordHash")

	operator, err := app.users.FindByEmail(context.Background(), "op@x.com")
	require.NoError(t, err)
	rec = app.do(t, http.MethodDelete, "/api/admins/"+operator.ID.String(), nil, provider)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Admin not found", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodPut, "/api/admins/"+admins[0]["id"].(string), map[string]any{"creditBalance": "lots"}, provider)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/admins/"+admins[0]["id"].(string), nil, provider)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Admin deleted successfully", decodeBody(t, rec)["message"])

	operatorCookie := app.login(t, "op@x.com")
	rec = app.do(t, http.MethodGet, "/api/admins", nil, operatorCookie)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestSaaSAPI(t *testing.T) {
	app := newTestApp(t)
	app.registerAndVerify(t, "Sam", "sam@x.com", "saas_provider")
	cookie := app.login(t, "sam@x.com")

	rec := app.do(t, http.MethodGet, "/api/saas", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sam@x.com", body["data"].(map[string]any)["email"])

	rec = app.do(t, http.MethodPut, "/api/saas", map[string]string{"currentPassword": "wrong", "newPassword": "Another-1"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Current password is incorrect", decodeBody(t, rec)["error"])

	rec = app.do(t, http.MethodPut, "/api/saas", map[string]string{"email": "samuel@x.com"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "samuel@x.com", data["email"])
	assert.Equal(t, false, data["emailVerified"])
	assert.NotEmpty(t, app.mailer.token("verify:samuel@x.com"))

	rec = app.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	cleared := sessionCookie(t, rec)
	assert.Empty(t, cleared.Value)
}

func TestGate_PanicIsRecovered(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)

	router := NewRouter(
		e,
		middleware.NewGate(panickingSessions{}, handler.DefaultSessionCookie, log),
		handler.NewAuthHandler(nil, nil),
		handler.NewAdminHandler(nil),
		handler.NewSaaSHandler(nil, nil),
		handler.NewPageHandler(),
	)
	router.RegisterRoutes()

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: handler.DefaultSessionCookie, Value: "anything"})
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { e.ServeHTTP(rec, req) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}
