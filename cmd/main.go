package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rcms/api/handler"
	apiMiddleware "rcms/api/middleware"
	"rcms/api/routes"
	"rcms/config"
	"rcms/internal/service"
	"rcms/internal/session"
	"rcms/web"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	logger.WithField("driver", db.Driver()).Info("database ready")

	var redisClient *redis.Client
	var sessions session.Manager
	switch cfg.Session.Driver {
	case config.SessionDriverRedis:
		redisClient, err = config.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Fatal("connect redis")
		}
		sessions = session.NewRedisStore(redisClient, cfg.Session.TTL)
	default:
		sessions = session.NewJWTManager([]byte(cfg.Session.Secret), cfg.Session.Issuer, cfg.Session.TTL)
	}

	var mailer service.EmailSender
	switch cfg.Mail.Driver {
	case config.MailDriverResend:
		mailer = service.NewResendEmailSender(cfg.Mail.ResendAPIKey, cfg.Mail.From, cfg.Server.AppBaseURL)
	default:
		logger.Warn("MAIL_DRIVER=log, emails are written to the log instead of being sent")
		mailer = service.NewLogEmailSender(cfg.Server.AppBaseURL, logger)
	}

	validate := validator.New()
	users := db.Users()
	securityLogs := db.SecurityLogs()
	passwordHasher := service.BcryptPasswordHasher{Cost: cfg.Auth.BcryptCost}
	authConfig := service.AuthConfig{
		VerificationTokenTTL: cfg.Auth.VerificationTokenTTL,
		ResetTokenTTL:        cfg.Auth.ResetTokenTTL,
	}

	authService := service.NewAuthService(users, securityLogs, sessions, mailer, passwordHasher, service.RealClock{}, authConfig, logger)
	adminService := service.NewAdminService(users, securityLogs, validate, logger)
	providerService := service.NewProviderService(users, securityLogs, mailer, passwordHasher, service.RealClock{}, authConfig, logger)

	authHandler := handler.NewAuthHandler(authService, validate)
	authHandler.CookieDomain = cfg.Server.CookieDomain
	authHandler.SecureCookies = cfg.Server.CookieSecure

	renderer, err := web.LoadTemplates()
	if err != nil {
		logger.WithError(err).Fatal("load templates")
	}
	staticFS, err := web.GetStaticFS()
	if err != nil {
		logger.WithError(err).Fatal("load static files")
	}

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Renderer = renderer
	app.HTTPErrorHandler = handler.HTTPErrorHandler(logger)
	// Registered as Pre so gate redirects are logged too.
	app.Pre(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	gate := apiMiddleware.NewGate(sessions, authHandler.SessionCookieName, logger)
	router := routes.NewRouter(
		app,
		gate,
		authHandler,
		handler.NewAdminHandler(adminService),
		handler.NewSaaSHandler(providerService, validate),
		handler.NewPageHandler(),
	)
	router.Static = http.FS(staticFS)
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("close redis")
		}
	}
	if err := db.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("close database")
	}
	logger.Info("server stopped")
}
