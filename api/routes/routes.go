package routes

import (
	"net/http"
	"time"

	"rcms/api/handler"
	"rcms/api/middleware"
	"rcms/internal/entity"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo      *echo.Echo
	Gate      *middleware.Gate
	Auth      *handler.AuthHandler
	Admins    *handler.AdminHandler
	SaaS      *handler.SaaSHandler
	Pages     *handler.PageHandler
	Static    http.FileSystem
	AuthRate  *middleware.RateLimiter
	LoginRate *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	gate *middleware.Gate,
	authHandler *handler.AuthHandler,
	adminHandler *handler.AdminHandler,
	saasHandler *handler.SaaSHandler,
	pageHandler *handler.PageHandler,
) *Router {
	return &Router{
		Echo:      e,
		Gate:      gate,
		Auth:      authHandler,
		Admins:    adminHandler,
		SaaS:      saasHandler,
		Pages:     pageHandler,
		AuthRate:  middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate: middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo
	// Pre middleware runs ahead of e.Use, so the gate needs its own recover.
	e.Pre(echoMiddleware.Recover(), r.Gate.Middleware())

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", r.Auth.Register, r.AuthRate.Middleware())
	auth.GET("/verify-email", r.Auth.VerifyEmail, r.AuthRate.Middleware())
	auth.POST("/resend-verification", r.Auth.ResendVerification, r.LoginRate.Middleware())
	auth.POST("/forgot-password", r.Auth.ForgotPassword, r.LoginRate.Middleware())
	auth.POST("/reset-password", r.Auth.ResetPassword, r.AuthRate.Middleware())
	auth.POST("/login", r.Auth.Login, r.LoginRate.Middleware())
	auth.POST("/logout", r.Auth.Logout)
	auth.GET("/session", r.Auth.Session)
	auth.GET("/me", r.Auth.Me, middleware.RequireAuth)

	admins := api.Group("/admins", middleware.RequireRole(entity.UserRoleAdmin, entity.UserRoleSaaSProvider))
	admins.GET("", r.Admins.List)
	admins.PUT("/:id", r.Admins.Update)
	admins.DELETE("/:id", r.Admins.Delete)

	saas := api.Group("/saas", middleware.RequireRole(entity.UserRoleSaaSProvider))
	saas.GET("", r.SaaS.Get)
	saas.PUT("", r.SaaS.Update)

	e.GET("/", r.Pages.Home)
	e.GET("/login", r.Pages.Login)
	e.GET("/signup", r.Pages.Signup)
	e.GET("/forgot-password", r.Pages.ForgotPassword)
	e.GET("/reset-password", r.Pages.ResetPassword)
	e.GET("/verify-email", r.Pages.VerifyEmail)
	e.GET("/healthz", r.Pages.Health)
	e.GET("/admin/dashboard", r.Pages.Dashboard("Admin dashboard"))
	e.GET("/operator/dashboard", r.Pages.Dashboard("Operator dashboard"))
	e.GET("/saas/dashboard", r.Pages.Dashboard("SaaS dashboard"))

	if r.Static != nil {
		e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(r.Static))))
	}
}
