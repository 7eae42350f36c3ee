package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingDatabaseURL   = errors.New("DATABASE_URL is required")
	ErrMissingSessionSecret = errors.New("SESSION_SECRET is required for the jwt session driver")
	ErrMissingResendAPIKey  = errors.New("RESEND_API_KEY is required for the resend mail driver")
	ErrUnknownSessionDriver = errors.New("SESSION_DRIVER must be jwt or redis")
	ErrUnknownMailDriver    = errors.New("MAIL_DRIVER must be resend or log")
)

const (
	SessionDriverJWT   = "jwt"
	SessionDriverRedis = "redis"
	MailDriverResend   = "resend"
	MailDriverLog      = "log"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Mail     MailConfig
	Auth     AuthConfig
	LogLevel string
}

type ServerConfig struct {
	Addr         string
	AppBaseURL   string
	CookieDomain string
	CookieSecure bool
}

type DatabaseConfig struct {
	URL  string
	Name string
}

type SessionConfig struct {
	Driver string
	Secret string
	Issuer string
	TTL    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MailConfig struct {
	Driver       string
	ResendAPIKey string
	From         string
}

type AuthConfig struct {
	BcryptCost           int
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
}

// Load reads .env when present, then the environment. Environment
// variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("DATABASE_NAME", "rcms")
	v.SetDefault("SESSION_DRIVER", SessionDriverJWT)
	v.SetDefault("SESSION_ISSUER", "rcms")
	v.SetDefault("SESSION_TTL", "720h")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MAIL_DRIVER", MailDriverLog)
	v.SetDefault("MAIL_FROM", "RCMS <no-reply@rcms.local>")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("VERIFICATION_TOKEN_TTL", "24h")
	v.SetDefault("RESET_TOKEN_TTL", "1h")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Addr:         v.GetString("HTTP_ADDR"),
			AppBaseURL:   strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
			CookieDomain: v.GetString("COOKIE_DOMAIN"),
			CookieSecure: v.GetBool("COOKIE_SECURE"),
		},
		Database: DatabaseConfig{
			URL:  strings.TrimSpace(v.GetString("DATABASE_URL")),
			Name: v.GetString("DATABASE_NAME"),
		},
		Session: SessionConfig{
			Driver: strings.ToLower(v.GetString("SESSION_DRIVER")),
			Secret: v.GetString("SESSION_SECRET"),
			Issuer: v.GetString("SESSION_ISSUER"),
			TTL:    v.GetDuration("SESSION_TTL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Mail: MailConfig{
			Driver:       strings.ToLower(v.GetString("MAIL_DRIVER")),
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			From:         v.GetString("MAIL_FROM"),
		},
		Auth: AuthConfig{
			BcryptCost:           v.GetInt("BCRYPT_COST"),
			VerificationTokenTTL: v.GetDuration("VERIFICATION_TOKEN_TTL"),
			ResetTokenTTL:        v.GetDuration("RESET_TOKEN_TTL"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	switch c.Session.Driver {
	case SessionDriverJWT:
		if c.Session.Secret == "" {
			return ErrMissingSessionSecret
		}
	case SessionDriverRedis:
	default:
		return ErrUnknownSessionDriver
	}
	switch c.Mail.Driver {
	case MailDriverResend:
		if c.Mail.ResendAPIKey == "" {
			return ErrMissingResendAPIKey
		}
	case MailDriverLog:
	default:
		return ErrUnknownMailDriver
	}
	return nil
}
