package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rcms/internal/dto"
	"rcms/internal/entity"
	"rcms/internal/repository"
	"rcms/internal/session"
	"rcms/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type AuthService struct {
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository
	sessions     session.Manager

	emailSender  EmailSender
	passwordHash PasswordHasher
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewAuthService(
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	sessions session.Manager,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthService {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		users:        users,
		securityLogs: securityLogs,
		sessions:     sessions,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		clock:        clock,
		config:       config,
		logger:       logger.WithField("component", "auth"),
	}
}

// Register creates an unverified account. The verification mail goes out
// before the record is written: if it cannot be sent, nothing is stored.
func (s *AuthService) Register(ctx context.Context, input dto.RegisterRequest, meta RequestMeta) (*entity.User, error) {
	name := strings.TrimSpace(input.Name)
	email := utils.NormalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" || strings.TrimSpace(input.Role) == "" {
		return nil, ErrMissingFields
	}
	role := entity.UserRole(strings.TrimSpace(input.Role))
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	rawToken, tokenHash, expiresAt, err := newToken(s.clock, s.config.verificationTTL())
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &entity.User{
		ID:                  uuid.New(),
		Name:                name,
		Email:               email,
		PasswordHash:        hash,
		Role:                role,
		VerificationToken:   &tokenHash,
		VerificationExpires: &expiresAt,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := applyRoleAttributes(user, input); err != nil {
		return nil, err
	}

	if err := s.emailSender.SendVerificationEmail(ctx, user.Email, user.Name, rawToken); err != nil {
		return nil, fmt.Errorf("send verification email: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logSecurity(ctx, &user.ID, meta, entity.Registered, map[string]any{"role": role})
	return user, nil
}

func applyRoleAttributes(user *entity.User, input dto.RegisterRequest) error {
	switch user.Role {
	case entity.UserRoleAdmin, entity.UserRoleOperator:
		user.Location = trimmedOrNil(input.Location)
		user.CentreName = trimmedOrNil(input.CentreName)
	}
	if user.Role == entity.UserRoleOperator && input.AdminID != nil && *input.AdminID != "" {
		adminID, err := uuid.Parse(*input.AdminID)
		if err != nil {
			return fmt.Errorf("%w: adminId must be a uuid", ErrInvalidInput)
		}
		user.AdminID = &adminID
	}
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string, meta RequestMeta) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingFields
	}
	user, err := s.users.ConsumeVerificationToken(ctx, utils.HashToken(token), s.clock.Now())
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}
	if user == nil {
		return ErrInvalidToken
	}
	s.logSecurity(ctx, &user.ID, meta, entity.EmailVerified, nil)
	return nil
}

func (s *AuthService) ResendVerification(ctx context.Context, email string) (ResendResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return ResendResult{}, ErrMissingFields
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return ResendResult{}, fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return ResendResult{}, ErrUserNotFound
	}
	if user.EmailVerified {
		return ResendResult{AlreadyVerified: true}, nil
	}

	rawToken, tokenHash, expiresAt, err := newToken(s.clock, s.config.verificationTTL())
	if err != nil {
		return ResendResult{}, err
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return ResendResult{}, fmt.Errorf("store verification token: %w", err)
	}
	if err := s.emailSender.SendVerificationEmail(ctx, user.Email, user.Name, rawToken); err != nil {
		return ResendResult{}, fmt.Errorf("send verification email: %w", err)
	}
	return ResendResult{}, nil
}

// RequestPasswordReset never reports whether the account exists; callers
// answer with the same message either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return ErrMissingFields
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		return nil
	}

	rawToken, tokenHash, expiresAt, err := newToken(s.clock, s.config.resetTTL())
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if err := s.emailSender.SendPasswordResetEmail(ctx, user.Email, user.Name, rawToken); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	s.logSecurity(ctx, &user.ID, meta, entity.PasswordResetRequested, nil)
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return ErrMissingFields
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := s.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.ConsumeResetToken(ctx, utils.HashToken(token), hash, s.clock.Now())
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if user == nil {
		return ErrInvalidToken
	}
	s.logSecurity(ctx, &user.ID, meta, entity.PasswordReset, nil)
	return nil
}

// Login checks, in order, that the account exists, that its email is
// verified and that the password matches. Each failure is reported with
// its own error and none of them issues a session.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		s.logSecurity(ctx, nil, meta, entity.LoginFailed, map[string]any{"email": email, "reason": "not_found"})
		return nil, ErrUserNotFound
	}
	if !user.EmailVerified {
		s.logSecurity(ctx, &user.ID, meta, entity.LoginFailed, map[string]any{"reason": "not_verified"})
		return nil, ErrEmailNotVerified
	}
	if !s.passwordHash.Verify(user.PasswordHash, password) {
		s.logSecurity(ctx, &user.ID, meta, entity.LoginFailed, map[string]any{"reason": "bad_password"})
		return nil, ErrInvalidCredentials
	}

	identity := session.IdentityFromUser(user)
	token, expiresAt, err := s.sessions.Issue(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	s.logSecurity(ctx, &user.ID, meta, entity.LoginSuccess, map[string]any{"role": user.Role})
	return &LoginResult{
		Identity:  identity,
		Token:     token,
		ExpiresAt: expiresAt,
		Redirect:  LandingPage(user.Role),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string, identity *session.Identity, meta RequestMeta) error {
	if token != "" {
		if err := s.sessions.Revoke(ctx, token); err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
	}
	if identity != nil {
		s.logSecurity(ctx, &identity.UserID, meta, entity.Logout, nil)
	}
	return nil
}

// ResolveSession returns the identity behind a session credential, or nil
// when the credential is missing or no longer valid.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*session.Identity, error) {
	if token == "" {
		return nil, nil
	}
	identity, err := s.sessions.Resolve(ctx, token)
	if errors.Is(err, session.ErrInvalidSession) {
		return nil, nil
	}
	return identity, err
}

func (s *AuthService) CurrentUser(ctx context.Context, identity *session.Identity) (*entity.User, error) {
	if identity == nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) logSecurity(ctx context.Context, userID *uuid.UUID, meta RequestMeta, action entity.SecurityAction, metadata map[string]any) {
	writeSecurityLog(ctx, s.securityLogs, s.logger, userID, meta, action, metadata)
}

// writeSecurityLog records an audit entry. Failures are logged and
// otherwise ignored.
func writeSecurityLog(
	ctx context.Context,
	logs repository.SecurityLogRepository,
	logger logrus.FieldLogger,
	userID *uuid.UUID,
	meta RequestMeta,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if logs == nil {
		return
	}
	if meta.UserAgent != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["user_agent"] = meta.UserAgent
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			logger.WithError(err).WithField("action", action).Warn("encode security log metadata")
			return
		}
		payload = datatypes.JSON(bytes)
	}

	entry := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: meta.IPAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := logs.Log(ctx, entry); err != nil {
		logger.WithError(err).WithField("action", action).Warn("write security log")
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
