package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rcms/internal/dto"
	"rcms/internal/entity"
	"rcms/internal/repository"
	"rcms/internal/session"
	"rcms/internal/utils"

	"github.com/sirupsen/logrus"
)

// ProviderService serves a saas_provider's own profile.
type ProviderService struct {
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository
	emailSender  EmailSender
	passwordHash PasswordHasher
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewProviderService(
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *ProviderService {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProviderService{
		users:        users,
		securityLogs: securityLogs,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		clock:        clock,
		config:       config,
		logger:       logger.WithField("component", "saas"),
	}
}

func (s *ProviderService) Get(ctx context.Context, identity *session.Identity) (*entity.User, error) {
	if identity == nil {
		return nil, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	if user == nil || user.Role != entity.UserRoleSaaSProvider {
		return nil, ErrProviderNotFound
	}
	return user, nil
}

// Update changes the provider's name, email or password. A password change
// needs both passwords; a new email drops the verified flag and sends a
// fresh verification link to the new address before anything is saved.
func (s *ProviderService) Update(ctx context.Context, identity *session.Identity, input dto.SaaSUpdateRequest, meta RequestMeta) (*entity.User, error) {
	user, err := s.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	changed := []string{}

	if input.CurrentPassword != nil && input.NewPassword != nil && *input.CurrentPassword != "" && *input.NewPassword != "" {
		if !s.passwordHash.Verify(user.PasswordHash, *input.CurrentPassword) {
			return nil, ErrWrongPassword
		}
		if len(*input.NewPassword) < MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hash, err := s.passwordHash.Hash(*input.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) != "" {
		user.Name = strings.TrimSpace(*input.Name)
		changed = append(changed, "name")
	}

	var verificationToken string
	if input.Email != nil && utils.NormalizeEmail(*input.Email) != "" && utils.NormalizeEmail(*input.Email) != user.Email {
		email := utils.NormalizeEmail(*input.Email)
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("find user by email: %w", err)
		}
		if existing != nil {
			return nil, ErrEmailAlreadyRegistered
		}
		raw, digest, expiresAt, err := newToken(s.clock, s.config.verificationTTL())
		if err != nil {
			return nil, err
		}
		user.Email = email
		user.EmailVerified = false
		user.VerificationToken = &digest
		user.VerificationExpires = &expiresAt
		verificationToken = raw
		changed = append(changed, "email")
	}

	if len(changed) == 0 {
		return user, nil
	}
	if verificationToken != "" {
		if err := s.emailSender.SendVerificationEmail(ctx, user.Email, user.Name, verificationToken); err != nil {
			return nil, fmt.Errorf("send verification email: %w", err)
		}
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("update provider: %w", err)
	}

	writeSecurityLog(ctx, s.securityLogs, s.logger, &user.ID, meta, entity.ProfileUpdated, map[string]any{"fields": changed})
	return user, nil
}
