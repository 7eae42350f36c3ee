package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rcms/internal/entity"
	"rcms/internal/repository"
	"rcms/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AdminService manages the records of users with the admin role.
type AdminService struct {
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository
	validate     *validator.Validate
	logger       logrus.FieldLogger
}

func NewAdminService(
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	validate *validator.Validate,
	logger logrus.FieldLogger,
) *AdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdminService{
		users:        users,
		securityLogs: securityLogs,
		validate:     validate,
		logger:       logger.WithField("component", "admins"),
	}
}

func (s *AdminService) List(ctx context.Context) ([]entity.User, error) {
	admins, err := s.users.ListByRole(ctx, entity.UserRoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// Update applies the whitelisted keys of payload to an admin record. Keys
// outside the whitelist are dropped without error; a payload with none of
// them returns the record unchanged without writing.
func (s *AdminService) Update(ctx context.Context, id string, payload map[string]any, actor *uuid.UUID, meta RequestMeta) (*entity.User, error) {
	adminID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrAdminNotFound
	}
	patch, err := s.patchFromPayload(payload)
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		admin, err := s.users.FindByID(ctx, adminID)
		if err != nil {
			return nil, fmt.Errorf("find admin: %w", err)
		}
		if admin == nil || admin.Role != entity.UserRoleAdmin {
			return nil, ErrAdminNotFound
		}
		return admin, nil
	}

	updated, err := s.users.UpdateByRole(ctx, adminID, entity.UserRoleAdmin, patch)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, ErrEmailAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("update admin: %w", err)
	}
	if updated == nil {
		return nil, ErrAdminNotFound
	}

	writeSecurityLog(ctx, s.securityLogs, s.logger, actor, meta, entity.AdminUpdated, map[string]any{"admin_id": adminID.String()})
	return updated, nil
}

func (s *AdminService) Delete(ctx context.Context, id string, actor *uuid.UUID, meta RequestMeta) error {
	adminID, err := uuid.Parse(id)
	if err != nil {
		return ErrAdminNotFound
	}
	deleted, err := s.users.DeleteByRole(ctx, adminID, entity.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if !deleted {
		return ErrAdminNotFound
	}
	writeSecurityLog(ctx, s.securityLogs, s.logger, actor, meta, entity.AdminDeleted, map[string]any{"admin_id": adminID.String()})
	return nil
}

func (s *AdminService) patchFromPayload(payload map[string]any) (entity.AdminPatch, error) {
	var patch entity.AdminPatch

	if value, ok := payload["name"]; ok {
		name, ok := value.(string)
		if !ok || strings.TrimSpace(name) == "" {
			return patch, fmt.Errorf("%w: name must be a non-empty string", ErrInvalidInput)
		}
		name = strings.TrimSpace(name)
		patch.Name = &name
	}
	if value, ok := payload["email"]; ok {
		email, ok := value.(string)
		if !ok {
			return patch, fmt.Errorf("%w: email must be a string", ErrInvalidInput)
		}
		email = utils.NormalizeEmail(email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return patch, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
		}
		patch.Email = &email
	}
	for key, target := range map[string]**string{"location": &patch.Location, "centreName": &patch.CentreName} {
		value, ok := payload[key]
		if !ok {
			continue
		}
		if value == nil {
			empty := ""
			*target = &empty
			continue
		}
		text, ok := value.(string)
		if !ok {
			return patch, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, key)
		}
		text = strings.TrimSpace(text)
		*target = &text
	}
	if value, ok := payload["creditBalance"]; ok {
		balance, ok := value.(float64)
		if !ok {
			return patch, fmt.Errorf("%w: creditBalance must be a number", ErrInvalidInput)
		}
		patch.CreditBalance = &balance
	}
	if value, ok := payload["emailVerified"]; ok {
		verified, ok := value.(bool)
		if !ok {
			return patch, fmt.Errorf("%w: emailVerified must be a boolean", ErrInvalidInput)
		}
		patch.EmailVerified = &verified
	}
	return patch, nil
}
