package repository

import (
	"context"
	"errors"
	"time"

	"rcms/internal/entity"
	"rcms/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository is the credential store. Find methods return (nil, nil)
// when no record matches. Token consumption is a single conditional write,
// so of two concurrent consumers only one gets the user back.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error)
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*entity.User, error)

	// UpdateProfile persists name, email, password hash and the
	// verification state of an existing user.
	UpdateProfile(ctx context.Context, user *entity.User) error

	ListByRole(ctx context.Context, role entity.UserRole) ([]entity.User, error)
	UpdateByRole(ctx context.Context, id uuid.UUID, role entity.UserRole, patch entity.AdminPatch) (*entity.User, error)
	DeleteByRole(ctx context.Context, id uuid.UUID, role entity.UserRole) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// AutoMigrate creates or updates the tables backing the gorm repositories.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.User{}, &entity.SecurityLog{})
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(user).Error)
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *userRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"verification_token":   tokenHash,
			"verification_expires": expiresAt,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *userRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return r.consume(ctx, "verification_token", "verification_expires", tokenHash, now, func(u *entity.User) (*string, *time.Time) {
		return u.VerificationToken, u.VerificationExpires
	}, map[string]any{
		"email_verified":       true,
		"verification_token":   nil,
		"verification_expires": nil,
	})
}

func (r *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_password_token":   tokenHash,
			"reset_password_expires": expiresAt,
			"updated_at":             time.Now().UTC(),
		}).Error
}

func (r *userRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*entity.User, error) {
	return r.consume(ctx, "reset_password_token", "reset_password_expires", tokenHash, now, func(u *entity.User) (*string, *time.Time) {
		return u.ResetPasswordToken, u.ResetPasswordExpires
	}, map[string]any{
		"password_hash":          passwordHash,
		"reset_password_token":   nil,
		"reset_password_expires": nil,
	})
}

// consume locates the holder of a token and checks it with
// utils.IsTokenValid, then applies updates guarded by the same token and
// expiry condition. A lost race or an expired token affects zero rows.
func (r *userRepository) consume(ctx context.Context, tokenColumn, expiresColumn, tokenHash string, now time.Time, stored func(*entity.User) (*string, *time.Time), updates map[string]any) (*entity.User, error) {
	if tokenHash == "" {
		return nil, nil
	}
	db := r.db.WithContext(ctx)
	var user entity.User
	err := db.Where(tokenColumn+" = ?", tokenHash).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if token, expiresAt := stored(&user); !utils.IsTokenValid(token, expiresAt, now) {
		return nil, nil
	}

	updates["updated_at"] = now
	res := db.Model(&entity.User{}).
		Where("id = ? AND "+tokenColumn+" = ? AND "+expiresColumn+" > ?", user.ID, tokenHash, now).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, user.ID)
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *entity.User) error {
	user.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(user).
		Select("name", "email", "password_hash", "email_verified", "verification_token", "verification_expires", "updated_at").
		Updates(user).Error
	return translateError(err)
}

func (r *userRepository) ListByRole(ctx context.Context, role entity.UserRole) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at DESC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateByRole(ctx context.Context, id uuid.UUID, role entity.UserRole, patch entity.AdminPatch) (*entity.User, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Location != nil {
		updates["location"] = nullIfEmpty(*patch.Location)
	}
	if patch.CentreName != nil {
		updates["centre_name"] = nullIfEmpty(*patch.CentreName)
	}
	if patch.CreditBalance != nil {
		updates["credit_balance"] = *patch.CreditBalance
	}
	if patch.EmailVerified != nil {
		updates["email_verified"] = *patch.EmailVerified
	}

	res := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ? AND role = ?", id, role).
		Updates(updates)
	if err := translateError(res.Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, id)
}

func (r *userRepository) DeleteByRole(ctx context.Context, id uuid.UUID, role entity.UserRole) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND role = ?", id, role).
		Delete(&entity.User{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepository) first(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateEmail
	}
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
