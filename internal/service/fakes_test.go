package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"rcms/internal/entity"
	"rcms/internal/repository"

	"github.com/google/uuid"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]entity.User

	createErr   error
	creates     int
	roleUpdates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uuid.UUID]entity.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.creates++
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetVerificationToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.mutate(id, func(user *entity.User) {
		user.VerificationToken = &tokenHash
		user.VerificationExpires = &expiresAt
	})
}

func (r *fakeUserRepo) ConsumeVerificationToken(_ context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.VerificationToken != nil && *user.VerificationToken == tokenHash &&
			user.VerificationExpires != nil && user.VerificationExpires.After(now) {
			user.EmailVerified = true
			user.VerificationToken = nil
			user.VerificationExpires = nil
			r.users[id] = user
			return &user, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.mutate(id, func(user *entity.User) {
		user.ResetPasswordToken = &tokenHash
		user.ResetPasswordExpires = &expiresAt
	})
}

func (r *fakeUserRepo) ConsumeResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, user := range r.users {
		if user.ResetPasswordToken != nil && *user.ResetPasswordToken == tokenHash &&
			user.ResetPasswordExpires != nil && user.ResetPasswordExpires.After(now) {
			user.PasswordHash = passwordHash
			user.ResetPasswordToken = nil
			user.ResetPasswordExpires = nil
			r.users[id] = user
			return &user, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.users {
		if id != user.ID && existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if _, ok := r.users[user.ID]; !ok {
		return errors.New("missing user")
	}
	r.users[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role entity.UserRole) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []entity.User
	for _, user := range r.users {
		if user.Role == role {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (r *fakeUserRepo) UpdateByRole(_ context.Context, id uuid.UUID, role entity.UserRole, patch entity.AdminPatch) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roleUpdates++
	user, ok := r.users[id]
	if !ok || user.Role != role {
		return nil, nil
	}
	if patch.Email != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Email == *patch.Email {
				return nil, repository.ErrDuplicateEmail
			}
		}
		user.Email = *patch.Email
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Location != nil {
		user.Location = emptyToNil(*patch.Location)
	}
	if patch.CentreName != nil {
		user.CentreName = emptyToNil(*patch.CentreName)
	}
	if patch.CreditBalance != nil {
		user.CreditBalance = *patch.CreditBalance
	}
	if patch.EmailVerified != nil {
		user.EmailVerified = *patch.EmailVerified
	}
	r.users[id] = user
	return &user, nil
}

func (r *fakeUserRepo) DeleteByRole(_ context.Context, id uuid.UUID, role entity.UserRole) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.Role != role {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *fakeUserRepo) mutate(id uuid.UUID, apply func(*entity.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return errors.New("missing user")
	}
	apply(&user)
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) put(user entity.User) *entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user
	return &user
}

func (r *fakeUserRepo) get(id uuid.UUID) entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func emptyToNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

type fakeSecurityLogs struct {
	mu      sync.Mutex
	entries []entity.SecurityLog
	err     error
}

func (l *fakeSecurityLogs) Log(_ context.Context, log *entity.SecurityLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, *log)
	return nil
}

func (l *fakeSecurityLogs) actions() []entity.SecurityAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	actions := make([]entity.SecurityAction, 0, len(l.entries))
	for _, entry := range l.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type sentEmail struct {
	Kind  string
	To    string
	Name  string
	Token string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, email, name, token string) error {
	return m.record("verify", email, name, token)
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, email, name, token string) error {
	return m.record("reset", email, name, token)
}

func (m *captureMailer) record(kind, email, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentEmail{Kind: kind, To: email, Name: name, Token: token})
	return nil
}

func (m *captureMailer) last() sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentEmail{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// plainHasher keeps tests fast; bcrypt has its own test.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(hash string, password string) bool {
	return strings.TrimPrefix(hash, "hashed:") == password && strings.HasPrefix(hash, "hashed:")
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
