package memory

import (
	"context"
	"sync"
	"time"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/repository"
)

// UserRepository keeps users in process memory. Email and username are unique.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
	now   func() time.Time
}

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]domain.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source used for updated_at.
func (r *UserRepository) WithClock(now func() time.Time) *UserRepository {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.ID == user.ID || existing.Email == user.Email || existing.Username == user.Username {
			return repository.ErrAlreadyExists
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.findOne(func(u domain.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.findOne(func(u domain.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByLiveEmailToken(_ context.Context, token string, now time.Time) (*domain.User, error) {
	return r.findOne(func(u domain.User) bool {
		return u.EmailToken != nil && *u.EmailToken == token && u.HasLiveEmailToken(now)
	})
}

func (r *UserRepository) GetByLiveResetToken(_ context.Context, token string, now time.Time) (*domain.User, error) {
	return r.findOne(func(u domain.User) bool {
		return u.ResetToken != nil && *u.ResetToken == token && u.HasLiveResetToken(now)
	})
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *UserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, err := r.findOne(func(u domain.User) bool { return u.Username == username })
	return err == nil, nil
}

func (r *UserRepository) MarkVerified(_ context.Context, id string) error {
	return r.update(id, func(u *domain.User) {
		u.IsVerified = true
		u.EmailToken = nil
		u.EmailTokenExpiry = nil
	})
}

func (r *UserRepository) SetEmailToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.EmailToken = &token
		u.EmailTokenExpiry = &expiresAt
	})
}

func (r *UserRepository) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.ResetToken = &token
		u.ResetTokenExpiry = &expiresAt
	})
}

func (r *UserRepository) ResetPassword(_ context.Context, id, passwordHash string) error {
	return r.update(id, func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.ResetTokenExpiry = nil
		u.LoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (r *UserRepository) RecordLoginFailure(_ context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.LoginAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (r *UserRepository) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) {
		u.LoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &at
	})
}

func (r *UserRepository) findOne(match func(domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) update(id string, mutate func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	mutate(&u)
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}
