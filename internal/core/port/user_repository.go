package port

import (
	"context"
	"time"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	GetByLiveEmailToken(ctx context.Context, token string, now time.Time) (*domain.User, error)
	GetByLiveResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error)
	MarkVerified(ctx context.Context, id string) error
	SetEmailToken(ctx context.Context, id, token string, expiresAt time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}
