package port

import (
	"context"
	"time"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

// SessionRepository deals with session storage. Each user owns at most one row.
type SessionRepository interface {
	Upsert(ctx context.Context, session domain.SessionUpsert) (domain.Session, error)
	GetLiveByToken(ctx context.Context, refreshToken string, now time.Time) (*domain.Session, error)
	DeleteByToken(ctx context.Context, refreshToken string) (int, error)
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	DeleteForUser(ctx context.Context, userID, sessionID string) (int, error)
	ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
