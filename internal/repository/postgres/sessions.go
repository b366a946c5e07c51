package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	uuid "github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/repository"
)

const sessionsTable = "auth.sessions"

var sessionColumns = []string{
	"id",
	"user_id",
	"refresh_token",
	"expires_at",
	"user_agent",
	"ip_address",
	"created_at",
	"updated_at",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
	newID   func() string
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{exec: tx, builder: r.builder, now: r.now, newID: r.newID}
}

// Upsert writes the user's single session row. An existing row keeps its id and
// created_at; user agent and IP are only replaced when supplied.
func (r *SessionRepository) Upsert(ctx context.Context, in domain.SessionUpsert) (domain.Session, error) {
	now := r.now()

	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(r.newID(), in.UserID, in.RefreshToken, in.ExpiresAt, in.UserAgent, in.IPAddress, now, now).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			user_agent = COALESCE(EXCLUDED.user_agent, sessions.user_agent),
			ip_address = COALESCE(EXCLUDED.ip_address, sessions.ip_address),
			updated_at = EXCLUDED.updated_at
			RETURNING id, user_id, refresh_token, expires_at, user_agent, ip_address, created_at, updated_at`).
		ToSql()
	if err != nil {
		return domain.Session{}, fmt.Errorf("build upsert session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Session{}, repository.ErrAlreadyExists
		}
		return domain.Session{}, fmt.Errorf("upsert session: %w", err)
	}
	return *session, nil
}

// GetLiveByToken returns the session bound to refreshToken if it expires after now.
func (r *SessionRepository) GetLiveByToken(ctx context.Context, refreshToken string, now time.Time) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"refresh_token": refreshToken}).
		Where(squirrel.Gt{"expires_at": now}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session by token sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session by token: %w", err)
	}
	return session, nil
}

// DeleteByToken removes the session bound to refreshToken. Absence is not an error.
func (r *SessionRepository) DeleteByToken(ctx context.Context, refreshToken string) (int, error) {
	return r.delete(ctx, "delete session by token", squirrel.Eq{"refresh_token": refreshToken})
}

// DeleteAllForUser removes every session owned by userID.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	return r.delete(ctx, "delete sessions for user", squirrel.Eq{"user_id": userID})
}

// DeleteForUser removes a single session only if userID owns it.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID, sessionID string) (int, error) {
	return r.delete(ctx, "delete user session", squirrel.Eq{"id": sessionID, "user_id": userID})
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.delete(ctx, "delete expired sessions", squirrel.LtOrEq{"expires_at": now})
}

// ListLiveByUser returns the user's unexpired sessions, newest first.
func (r *SessionRepository) ListLiveByUser(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) delete(ctx context.Context, label string, where squirrel.Sqlizer) (int, error) {
	stmt, args, err := r.builder.Delete(sessionsTable).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s sql: %w", label, err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	return int(ct.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshToken,
		&session.ExpiresAt,
		&session.UserAgent,
		&session.IPAddress,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
