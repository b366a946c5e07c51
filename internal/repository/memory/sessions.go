package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/repository"
)

// SessionRepository keeps at most one session per user in process memory.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	now      func() time.Time
}

// NewSessionRepository returns an empty repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]domain.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source used for created_at and updated_at.
func (r *SessionRepository) WithClock(now func() time.Time) *SessionRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Upsert replaces the user's session in place, keeping stored metadata the login did not supply.
// A refresh token already held by another user's session yields repository.ErrAlreadyExists.
func (r *SessionRepository) Upsert(_ context.Context, in domain.SessionUpsert) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ownID := ""
	for id, s := range r.sessions {
		switch {
		case s.UserID == in.UserID:
			ownID = id
		case s.RefreshToken == in.RefreshToken:
			return domain.Session{}, repository.ErrAlreadyExists
		}
	}

	now := r.now()
	if s, ok := r.sessions[ownID]; ok {
		s.RefreshToken = in.RefreshToken
		s.ExpiresAt = in.ExpiresAt
		if in.UserAgent != nil {
			s.UserAgent = in.UserAgent
		}
		if in.IPAddress != nil {
			s.IPAddress = in.IPAddress
		}
		s.UpdatedAt = now
		r.sessions[ownID] = s
		return s, nil
	}

	s := domain.Session{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt,
		UserAgent:    in.UserAgent,
		IPAddress:    in.IPAddress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *SessionRepository) GetLiveByToken(_ context.Context, refreshToken string, now time.Time) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.RefreshToken == refreshToken && s.IsLive(now) {
			found := s
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SessionRepository) DeleteByToken(_ context.Context, refreshToken string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.RefreshToken == refreshToken }), nil
}

func (r *SessionRepository) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.UserID == userID }), nil
}

func (r *SessionRepository) DeleteForUser(_ context.Context, userID, sessionID string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.UserID == userID && s.ID == sessionID }), nil
}

func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return !s.IsLive(now) }), nil
}

func (r *SessionRepository) ListLiveByUser(_ context.Context, userID string, now time.Time) ([]domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Session, 0, 1)
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsLive(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *SessionRepository) deleteWhere(match func(domain.Session) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, s := range r.sessions {
		if match(s) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted
}
