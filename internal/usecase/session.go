package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/logger"
	"github.com/orsocook/orso-auth/internal/infra/security"
	"github.com/orsocook/orso-auth/internal/infra/telemetry"
	"github.com/orsocook/orso-auth/internal/repository"
)

// RefreshResult carries the new access token. The refresh token is not rotated.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	User            domain.User
}

// SessionService owns the refresh-token lifecycle.
type SessionService struct {
	sessions port.SessionRepository
	users    port.UserRepository
	issuer   port.TokenIssuer
	notifier *Notifier
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, users port.UserRepository, issuer port.TokenIssuer, notifier *Notifier, metrics *telemetry.Metrics, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewNotifier(nil, nil, metrics, log)
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		issuer:   issuer,
		notifier: notifier,
		metrics:  metrics,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// Refresh mints a new access token for a refresh token that verifies and matches a live session.
// A token that fails verification also purges any session stored under it.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (result RefreshResult, err error) {
	ctx, span := tracer.Start(ctx, "session.Refresh")
	defer func() { endSpan(span, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return RefreshResult{}, validationError(msgMissingRefreshToken)
	}
	log := logger.Enrich(ctx, s.logger).With(zap.String("token", security.TokenFingerprint(refreshToken)))

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.metrics.ObserveRefresh("invalid_token")
		deleted, delErr := s.sessions.DeleteByToken(ctx, refreshToken)
		if delErr != nil {
			return RefreshResult{}, fmt.Errorf("purge session for invalid token: %w", delErr)
		}
		if deleted > 0 {
			s.notifier.SessionsRevoked(ctx, "", "", domain.RevokeReasonInvalidToken, deleted, s.now())
			log.Info("Purged session for invalid refresh token", zap.Error(err))
		}
		return RefreshResult{}, flowError(ErrInvalidToken, msgInvalidRefreshToken)
	}

	session, err := s.sessions.GetLiveByToken(ctx, refreshToken, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveRefresh("no_session")
			return RefreshResult{}, flowError(ErrInvalidOrExpiredSession, msgInvalidSession)
		}
		return RefreshResult{}, fmt.Errorf("lookup session: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveRefresh("user_not_found")
			return RefreshResult{}, flowError(ErrUserNotFound, msgUserNotFound)
		}
		return RefreshResult{}, fmt.Errorf("lookup user: %w", err)
	}

	access, expiresAt, err := s.issuer.IssueAccessToken(*user)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue access token: %w", err)
	}

	s.metrics.ObserveRefresh("success")
	log.Debug("Access token refreshed", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return RefreshResult{AccessToken: access, AccessExpiresAt: expiresAt, User: *user}, nil
}

// Logout deletes the session holding refreshToken. Unknown tokens are not an error.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	deleted, err := s.sessions.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted > 0 {
		userID := ""
		if claims, err := s.issuer.VerifyRefreshToken(refreshToken); err == nil {
			userID = claims.UserID
		}
		s.notifier.SessionsRevoked(ctx, userID, "", domain.RevokeReasonLogout, deleted, s.now())
	}
	return nil
}

// LogoutAll deletes every session of the user and reports how many were removed.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) (int, error) {
	deleted, err := s.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	s.notifier.SessionsRevoked(ctx, userID, "", domain.RevokeReasonLogoutAll, deleted, s.now())

	logger.Enrich(ctx, s.logger).Info("Logged out everywhere", zap.String("user_id", userID), zap.Int("sessions", deleted))
	return deleted, nil
}

// ListSessions returns the user's live sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListLiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes one of the user's sessions, by id or else by refresh token.
// Sessions that do not exist or belong to someone else are left alone without error. Ids that
// are not UUIDs cannot name a session and are treated as absent.
func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID, refreshToken string) error {
	sessionID = strings.TrimSpace(sessionID)
	refreshToken = strings.TrimSpace(refreshToken)

	if sessionID == "" && refreshToken != "" {
		session, err := s.sessions.GetLiveByToken(ctx, refreshToken, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("lookup session: %w", err)
		}
		if session.UserID != userID {
			return nil
		}
		sessionID = session.ID
	}
	if sessionID == "" || uuid.Validate(sessionID) != nil {
		return nil
	}

	deleted, err := s.sessions.DeleteForUser(ctx, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.notifier.SessionsRevoked(ctx, userID, sessionID, domain.RevokeReasonLogout, deleted, s.now())
	return nil
}

// SweepExpired deletes every session whose expiry is at or before now.
func (s *SessionService) SweepExpired(ctx context.Context) (int, error) {
	deleted, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	s.metrics.ObserveSweep(deleted)
	s.metrics.ObserveSessionsRevoked(domain.RevokeReasonExpired, deleted)
	return deleted, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done. A non-positive interval disables it.
func (s *SessionService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info("Session sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Session sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			deleted, err := s.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("Session sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				s.logger.Info("Expired sessions swept", zap.Int("count", deleted))
			}
		}
	}
}
