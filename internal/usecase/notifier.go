package usecase

import (
	"context"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/logger"
	"github.com/orsocook/orso-auth/internal/infra/telemetry"
)

const (
	defaultNotifyTimeout = 15 * time.Second

	notifyVerificationEmail = "verification_email"
	notifyResetEmail        = "password_reset_email"
)

// Notifier runs the side effects of a flow after its primary write has succeeded.
// Email and event failures are logged and counted; they never change the flow result.
type Notifier struct {
	emails  port.EmailSender
	events  port.EventPublisher
	metrics *telemetry.Metrics
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotifier builds a notifier. Nil emails or events skip that kind of side effect.
func NewNotifier(emails port.EmailSender, events port.EventPublisher, metrics *telemetry.Metrics, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		emails:  emails,
		events:  events,
		metrics: metrics,
		logger:  log,
		timeout: defaultNotifyTimeout,
	}
}

// Wait blocks until every dispatched side effect has finished.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// dispatch detaches task from the request cancellation but keeps its values for logging and tracing.
func (n *Notifier) dispatch(ctx context.Context, task func(context.Context)) {
	n.wg.Add(1)
	detached := context.WithoutCancel(ctx)
	go func() {
		defer n.wg.Done()
		taskCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		task(taskCtx)
	}()
}

func (n *Notifier) sendEmail(ctx context.Context, kind string, send func(context.Context) error, to string) bool {
	if n.emails == nil {
		return false
	}
	if err := send(ctx); err != nil {
		n.metrics.ObserveNotificationFailure(kind)
		logger.Enrich(ctx, n.logger).Warn("Email notification failed",
			zap.String("kind", kind),
			zap.String("to", logger.MaskEmail(to)),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (n *Notifier) publish(ctx context.Context, event string, publish func(context.Context) error) {
	if n.events == nil {
		return
	}
	if err := publish(ctx); err != nil {
		n.metrics.ObserveEventFailure(event)
		logger.Enrich(ctx, n.logger).Warn("Event publish failed",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// UserRegistered mails the verification link, then announces the registration.
func (n *Notifier) UserRegistered(ctx context.Context, user domain.User, token string) {
	n.dispatch(ctx, func(ctx context.Context) {
		sent := n.sendEmail(ctx, notifyVerificationEmail, func(ctx context.Context) error {
			return n.emails.SendVerificationEmail(ctx, user.Email, user.Username, token)
		}, user.Email)

		n.publish(ctx, "user.registered", func(ctx context.Context) error {
			return n.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
				EventID:      uuid.NewString(),
				UserID:       user.ID,
				Username:     user.Username,
				Email:        logger.MaskEmail(user.Email),
				RegisteredAt: user.CreatedAt,
				EmailSent:    sent,
			})
		})
	})
}

// VerificationResent mails a fresh verification link.
func (n *Notifier) VerificationResent(ctx context.Context, user domain.User, token string) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.sendEmail(ctx, notifyVerificationEmail, func(ctx context.Context) error {
			return n.emails.SendVerificationEmail(ctx, user.Email, user.Username, token)
		}, user.Email)
	})
}

// UserVerified announces a completed email verification.
func (n *Notifier) UserVerified(ctx context.Context, userID string, at time.Time) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.publish(ctx, "user.verified", func(ctx context.Context) error {
			return n.events.PublishUserVerified(ctx, domain.UserVerifiedEvent{
				EventID:    uuid.NewString(),
				UserID:     userID,
				VerifiedAt: at,
			})
		})
	})
}

// PasswordResetRequested mails the reset link, then announces the request.
func (n *Notifier) PasswordResetRequested(ctx context.Context, user domain.User, token string, requestedAt, expiresAt time.Time) {
	n.dispatch(ctx, func(ctx context.Context) {
		sent := n.sendEmail(ctx, notifyResetEmail, func(ctx context.Context) error {
			return n.emails.SendPasswordResetEmail(ctx, user.Email, user.Username, token)
		}, user.Email)

		n.publish(ctx, "user.password.reset_requested", func(ctx context.Context) error {
			return n.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
				EventID:           uuid.NewString(),
				UserID:            user.ID,
				RequestedAt:       requestedAt,
				MaskedDestination: logger.MaskEmail(user.Email),
				ExpiresAt:         expiresAt,
				EmailSent:         sent,
			})
		})
	})
}

// PasswordReset announces a completed password reset.
func (n *Notifier) PasswordReset(ctx context.Context, userID string, at time.Time) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.publish(ctx, "user.password.reset", func(ctx context.Context) error {
			return n.events.PublishPasswordReset(ctx, domain.PasswordResetEvent{
				EventID: uuid.NewString(),
				UserID:  userID,
				ResetAt: at,
			})
		})
	})
}

// AccountLocked announces a lockout.
func (n *Notifier) AccountLocked(ctx context.Context, userID string, outcome LockoutOutcome, lockedAt time.Time, ip *string) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.publish(ctx, "account.locked", func(ctx context.Context) error {
			return n.events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
				EventID:     uuid.NewString(),
				UserID:      userID,
				LockedAt:    lockedAt,
				LockedUntil: outcome.LockUntil,
				Attempts:    outcome.Attempts,
				IPAddress:   ip,
			})
		})
	})
}

// SessionCreated announces a new or replaced session.
func (n *Notifier) SessionCreated(ctx context.Context, session domain.Session) {
	n.dispatch(ctx, func(ctx context.Context) {
		n.publish(ctx, "session.created", func(ctx context.Context) error {
			return n.events.PublishSessionCreated(ctx, domain.SessionCreatedEvent{
				EventID:   uuid.NewString(),
				SessionID: session.ID,
				UserID:    session.UserID,
				CreatedAt: session.UpdatedAt,
				ExpiresAt: session.ExpiresAt,
				IPAddress: session.IPAddress,
				UserAgent: session.UserAgent,
			})
		})
	})
}

// SessionsRevoked announces deleted sessions. Nothing is sent when count is zero.
func (n *Notifier) SessionsRevoked(ctx context.Context, userID, sessionID, reason string, count int, at time.Time) {
	if count <= 0 {
		return
	}
	n.metrics.ObserveSessionsRevoked(reason, count)
	n.dispatch(ctx, func(ctx context.Context) {
		n.publish(ctx, "session.revoked", func(ctx context.Context) error {
			return n.events.PublishSessionRevoked(ctx, domain.SessionRevokedEvent{
				EventID:   uuid.NewString(),
				SessionID: sessionID,
				UserID:    userID,
				RevokedAt: at,
				Reason:    reason,
				Count:     count,
			})
		})
	})
}
