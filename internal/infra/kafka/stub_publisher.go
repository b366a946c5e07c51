package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(ctx context.Context, eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}
	logger.Enrich(ctx, p.logger).Info("Stub event published", append(base, fields...)...)
}

// PublishUserRegistered logs user.registered events.
func (p *StubPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(ctx, EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.Bool("verification_email_sent", event.EmailSent),
	)
	return nil
}

// PublishUserVerified logs user.verified events.
func (p *StubPublisher) PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error {
	p.logEvent(ctx, EventUserVerified, event.UserID, event.VerifiedAt)
	return nil
}

// PublishPasswordResetRequested logs user.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(ctx, EventPasswordResetRequested, event.UserID, event.RequestedAt,
		zap.String("masked_destination", event.MaskedDestination),
		zap.Time("expires_at", event.ExpiresAt),
		zap.Bool("email_sent", event.EmailSent),
	)
	return nil
}

// PublishPasswordReset logs user.password.reset events.
func (p *StubPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	p.logEvent(ctx, EventPasswordReset, event.UserID, event.ResetAt)
	return nil
}

// PublishAccountLocked logs account.locked events.
func (p *StubPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	p.logEvent(ctx, EventAccountLocked, event.UserID, event.LockedAt,
		zap.Time("locked_until", event.LockedUntil),
		zap.Int("attempts", event.Attempts),
		zap.String("ip", logger.MaskIPPtr(event.IPAddress)),
	)
	return nil
}

// PublishSessionCreated logs session.created events.
func (p *StubPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	p.logEvent(ctx, EventSessionCreated, event.UserID, event.CreatedAt,
		zap.String("session_id", event.SessionID),
		zap.Time("expires_at", event.ExpiresAt),
		zap.String("ip", logger.MaskIPPtr(event.IPAddress)),
	)
	return nil
}

// PublishSessionRevoked logs session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent(ctx, EventSessionRevoked, event.UserID, event.RevokedAt,
		zap.String("session_id", event.SessionID),
		zap.String("reason", event.Reason),
		zap.Int("count", event.Count),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
