package port

import (
	"context"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
}
