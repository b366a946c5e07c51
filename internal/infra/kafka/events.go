package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, also used as topic suffixes.
const (
	EventUserRegistered         = "user.registered"
	EventUserVerified           = "user.verified"
	EventPasswordResetRequested = "user.password.reset_requested"
	EventPasswordReset          = "user.password.reset"
	EventAccountLocked          = "account.locked"
	EventSessionCreated         = "session.created"
	EventSessionRevoked         = "session.revoked"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// publish keys messages by user id so one user's events stay ordered on a partition.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: p.producer.TopicName(eventType),
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if userID != "" {
		message.Key = sarama.StringEncoder(userID)
	}

	select {
	case p.producer.input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		RegisteredAt time.Time `json:"registered_at"`
		EmailSent    bool      `json:"verification_email_sent"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		Email:        event.Email,
		RegisteredAt: event.RegisteredAt.UTC(),
		EmailSent:    event.EmailSent,
	}
	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishUserVerified publishes user.verified events.
func (p *EventPublisher) PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		UserID:     event.UserID,
		VerifiedAt: event.VerifiedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventUserVerified, event.UserID, event.VerifiedAt, payload)
}

// PublishPasswordResetRequested publishes user.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID            string    `json:"user_id"`
		RequestedAt       time.Time `json:"requested_at"`
		MaskedDestination string    `json:"masked_destination,omitempty"`
		ExpiresAt         time.Time `json:"expires_at"`
		EmailSent         bool      `json:"email_sent"`
	}{
		UserID:            event.UserID,
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		ExpiresAt:         event.ExpiresAt.UTC(),
		EmailSent:         event.EmailSent,
	}
	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.UserID, event.RequestedAt, payload)
}

// PublishPasswordReset publishes user.password.reset events.
func (p *EventPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		UserID  string    `json:"user_id"`
		ResetAt time.Time `json:"reset_at"`
	}{
		UserID:  event.UserID,
		ResetAt: event.ResetAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventPasswordReset, event.UserID, event.ResetAt, payload)
}

// PublishAccountLocked publishes account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		UserID      string    `json:"user_id"`
		LockedAt    time.Time `json:"locked_at"`
		LockedUntil time.Time `json:"locked_until"`
		Attempts    int       `json:"attempts"`
		IPAddress   *string   `json:"ip_address,omitempty"`
	}{
		UserID:      event.UserID,
		LockedAt:    event.LockedAt.UTC(),
		LockedUntil: event.LockedUntil.UTC(),
		Attempts:    event.Attempts,
		IPAddress:   event.IPAddress,
	}
	return p.publish(ctx, event.EventID, EventAccountLocked, event.UserID, event.LockedAt, payload)
}

// PublishSessionCreated publishes session.created events.
func (p *EventPublisher) PublishSessionCreated(ctx context.Context, event domain.SessionCreatedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		CreatedAt time.Time `json:"created_at"`
		ExpiresAt time.Time `json:"expires_at"`
		IPAddress *string   `json:"ip_address,omitempty"`
		UserAgent *string   `json:"user_agent,omitempty"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		CreatedAt: event.CreatedAt.UTC(),
		ExpiresAt: event.ExpiresAt.UTC(),
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
	}
	return p.publish(ctx, event.EventID, EventSessionCreated, event.UserID, event.CreatedAt, payload)
}

// PublishSessionRevoked publishes session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id,omitempty"`
		UserID    string    `json:"user_id"`
		RevokedAt time.Time `json:"revoked_at"`
		Reason    string    `json:"reason"`
		Count     int       `json:"count"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		RevokedAt: event.RevokedAt.UTC(),
		Reason:    event.Reason,
		Count:     event.Count,
	}
	return p.publish(ctx, event.EventID, EventSessionRevoked, event.UserID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
