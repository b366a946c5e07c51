package domain

import "time"

// UserRegisteredEvent represents the payload for orso.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        string
	RegisteredAt time.Time
	EmailSent    bool
}

// UserVerifiedEvent represents the payload for orso.user.verified messages.
type UserVerifiedEvent struct {
	EventID    string
	UserID     string
	VerifiedAt time.Time
}

// PasswordResetRequestedEvent represents the payload for orso.user.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
	EmailSent         bool
}

// PasswordResetEvent represents the payload for orso.user.password.reset messages.
type PasswordResetEvent struct {
	EventID string
	UserID  string
	ResetAt time.Time
}

// AccountLockedEvent represents the payload for orso.account.locked messages.
type AccountLockedEvent struct {
	EventID     string
	UserID      string
	LockedAt    time.Time
	LockedUntil time.Time
	Attempts    int
	IPAddress   *string
}

// SessionCreatedEvent represents the payload for orso.session.created messages.
type SessionCreatedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	IPAddress *string
	UserAgent *string
}

// SessionRevokedEvent represents the payload for orso.session.revoked messages.
type SessionRevokedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	RevokedAt time.Time
	Reason    string
	Count     int
}

// Session revocation reasons.
const (
	RevokeReasonLogout       = "logout"
	RevokeReasonLogoutAll    = "logout_all"
	RevokeReasonInvalidToken = "invalid_token"
	RevokeReasonExpired      = "expired"
)
