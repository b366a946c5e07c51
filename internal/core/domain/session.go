package domain

import "time"

// Session binds a refresh token to a user. One row is kept per user.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	ExpiresAt    time.Time
	UserAgent    *string
	IPAddress    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLive reports whether the session has not yet expired at the supplied moment.
func (s Session) IsLive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// SessionUpsert carries the values written when a login creates or replaces a session.
type SessionUpsert struct {
	UserID       string
	RefreshToken string
	ExpiresAt    time.Time
	UserAgent    *string
	IPAddress    *string
}
