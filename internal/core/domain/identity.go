package domain

import "time"

// User mirrors the persisted representation in the users table.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	IsVerified       bool
	EmailToken       *string
	EmailTokenExpiry *time.Time
	ResetToken       *string
	ResetTokenExpiry *time.Time
	LoginAttempts    int
	LockedUntil      *time.Time
	LastLogin        *time.Time
	AvatarURL        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLocked reports whether a lockout deadline is set and still ahead of at.
func (u User) IsLocked(at time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(at)
}

// HasLiveEmailToken reports whether the verification token is usable at the supplied moment.
func (u User) HasLiveEmailToken(at time.Time) bool {
	return u.EmailToken != nil && u.EmailTokenExpiry != nil && u.EmailTokenExpiry.After(at)
}

// HasLiveResetToken reports whether the reset token is usable at the supplied moment.
func (u User) HasLiveResetToken(at time.Time) bool {
	return u.ResetToken != nil && u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(at)
}

// PublicUser is the sanitized user snapshot returned to clients.
type PublicUser struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	IsVerified bool       `json:"isVerified"`
	AvatarURL  *string    `json:"avatarUrl,omitempty"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Public strips credentials and token material.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		AvatarURL:  u.AvatarURL,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
	}
}

// Principal is the typed identity attached to an authenticated request.
type Principal struct {
	ID         string
	Username   string
	Email      string
	IsVerified bool
}

// PasswordContext supplies account details a password must not be derived from.
type PasswordContext struct {
	Username string
	Email    string
}
