package domain

import "time"

// TokenPair is the access/refresh pair handed out on login and email verification.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessClaims is the identity embedded in a verified access token.
type AccessClaims struct {
	UserID     string
	Username   string
	Email      string
	IsVerified bool
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Principal converts verified claims into request identity.
func (c AccessClaims) Principal() Principal {
	return Principal{
		ID:         c.UserID,
		Username:   c.Username,
		Email:      c.Email,
		IsVerified: c.IsVerified,
	}
}

// RefreshClaims is the identity embedded in a verified refresh token.
type RefreshClaims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
