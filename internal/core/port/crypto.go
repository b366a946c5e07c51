package port

import (
	"time"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer interface {
	IssuePair(user domain.User) (domain.TokenPair, error)
	IssueAccessToken(user domain.User) (string, time.Time, error)
	VerifyAccessToken(token string) (domain.AccessClaims, error)
	VerifyRefreshToken(token string) (domain.RefreshClaims, error)
	RefreshTTL() time.Duration
}

// OneTimeTokenSource produces opaque random tokens for email verification and password reset.
type OneTimeTokenSource interface {
	NewToken() (string, error)
}
