package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Supported password hashing algorithms.
const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"
)

// DefaultBcryptCost is the work factor applied when none is configured.
const DefaultBcryptCost = 12

// BcryptMaxPasswordBytes is the longest input bcrypt accepts.
const BcryptMaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash when the password exceeds what the algorithm accepts.
var ErrPasswordTooLong = errors.New("password too long")

// PasswordHasher hashes new passwords with the configured algorithm and verifies
// stored hashes of either supported format.
type PasswordHasher struct {
	algo   string
	cost   int
	argon2 Argon2Config
}

// HasherOption customises a PasswordHasher.
type HasherOption func(*PasswordHasher)

// WithBcryptCost overrides the bcrypt work factor.
func WithBcryptCost(cost int) HasherOption {
	return func(h *PasswordHasher) {
		if cost > 0 {
			h.cost = cost
		}
	}
}

// WithArgon2 switches new hashes to Argon2id with the supplied parameters.
func WithArgon2(cfg Argon2Config) HasherOption {
	return func(h *PasswordHasher) {
		h.algo = AlgoArgon2id
		h.argon2 = cfg
	}
}

// NewPasswordHasher builds a bcrypt hasher unless options say otherwise.
func NewPasswordHasher(opts ...HasherOption) (*PasswordHasher, error) {
	h := &PasswordHasher{
		algo:   AlgoBcrypt,
		cost:   DefaultBcryptCost,
		argon2: DefaultArgon2Config(),
	}
	for _, opt := range opts {
		opt(h)
	}

	switch h.algo {
	case AlgoBcrypt:
		if h.cost < bcrypt.MinCost || h.cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt: cost %d out of range [%d, %d]", h.cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgoArgon2id:
		if err := validateArgon2Config(h.argon2); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Algorithm reports the algorithm used for new hashes.
func (h *PasswordHasher) Algorithm() string {
	return h.algo
}

// Hash derives a salted one-way hash of the password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.algo == AlgoArgon2id {
		return hashArgon2(password, h.argon2)
	}

	if len(password) > BcryptMaxPasswordBytes {
		return "", fmt.Errorf("bcrypt: %w: %d bytes, limit %d", ErrPasswordTooLong, len(password), BcryptMaxPasswordBytes)
	}
	sum, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: hash password: %w", err)
	}
	return string(sum), nil
}

// Verify compares password against an encoded hash. A mismatch is reported as
// false with a nil error; malformed hashes return an error.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	if strings.HasPrefix(encoded, argon2Prefix) {
		return verifyArgon2(password, encoded)
	}

	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: verify password: %w", err)
	}
}
