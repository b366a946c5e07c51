package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultTokenBytes is the amount of entropy in verification and reset tokens.
const DefaultTokenBytes = 32

// GenerateSecureToken returns a hex string built from byteLength random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// TokenFingerprint returns a short, non-reversible identifier suitable for log lines.
func TokenFingerprint(value string) string {
	if value == "" {
		return ""
	}
	return HashToken(value)[:12]
}

// RandomTokenSource produces opaque one-time tokens for email flows.
type RandomTokenSource struct {
	bytes int
}

// NewRandomTokenSource creates a source emitting byteLength bytes of entropy per token.
func NewRandomTokenSource(byteLength int) *RandomTokenSource {
	if byteLength <= 0 {
		byteLength = DefaultTokenBytes
	}
	return &RandomTokenSource{bytes: byteLength}
}

// NewToken returns a fresh hex-encoded token.
func (s *RandomTokenSource) NewToken() (string, error) {
	return GenerateSecureToken(s.bytes)
}
