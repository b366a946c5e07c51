package security

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has a local part, a domain and a dotted suffix.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
