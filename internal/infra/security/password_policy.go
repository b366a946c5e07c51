package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

// DefaultMinPasswordLength is the shortest password accepted at registration and reset.
const DefaultMinPasswordLength = 8

// DefaultMaxPasswordBytes caps the encoded size of a password. It matches the bcrypt input limit.
const DefaultMaxPasswordBytes = BcryptMaxPasswordBytes

// Violation codes reported in PolicyViolation.Rule.
const (
	RuleMinLength        = "min_length"
	RuleMaxLength        = "max_length"
	RuleCharacterClasses = "character_classes"
	RuleStrength         = "weak_password"
)

// PolicyViolation is the first rule a candidate password broke.
type PolicyViolation struct {
	Rule    string
	Message string
}

func (v *PolicyViolation) Error() string { return v.Message }

// PasswordPolicyConfig tunes the rules applied to new passwords.
type PasswordPolicyConfig struct {
	MinLength           int
	MaxBytes            int
	MinCharacterClasses int
	MinStrengthScore    int
}

// PasswordPolicy checks new passwords. Both length bounds always apply; character classes and
// zxcvbn strength only when configured.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinPasswordLength
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxPasswordBytes
	}
	cfg.MinStrengthScore = min(cfg.MinStrengthScore, 4)
	return &PasswordPolicy{cfg: cfg}
}

// Validate returns a *PolicyViolation for the first failing rule, in length, classes, strength order.
// The upper bound counts bytes, not characters.
func (p *PasswordPolicy) Validate(password string, account domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	if utf8.RuneCountInString(password) < p.cfg.MinLength {
		return &PolicyViolation{
			Rule:    RuleMinLength,
			Message: fmt.Sprintf("password must be at least %d characters long", p.cfg.MinLength),
		}
	}

	if len(password) > p.cfg.MaxBytes {
		return &PolicyViolation{
			Rule:    RuleMaxLength,
			Message: fmt.Sprintf("password must be at most %d bytes long", p.cfg.MaxBytes),
		}
	}

	if p.cfg.MinCharacterClasses > 0 && characterClasses(password) < p.cfg.MinCharacterClasses {
		return &PolicyViolation{
			Rule:    RuleCharacterClasses,
			Message: fmt.Sprintf("password must include at least %d character types", p.cfg.MinCharacterClasses),
		}
	}

	if p.cfg.MinStrengthScore > 0 {
		score := zxcvbn.PasswordStrength(password, relatedInputs(account)).Score
		if score < p.cfg.MinStrengthScore {
			return &PolicyViolation{
				Rule:    RuleStrength,
				Message: "password is too weak; choose a more complex value",
			}
		}
	}

	return nil
}

// characterClasses counts how many of upper, lower, digit and symbol appear in s.
func characterClasses(s string) int {
	var seen [4]bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			seen[0] = true
		case unicode.IsLower(r):
			seen[1] = true
		case unicode.IsDigit(r):
			seen[2] = true
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			seen[3] = true
		}
	}
	n := 0
	for _, ok := range seen {
		if ok {
			n++
		}
	}
	return n
}

// relatedInputs feeds account details to zxcvbn so passwords derived from them score low.
func relatedInputs(account domain.PasswordContext) []string {
	inputs := make([]string, 0, 3)
	if v := strings.TrimSpace(account.Username); v != "" {
		inputs = append(inputs, v)
	}
	if v := strings.TrimSpace(account.Email); v != "" {
		inputs = append(inputs, v)
		if local, _, ok := strings.Cut(v, "@"); ok && local != "" {
			inputs = append(inputs, local)
		}
	}
	return inputs
}
