package security

import (
	"encoding/hex"
	"testing"
)

func TestGenerateSecureTokenIsHex(t *testing.T) {
	token, err := GenerateSecureToken(DefaultTokenBytes)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	if len(token) != DefaultTokenBytes*2 {
		t.Fatalf("expected %d hex characters, got %d", DefaultTokenBytes*2, len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Fatalf("token is not hex: %v", err)
	}
}

func TestGenerateSecureTokenRejectsNonPositiveLength(t *testing.T) {
	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestRandomTokenSourceProducesDistinctTokens(t *testing.T) {
	src := NewRandomTokenSource(0)
	seen := make(map[string]struct{})
	for i := 0; i < 32; i++ {
		token, err := src.NewToken()
		if err != nil {
			t.Fatalf("NewToken returned error: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = struct{}{}
	}
}

func TestTokenFingerprint(t *testing.T) {
	if TokenFingerprint("") != "" {
		t.Fatal("expected empty fingerprint for empty token")
	}
	fp := TokenFingerprint("abc")
	if len(fp) != 12 {
		t.Fatalf("expected 12 character fingerprint, got %q", fp)
	}
	if fp != HashToken("abc")[:12] {
		t.Fatal("fingerprint should be a prefix of the token hash")
	}
}

func TestValidEmail(t *testing.T) {
	cases := map[string]bool{
		"mario@x.com":      true,
		"a.b+c@sub.dom.it": true,
		"mario@x":          false,
		"mario x@x.com":    false,
		"@x.com":           false,
		"":                 false,
	}
	for email, want := range cases {
		if got := ValidEmail(email); got != want {
			t.Fatalf("ValidEmail(%q) = %v, want %v", email, got, want)
		}
	}
	if NormalizeEmail("  Mario@X.com ") != "mario@x.com" {
		t.Fatal("NormalizeEmail should trim and lower-case")
	}
}
