package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2Prefix starts every PHC string this package writes:
// $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
const argon2Prefix = "$argon2id$"

var errMalformedArgon2 = errors.New("argon2: malformed hash")

// Argon2Config holds the Argon2id cost parameters and output sizes.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config follows the RFC 9106 second recommended option with 64 MiB.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func validateArgon2Config(cfg Argon2Config) error {
	switch {
	case cfg.Memory < 8*1024:
		return errors.New("argon2: memory must be at least 8192 KiB")
	case cfg.Iterations == 0 || cfg.Parallelism == 0:
		return errors.New("argon2: iterations and parallelism must be positive")
	case cfg.SaltLength < 8:
		return errors.New("argon2: salt must be at least 8 bytes")
	case cfg.KeyLength < 16:
		return errors.New("argon2: key must be at least 16 bytes")
	}
	return nil
}

func hashArgon2(password string, cfg Argon2Config) (string, error) {
	salt := make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: read salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version,
		cfg.Memory, cfg.Iterations, cfg.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// verifyArgon2 re-derives the key with the parameters stored in encoded, so hashes made
// under older settings keep verifying after the configuration changes.
func verifyArgon2(password, encoded string) (bool, error) {
	cfg, salt, key, err := parseArgon2(encoded)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}

func parseArgon2(encoded string) (Argon2Config, []byte, []byte, error) {
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return Argon2Config{}, nil, nil, errMalformedArgon2
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return Argon2Config{}, nil, nil, errMalformedArgon2
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return Argon2Config{}, nil, nil, errMalformedArgon2
	}
	if version != argon2.Version {
		return Argon2Config{}, nil, nil, fmt.Errorf("argon2: unsupported version %d", version)
	}

	var cfg Argon2Config
	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Iterations, &cfg.Parallelism); err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("%w: parameters: %v", errMalformedArgon2, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[2])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("%w: salt: %v", errMalformedArgon2, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[3])
	if err != nil {
		return Argon2Config{}, nil, nil, fmt.Errorf("%w: key: %v", errMalformedArgon2, err)
	}
	cfg.SaltLength = uint32(len(salt))
	cfg.KeyLength = uint32(len(key))

	if err := validateArgon2Config(cfg); err != nil {
		return Argon2Config{}, nil, nil, err
	}
	return cfg, salt, key, nil
}
