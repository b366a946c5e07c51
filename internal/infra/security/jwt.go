package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/orsocook/orso-auth/internal/core/domain"
)

var (
	// ErrInvalidToken indicates a token failed signature, structure or expiry checks.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates the token signature was valid but the token has expired.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrSecretsNotDistinct indicates access and refresh tokens would share a signing secret.
	ErrSecretsNotDistinct = errors.New("jwt: access and refresh secrets must differ")
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenIssuerConfig configures HS256 signing for both token kinds.
type TokenIssuerConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AccessTokenClaims is the wire form of an access token.
type AccessTokenClaims struct {
	UserID     string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims is the wire form of a refresh token.
type RefreshTokenClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies access and refresh JWTs with separate secrets.
type TokenIssuer struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer validates the configuration and returns an issuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, fmt.Errorf("jwt: access and refresh secrets are required")
	}
	if access == refresh {
		return nil, ErrSecretsNotDistinct
	}

	issuer := &TokenIssuer{
		issuer:        cfg.Issuer,
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
	if issuer.accessTTL <= 0 {
		issuer.accessTTL = defaultAccessTTL
	}
	if issuer.refreshTTL <= 0 {
		issuer.refreshTTL = defaultRefreshTTL
	}
	return issuer, nil
}

// WithClock overrides the time source, used by tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		t.now = now
	}
	return t
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccessToken signs the user identity with the access secret.
func (t *TokenIssuer) IssueAccessToken(user domain.User) (string, time.Time, error) {
	if user.ID == "" {
		return "", time.Time{}, fmt.Errorf("jwt: user id is required")
	}

	now := t.now()
	expiresAt := now.Add(t.accessTTL)
	claims := AccessTokenClaims{
		UserID:           user.ID,
		Username:         user.Username,
		Email:            user.Email,
		IsVerified:       user.IsVerified,
		RegisteredClaims: t.registered(user.ID, now, expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs only the user id with the refresh secret.
func (t *TokenIssuer) IssueRefreshToken(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("jwt: user id is required")
	}

	now := t.now()
	expiresAt := now.Add(t.refreshTTL)
	claims := RefreshTokenClaims{
		UserID:           userID,
		RegisteredClaims: t.registered(userID, now, expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

// IssuePair issues both tokens for the user.
func (t *TokenIssuer) IssuePair(user domain.User) (domain.TokenPair, error) {
	access, accessExp, err := t.IssueAccessToken(user)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := t.IssueRefreshToken(user.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccessToken validates an access token and returns its identity claims.
func (t *TokenIssuer) VerifyAccessToken(token string) (domain.AccessClaims, error) {
	claims := &AccessTokenClaims{}
	if err := t.parse(token, claims, t.accessSecret); err != nil {
		return domain.AccessClaims{}, err
	}
	if claims.UserID == "" || claims.Email == "" || claims.Username == "" {
		return domain.AccessClaims{}, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}

	return domain.AccessClaims{
		UserID:     claims.UserID,
		Username:   claims.Username,
		Email:      claims.Email,
		IsVerified: claims.IsVerified,
		IssuedAt:   numericTime(claims.IssuedAt),
		ExpiresAt:  numericTime(claims.ExpiresAt),
	}, nil
}

// VerifyRefreshToken validates a refresh token and returns the embedded user id.
func (t *TokenIssuer) VerifyRefreshToken(token string) (domain.RefreshClaims, error) {
	claims := &RefreshTokenClaims{}
	if err := t.parse(token, claims, t.refreshSecret); err != nil {
		return domain.RefreshClaims{}, err
	}
	if claims.UserID == "" {
		return domain.RefreshClaims{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	return domain.RefreshClaims{
		UserID:    claims.UserID,
		IssuedAt:  numericTime(claims.IssuedAt),
		ExpiresAt: numericTime(claims.ExpiresAt),
	}, nil
}

func (t *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (t *TokenIssuer) registered(subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    t.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time.UTC()
}
