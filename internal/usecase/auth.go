package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/infra/logger"
	"github.com/orsocook/orso-auth/internal/infra/security"
	"github.com/orsocook/orso-auth/internal/infra/telemetry"
	"github.com/orsocook/orso-auth/internal/repository"
)

const (
	defaultEmailTokenTTL = 24 * time.Hour
	defaultResetTokenTTL = time.Hour

	// decoyPassword is hashed once to give unknown-email logins the same hashing cost as real ones.
	decoyPassword = "orso-decoy-password"
)

var tracer = telemetry.Tracer("github.com/orsocook/orso-auth/internal/usecase")

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterResult is the created, still unverified account.
type RegisterResult struct {
	User domain.User
}

// LoginInput carries credentials plus the client metadata stored on the session.
type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// AuthResult is returned by flows that sign the user in.
type AuthResult struct {
	User    domain.User
	Tokens  domain.TokenPair
	Session *domain.Session
}

// ResetPasswordInput carries the reset form.
type ResetPasswordInput struct {
	Token           string
	Password        string
	ConfirmPassword string
}

// AuthService coordinates the credential flows: register, verify, login, forgot, reset and resend.
type AuthService struct {
	users    port.UserRepository
	sessions port.SessionRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicyValidator
	issuer   port.TokenIssuer
	tokens   port.OneTimeTokenSource
	guard    *AccountGuard
	notifier *Notifier
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time

	emailTokenTTL time.Duration
	resetTokenTTL time.Duration

	decoyOnce sync.Once
	decoyHash string
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users    port.UserRepository
	Sessions port.SessionRepository
	Hasher   port.PasswordHasher
	Policy   port.PasswordPolicyValidator
	Issuer   port.TokenIssuer
	Tokens   port.OneTimeTokenSource
	Guard    *AccountGuard
	Notifier *Notifier
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(cfg config.AuthSettings, deps AuthDeps) (*AuthService, error) {
	switch {
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session repository is required")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("password hasher is required")
	case deps.Issuer == nil:
		return nil, fmt.Errorf("token issuer is required")
	}

	if deps.Policy == nil {
		deps.Policy = security.NewPasswordPolicy(security.PasswordPolicyConfig{})
	}
	if deps.Tokens == nil {
		deps.Tokens = security.NewRandomTokenSource(security.DefaultTokenBytes)
	}
	if deps.Guard == nil {
		deps.Guard = NewAccountGuard(deps.Users, cfg.MaxLoginAttempts, cfg.LockDuration)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotifier(nil, nil, deps.Metrics, deps.Logger)
	}

	emailTTL := cfg.EmailTokenTTL
	if emailTTL <= 0 {
		emailTTL = defaultEmailTokenTTL
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTokenTTL
	}

	return &AuthService{
		users:         deps.Users,
		sessions:      deps.Sessions,
		hasher:        deps.Hasher,
		policy:        deps.Policy,
		issuer:        deps.Issuer,
		tokens:        deps.Tokens,
		guard:         deps.Guard,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           func() time.Time { return time.Now().UTC() },
		emailTokenTTL: emailTTL,
		resetTokenTTL: resetTTL,
	}, nil
}

// WithClock overrides the time source of the service and its account guard.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
		s.guard.WithClock(now)
	}
	return s
}

// Register creates an unverified account and mails a verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (result RegisterResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	username := strings.TrimSpace(in.Username)
	email := security.NormalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return RegisterResult{}, validationError(msgMissingFields)
	}
	if !security.ValidEmail(email) {
		return RegisterResult{}, validationError(msgInvalidEmail)
	}
	if err := s.policy.Validate(in.Password, domain.PasswordContext{Username: username, Email: email}); err != nil {
		return RegisterResult{}, validationError("%s", err.Error())
	}

	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return RegisterResult{}, flowError(ErrConflict, msgEmailTaken)
	}
	taken, err = s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return RegisterResult{}, flowError(ErrConflict, msgUsernameTaken)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return RegisterResult{}, err
	}
	token, err := s.tokens.NewToken()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("generate verification token: %w", err)
	}

	now := s.now()
	expiry := now.Add(s.emailTokenTTL)
	user := domain.User{
		ID:               uuid.NewString(),
		Username:         username,
		Email:            email,
		PasswordHash:     hash,
		EmailToken:       &token,
		EmailTokenExpiry: &expiry,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return RegisterResult{}, flowError(ErrConflict, msgAccountTaken)
		}
		return RegisterResult{}, fmt.Errorf("create user: %w", err)
	}

	s.notifier.UserRegistered(ctx, user, token)

	logger.Enrich(ctx, s.logger).Info("User registered",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(email)),
	)
	return RegisterResult{User: user}, nil
}

// hashPassword reports inputs the hasher cannot take as a validation failure.
func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return "", validationError(msgPasswordTooLong, security.BcryptMaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// VerifyEmail consumes a live verification token and signs the user in.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (result AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.VerifyEmail")
	defer func() { endSpan(span, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return AuthResult{}, validationError(msgMissingToken)
	}

	now := s.now()
	user, err := s.users.GetByLiveEmailToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, flowError(ErrInvalidOrExpiredToken, msgInvalidVerification)
		}
		return AuthResult{}, fmt.Errorf("lookup verification token: %w", err)
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return AuthResult{}, fmt.Errorf("mark verified: %w", err)
	}
	user.IsVerified = true
	user.EmailToken = nil
	user.EmailTokenExpiry = nil

	pair, err := s.issuer.IssuePair(*user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	// The auto-login refresh token is only honored when a session backs it.
	session, err := s.sessions.Upsert(ctx, domain.SessionUpsert{
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.RefreshExpiresAt,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("upsert session: %w", err)
	}

	s.notifier.UserVerified(ctx, user.ID, now)
	s.notifier.SessionCreated(ctx, session)

	logger.Enrich(ctx, s.logger).Info("Email verified",
		zap.String("user_id", user.ID),
		zap.String("session_id", session.ID),
	)
	return AuthResult{User: *user, Tokens: pair, Session: &session}, nil
}

// Login checks credentials against the lockout policy and opens the user's session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (result AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	email := security.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return AuthResult{}, validationError(msgMissingCredentials)
	}
	log := logger.Enrich(ctx, s.logger).With(zap.String("email", logger.MaskEmail(email)))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.verifyDecoy(in.Password)
			s.metrics.ObserveLogin(telemetry.LoginInvalidCredentials)
			return AuthResult{}, flowError(ErrInvalidCredentials, msgInvalidCredentials)
		}
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", user.ID))

	if s.guard.IsLocked(*user) {
		s.metrics.ObserveLogin(telemetry.LoginLocked)
		minutes := s.guard.RemainingLockMinutes(*user.LockedUntil)
		return AuthResult{}, &FlowError{
			Kind:        ErrAccountLocked,
			Message:     fmt.Sprintf(msgAccountLockedFormat, minutes),
			LockMinutes: minutes,
		}
	}

	if !user.IsVerified {
		s.metrics.ObserveLogin(telemetry.LoginUnverified)
		return AuthResult{}, &FlowError{
			Kind:    ErrEmailNotVerified,
			Message: msgEmailNotVerified,
			Email:   user.Email,
		}
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return AuthResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return AuthResult{}, s.failLogin(ctx, log, *user, in.IPAddress)
	}

	lastLogin, err := s.guard.OnSuccess(ctx, user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &lastLogin

	pair, err := s.issuer.IssuePair(*user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue tokens: %w", err)
	}

	session, err := s.sessions.Upsert(ctx, domain.SessionUpsert{
		UserID:       user.ID,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.RefreshExpiresAt,
		UserAgent:    optional(in.UserAgent),
		IPAddress:    optional(in.IPAddress),
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("upsert session: %w", err)
	}

	s.metrics.ObserveLogin(telemetry.LoginSucceeded)
	s.notifier.SessionCreated(ctx, session)

	log.Info("User logged in",
		zap.String("user_id", user.ID),
		zap.String("session_id", session.ID),
		zap.String("ip", logger.MaskIP(in.IPAddress)),
	)
	return AuthResult{User: *user, Tokens: pair, Session: &session}, nil
}

// verifyDecoy runs a password compare that always fails.
func (s *AuthService) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(decoyPassword)
		if err != nil {
			s.logger.Warn("Decoy password hash unavailable", zap.Error(err))
			return
		}
		s.decoyHash = hash
	})
	if s.decoyHash != "" {
		_, _ = s.hasher.Verify(password, s.decoyHash)
	}
}

func (s *AuthService) failLogin(ctx context.Context, log *zap.Logger, user domain.User, ip string) error {
	outcome, err := s.guard.OnFailure(ctx, user)
	if err != nil {
		return err
	}

	if outcome.Locked {
		s.metrics.ObserveLogin(telemetry.LoginLocked)
		s.metrics.ObserveLockout()
		s.notifier.AccountLocked(ctx, user.ID, outcome, s.now(), optional(ip))

		minutes := s.guard.RemainingLockMinutes(outcome.LockUntil)
		log.Warn("Account locked after failed logins",
			zap.String("user_id", user.ID),
			zap.Int("attempts", outcome.Attempts),
			zap.String("ip", logger.MaskIP(ip)),
		)
		return &FlowError{
			Kind:        ErrAccountLocked,
			Message:     fmt.Sprintf(msgTooManyAttemptsFormat, minutes),
			LockMinutes: minutes,
		}
	}

	s.metrics.ObserveLogin(telemetry.LoginInvalidCredentials)
	left := outcome.AttemptsLeft
	return &FlowError{
		Kind:         ErrInvalidCredentials,
		Message:      fmt.Sprintf(msgAttemptsLeftFormat, left),
		AttemptsLeft: &left,
	}
}

// ForgotPassword issues a reset token when the email is known. The caller sees the same
// outcome whether or not the account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ForgotPassword")
	defer func() { endSpan(span, err) }()

	email = security.NormalizeEmail(email)
	if email == "" {
		return validationError(msgMissingEmail)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Enrich(ctx, s.logger).Debug("Password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	now := s.now()
	expiresAt := now.Add(s.resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.notifier.PasswordResetRequested(ctx, *user, token, now, expiresAt)

	logger.Enrich(ctx, s.logger).Info("Password reset requested",
		zap.String("user_id", user.ID),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}

// ResetPassword consumes a live reset token, stores the new hash and clears the lockout state.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ResetPassword")
	defer func() { endSpan(span, err) }()

	token := strings.TrimSpace(in.Token)
	if token == "" || in.Password == "" || in.ConfirmPassword == "" {
		return validationError(msgMissingResetFields)
	}
	if in.Password != in.ConfirmPassword {
		return validationError(msgPasswordMismatch)
	}

	if err := s.policy.Validate(in.Password, domain.PasswordContext{}); err != nil {
		return validationError("%s", err.Error())
	}

	now := s.now()
	user, err := s.users.GetByLiveResetToken(ctx, token, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return flowError(ErrInvalidOrExpiredToken, msgInvalidReset)
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	s.notifier.PasswordReset(ctx, user.ID, now)

	logger.Enrich(ctx, s.logger).Info("Password reset", zap.String("user_id", user.ID))
	return nil
}

// ResendVerification issues a fresh verification token for an unverified account.
// Unknown emails succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ResendVerification")
	defer func() { endSpan(span, err) }()

	email = security.NormalizeEmail(email)
	if email == "" {
		return validationError(msgMissingEmail)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.IsVerified {
		return flowError(ErrAlreadyVerified, msgAlreadyVerified)
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}
	expiresAt := s.now().Add(s.emailTokenTTL)
	if err := s.users.SetEmailToken(ctx, user.ID, token, expiresAt); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	s.notifier.VerificationResent(ctx, *user, token)

	logger.Enrich(ctx, s.logger).Info("Verification email reissued", zap.String("user_id", user.ID))
	return nil
}

// CurrentUser loads the authenticated user's profile.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, flowError(ErrUserNotFound, msgUserNotFound)
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return *user, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// endSpan marks the span as failed only for unexpected errors; policy outcomes are not faults.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if _, ok := AsFlowError(err); ok {
			span.SetAttributes(attribute.String("auth.outcome", err.Error()))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
