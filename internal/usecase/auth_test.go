package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/infra/security"
	"github.com/orsocook/orso-auth/internal/infra/telemetry"
	"github.com/orsocook/orso-auth/internal/repository"
)

const testPassword = "Passw0rd!"

func TestRegisterCreatesUnverifiedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.auth.Register(ctx, RegisterInput{Username: " mario ", Email: "Mario@X.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	h.notifier.Wait()

	user := result.User
	if user.Username != "mario" || user.Email != "mario@x.com" {
		t.Fatalf("expected normalized identity, got %q %q", user.Username, user.Email)
	}
	if user.IsVerified {
		t.Fatal("new users must be unverified")
	}
	if user.EmailToken == nil || user.EmailTokenExpiry == nil {
		t.Fatal("expected verification token and expiry")
	}
	if want := h.clock.Now().Add(24 * time.Hour); !user.EmailTokenExpiry.Equal(want) {
		t.Fatalf("expected token expiry %s, got %s", want, user.EmailTokenExpiry)
	}
	if user.PasswordHash == testPassword || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}

	emails := h.emails.emails()
	want := []sentEmail{{kind: notifyVerificationEmail, to: "mario@x.com", username: "mario", token: *user.EmailToken}}
	if diff := cmp.Diff(want, emails, cmp.AllowUnexported(sentEmail{})); diff != "" {
		t.Fatalf("unexpected emails (-want +got):\n%s", diff)
	}

	events := h.events.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	registered, ok := events[0].(domain.UserRegisteredEvent)
	if !ok || !registered.EmailSent || registered.UserID != user.ID {
		t.Fatalf("unexpected registration event: %+v", events[0])
	}
	if registered.Email == user.Email {
		t.Fatal("event email should be masked")
	}
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing username", RegisterInput{Email: "a@b.co", Password: testPassword}},
		{"missing password", RegisterInput{Username: "a", Email: "a@b.co"}},
		{"invalid email", RegisterInput{Username: "a", Email: "not-an-email", Password: testPassword}},
		{"short password", RegisterInput{Username: "a", Email: "a@b.co", Password: "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.auth.Register(context.Background(), tc.in)
			requireKind(t, err, ErrValidation)
		})
	}
}

func TestRegisterConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := h.auth.Register(ctx, RegisterInput{Username: "luigi", Email: "MARIO@x.com", Password: testPassword})
	if fe := requireKind(t, err, ErrConflict); fe.Message != msgEmailTaken {
		t.Fatalf("unexpected message %q", fe.Message)
	}

	_, err = h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "other@x.com", Password: testPassword})
	if fe := requireKind(t, err, ErrConflict); fe.Message != msgUsernameTaken {
		t.Fatalf("unexpected message %q", fe.Message)
	}
}

func TestRegisterTreatsUniqueViolationAsConflict(t *testing.T) {
	h := newHarness(t)
	// a concurrent insert slipped past the existence checks
	h.users.createErr = repository.ErrAlreadyExists

	_, err := h.auth.Register(context.Background(), RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword})
	if fe := requireKind(t, err, ErrConflict); fe.Message != msgAccountTaken {
		t.Fatalf("unexpected message %q", fe.Message)
	}
	h.notifier.Wait()
	if len(h.emails.emails()) != 0 {
		t.Fatal("no email should be sent when the insert fails")
	}
}

func TestRegisterSucceedsWhenEmailFails(t *testing.T) {
	h := newHarness(t)
	h.emails.err = errors.New("brevo down")

	result, err := h.auth.Register(context.Background(), RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("email failure must not fail registration: %v", err)
	}
	h.notifier.Wait()

	if got := testutil.ToFloat64(h.metrics.NotificationFailures.WithLabelValues(notifyVerificationEmail)); got != 1 {
		t.Fatalf("expected one notification failure, got %f", got)
	}
	event := h.events.snapshot()[0].(domain.UserRegisteredEvent)
	if event.EmailSent {
		t.Fatal("event should report the email as not sent")
	}
	if _, err := h.users.GetByID(context.Background(), result.User.ID); err != nil {
		t.Fatalf("user should be persisted: %v", err)
	}
}

func TestRegisterPropagatesTokenFailure(t *testing.T) {
	h := newHarness(t)
	h.auth.tokens = failingTokens{}

	_, err := h.auth.Register(context.Background(), RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := AsFlowError(err); ok {
		t.Fatalf("token failure should be an internal error, got %v", err)
	}
}

func TestVerifyEmailRequiresLiveToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	token := *result.User.EmailToken

	// expiry must be strictly after now
	h.clock.Advance(24 * time.Hour)
	_, err = h.auth.VerifyEmail(ctx, token)
	requireKind(t, err, ErrInvalidOrExpiredToken)

	_, err = h.auth.VerifyEmail(ctx, "   ")
	requireKind(t, err, ErrValidation)
}

func TestVerifyEmailSignsIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	token := *result.User.EmailToken

	verified, err := h.auth.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !verified.User.IsVerified {
		t.Fatal("expected verified user")
	}
	if verified.Tokens.AccessToken == "" || verified.Tokens.RefreshToken == "" {
		t.Fatal("verification should auto-login")
	}

	claims, err := h.issuer.VerifyAccessToken(verified.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken returned error: %v", err)
	}
	if !claims.IsVerified || claims.UserID != result.User.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	stored := h.users.get(result.User.ID)
	if stored.EmailToken != nil || stored.EmailTokenExpiry != nil {
		t.Fatal("token fields must be cleared together")
	}

	if verified.Session == nil || h.sessions.count() != 1 {
		t.Fatal("auto-login must open a session")
	}
	if _, err := h.session.Refresh(ctx, verified.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh token from verification should be honored: %v", err)
	}

	_, err = h.auth.VerifyEmail(ctx, token)
	requireKind(t, err, ErrInvalidOrExpiredToken)
}

func TestLoginUnknownEmailIsGeneric(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Login(context.Background(), LoginInput{Email: "ghost@x.com", Password: testPassword})
	fe := requireKind(t, err, ErrInvalidCredentials)
	if fe.AttemptsLeft != nil {
		t.Fatal("unknown accounts must not report attempts left")
	}
	if fe.Message != msgInvalidCredentials {
		t.Fatalf("unexpected message %q", fe.Message)
	}
}

func TestLoginUnknownEmailStillComparesPassword(t *testing.T) {
	h := newHarness(t)
	counting := &countingHasher{PasswordHasher: h.hasher}
	auth, err := NewAuthService(config.AuthSettings{}, AuthDeps{Users: h.users, Sessions: h.sessions, Hasher: counting, Issuer: h.issuer})
	if err != nil {
		t.Fatalf("NewAuthService returned error: %v", err)
	}
	h.seedUser(t, "mario", "mario@x.com", testPassword)

	for i := 0; i < 2; i++ {
		_, err = auth.Login(context.Background(), LoginInput{Email: "ghost@x.com", Password: testPassword})
		requireKind(t, err, ErrInvalidCredentials)
	}
	if counting.verifies.Load() != 2 {
		t.Fatalf("expected a password compare per unknown-email login, got %d", counting.verifies.Load())
	}
	if counting.hashes.Load() != 1 {
		t.Fatalf("expected the decoy hash to be built once, got %d", counting.hashes.Load())
	}

	_, err = auth.Login(context.Background(), LoginInput{Email: "mario@x.com", Password: "wrong-password"})
	requireKind(t, err, ErrInvalidCredentials)
	if counting.verifies.Load() != 3 {
		t.Fatalf("expected known-email login to compare once, got %d", counting.verifies.Load())
	}
}

func TestLoginRequiresFields(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.Login(context.Background(), LoginInput{Email: "a@b.co"})
	requireKind(t, err, ErrValidation)
}

func TestLoginRejectsUnverified(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, err := h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: testPassword})
	fe := requireKind(t, err, ErrEmailNotVerified)
	if fe.Email != "mario@x.com" {
		t.Fatalf("expected email in error, got %q", fe.Email)
	}
	if got := testutil.ToFloat64(h.metrics.Logins.WithLabelValues(telemetry.LoginUnverified)); got != 1 {
		t.Fatalf("expected unverified login metric, got %f", got)
	}
}

func TestLoginLockoutLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "mario", "mario@x.com", testPassword)

	for attempt := 1; attempt <= 4; attempt++ {
		_, err := h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: "wrong-password"})
		fe := requireKind(t, err, ErrInvalidCredentials)
		if fe.AttemptsLeft == nil || *fe.AttemptsLeft != 5-attempt {
			t.Fatalf("attempt %d: unexpected attempts left %v", attempt, fe.AttemptsLeft)
		}
	}

	_, err := h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: "wrong-password", IPAddress: "203.0.113.7"})
	fe := requireKind(t, err, ErrAccountLocked)
	if fe.LockMinutes != 15 {
		t.Fatalf("expected 15 lock minutes, got %d", fe.LockMinutes)
	}
	if fe.AttemptsLeft != nil {
		t.Fatal("locked responses must not carry attempts left")
	}

	// a sixth attempt, even with the right password, is refused without counting
	h.clock.Advance(5 * time.Minute)
	_, err = h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: testPassword})
	fe = requireKind(t, err, ErrAccountLocked)
	if fe.LockMinutes != 10 {
		t.Fatalf("expected 10 lock minutes, got %d", fe.LockMinutes)
	}
	if stored := h.users.get(user.ID); stored.LoginAttempts != 5 {
		t.Fatalf("locked attempts must not increment, got %d", stored.LoginAttempts)
	}
	if h.users.failures != 5 {
		t.Fatalf("expected 5 recorded failures, got %d", h.users.failures)
	}

	h.clock.Advance(10 * time.Minute)
	result, err := h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login after lock expiry returned error: %v", err)
	}
	stored := h.users.get(user.ID)
	if stored.LoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("successful login must reset lockout, got attempts=%d lockedUntil=%v", stored.LoginAttempts, stored.LockedUntil)
	}
	if result.User.LastLogin == nil || !result.User.LastLogin.Equal(h.clock.Now()) {
		t.Fatalf("expected last login stamp, got %v", result.User.LastLogin)
	}

	h.notifier.Wait()
	var locked int
	for _, e := range h.events.snapshot() {
		if ev, ok := e.(domain.AccountLockedEvent); ok {
			locked++
			if ev.Attempts != 5 || ev.IPAddress == nil || *ev.IPAddress != "203.0.113.7" {
				t.Fatalf("unexpected lock event %+v", ev)
			}
		}
	}
	if locked != 1 {
		t.Fatalf("expected one lock event, got %d", locked)
	}
	if got := testutil.ToFloat64(h.metrics.Lockouts); got != 1 {
		t.Fatalf("expected one lockout, got %f", got)
	}
}

func TestLoginReplacesExistingSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "mario", "mario@x.com", testPassword)

	first, err := h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: testPassword, UserAgent: "phone"})
	if err != nil {
		t.Fatalf("first login returned error: %v", err)
	}
	h.clock.Advance(time.Minute)
	second, err := h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: testPassword, IPAddress: "198.51.100.4"})
	if err != nil {
		t.Fatalf("second login returned error: %v", err)
	}

	if h.sessions.count() != 1 {
		t.Fatalf("expected a single session, got %d", h.sessions.count())
	}
	if first.Session.ID != second.Session.ID {
		t.Fatal("second login should update the session in place")
	}
	if second.Session.UserAgent == nil || *second.Session.UserAgent != "phone" {
		t.Fatal("absent user agent should keep the stored value")
	}

	_, err = h.session.Refresh(ctx, first.Tokens.RefreshToken)
	requireKind(t, err, ErrInvalidOrExpiredSession)
	if _, err := h.session.Refresh(ctx, second.Tokens.RefreshToken); err != nil {
		t.Fatalf("latest refresh token should work: %v", err)
	}
}

func TestForgotPasswordIsIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "mario", "mario@x.com", testPassword)

	errKnown := h.auth.ForgotPassword(ctx, "mario@x.com")
	errUnknown := h.auth.ForgotPassword(ctx, "ghost@x.com")
	if errKnown != nil || errUnknown != nil {
		t.Fatalf("expected both to succeed, got %v and %v", errKnown, errUnknown)
	}
	h.notifier.Wait()

	stored := h.users.get(user.ID)
	if !stored.HasLiveResetToken(h.clock.Now()) {
		t.Fatal("expected live reset token")
	}
	if want := h.clock.Now().Add(time.Hour); !stored.ResetTokenExpiry.Equal(want) {
		t.Fatalf("expected reset expiry %s, got %s", want, stored.ResetTokenExpiry)
	}

	emails := h.emails.emails()
	if len(emails) != 1 || emails[0].kind != notifyResetEmail || emails[0].token != *stored.ResetToken {
		t.Fatalf("unexpected emails %+v", emails)
	}

	requireKind(t, h.auth.ForgotPassword(ctx, ""), ErrValidation)
}

func TestResetPasswordClearsLockout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "mario", "mario@x.com", testPassword)

	for i := 0; i < 5; i++ {
		_, _ = h.auth.Login(ctx, LoginInput{Email: "mario@x.com", Password: "nope-nope"})
	}
	if !h.users.get(user.ID).IsLocked(h.clock.Now()) {
		t.Fatal("precondition: account should be locked")
	}

	if err := h.auth.ForgotPassword(ctx, "mario@x.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	token := *h.users.get(user.ID).ResetToken

	err := h.auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "N3wPassword!", ConfirmPassword: "different"})
	requireKind(t, err, ErrValidation)
	err = h.auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "short", ConfirmPassword: "short"})
	requireKind(t, err, ErrValidation)

	if err := h.auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "N3wPassword!", ConfirmPassword: "N3wPassword!"}); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	stored := h.users.get(user.ID)
	if stored.LoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("reset must clear lockout, got attempts=%d lockedUntil=%v", stored.LoginAttempts, stored.LockedUntil)
	}
	if stored.ResetToken != nil || stored.ResetTokenExpiry != nil {
		t.Fatal("reset token must be consumed")
	}
	if ok, _ := h.hasher.Verify(testPassword, stored.PasswordHash); ok {
		t.Fatal("old password must no longer verify")
	}
	if ok, _ := h.hasher.Verify("N3wPassword!", stored.PasswordHash); !ok {
		t.Fatal("new password should verify")
	}

	err = h.auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "N3wPassword!", ConfirmPassword: "N3wPassword!"})
	requireKind(t, err, ErrInvalidOrExpiredToken)
}

func TestOverlongPasswordIsValidationError(t *testing.T) {
	long := strings.Repeat("a", 73) + "B1!"
	ctx := context.Background()

	t.Run("default policy", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: long})
		requireKind(t, err, ErrValidation)

		user := h.seedUser(t, "luigi", "luigi@x.com", testPassword)
		if err := h.auth.ForgotPassword(ctx, "luigi@x.com"); err != nil {
			t.Fatalf("ForgotPassword returned error: %v", err)
		}
		token := *h.users.get(user.ID).ResetToken
		err = h.auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: long, ConfirmPassword: long})
		requireKind(t, err, ErrValidation)
		if h.users.get(user.ID).ResetToken == nil {
			t.Fatal("a rejected reset must not consume the token")
		}
	})

	// a policy wider than bcrypt still yields a 400, from the hasher
	t.Run("hasher limit", func(t *testing.T) {
		h := newHarness(t)
		auth, err := NewAuthService(config.AuthSettings{}, AuthDeps{
			Users:    h.users,
			Sessions: h.sessions,
			Hasher:   h.hasher,
			Policy:   security.NewPasswordPolicy(security.PasswordPolicyConfig{MaxBytes: 256}),
			Issuer:   h.issuer,
		})
		if err != nil {
			t.Fatalf("NewAuthService returned error: %v", err)
		}
		auth.WithClock(h.clock.Now)

		_, err = auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: long})
		if fe := requireKind(t, err, ErrValidation); !strings.Contains(fe.Message, "72 bytes") {
			t.Fatalf("unexpected message %q", fe.Message)
		}

		user := h.seedUser(t, "luigi", "luigi@x.com", testPassword)
		if err := auth.ForgotPassword(ctx, "luigi@x.com"); err != nil {
			t.Fatalf("ForgotPassword returned error: %v", err)
		}
		token := *h.users.get(user.ID).ResetToken
		err = auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: long, ConfirmPassword: long})
		requireKind(t, err, ErrValidation)
	})
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser(t, "mario", "mario@x.com", testPassword)

	if err := h.auth.ForgotPassword(ctx, "mario@x.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	token := *h.users.get(user.ID).ResetToken

	h.clock.Advance(time.Hour)
	err := h.auth.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "N3wPassword!", ConfirmPassword: "N3wPassword!"})
	requireKind(t, err, ErrInvalidOrExpiredToken)
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.auth.ResendVerification(ctx, "ghost@x.com"); err != nil {
		t.Fatalf("unknown email should succeed silently, got %v", err)
	}

	result, err := h.auth.Register(ctx, RegisterInput{Username: "mario", Email: "mario@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	original := *result.User.EmailToken
	h.notifier.Wait()

	h.clock.Advance(2 * time.Hour)
	if err := h.auth.ResendVerification(ctx, "mario@x.com"); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}
	h.notifier.Wait()

	stored := h.users.get(result.User.ID)
	if *stored.EmailToken == original {
		t.Fatal("expected a fresh verification token")
	}
	if want := h.clock.Now().Add(24 * time.Hour); !stored.EmailTokenExpiry.Equal(want) {
		t.Fatalf("expected refreshed expiry %s, got %s", want, stored.EmailTokenExpiry)
	}
	if emails := h.emails.emails(); len(emails) != 2 || emails[1].token != *stored.EmailToken {
		t.Fatalf("unexpected emails %+v", emails)
	}

	if _, err := h.auth.VerifyEmail(ctx, *stored.EmailToken); err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	err = h.auth.ResendVerification(ctx, "mario@x.com")
	requireKind(t, err, ErrAlreadyVerified)
}

func TestCurrentUser(t *testing.T) {
	h := newHarness(t)
	user := h.seedUser(t, "mario", "mario@x.com", testPassword)

	got, err := h.auth.CurrentUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("CurrentUser returned error: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("unexpected user %s", got.ID)
	}

	_, err = h.auth.CurrentUser(context.Background(), "missing")
	requireKind(t, err, ErrUserNotFound)
}

func TestStoreErrorsAreNotFlowErrors(t *testing.T) {
	h := newHarness(t)
	h.users.getByEmailErr = errors.New("connection reset")

	_, err := h.auth.Login(context.Background(), LoginInput{Email: "mario@x.com", Password: testPassword})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if _, ok := AsFlowError(err); ok {
		t.Fatal("store failures must surface as internal errors")
	}
}

func TestNewAuthServiceAppliesConfiguredPolicy(t *testing.T) {
	h := newHarness(t)

	auth, err := NewAuthService(config.AuthSettings{
		MaxLoginAttempts: 2,
		LockDuration:     time.Minute,
		ResetTokenTTL:    30 * time.Minute,
	}, AuthDeps{Users: h.users, Sessions: h.sessions, Hasher: h.hasher, Issuer: h.issuer})
	if err != nil {
		t.Fatalf("NewAuthService returned error: %v", err)
	}
	auth.WithClock(h.clock.Now)
	h.seedUser(t, "mario", "mario@x.com", testPassword)

	_, _ = auth.Login(context.Background(), LoginInput{Email: "mario@x.com", Password: "bad-password"})
	_, err = auth.Login(context.Background(), LoginInput{Email: "mario@x.com", Password: "bad-password"})
	if fe := requireKind(t, err, ErrAccountLocked); fe.LockMinutes != 1 {
		t.Fatalf("expected 1 lock minute, got %d", fe.LockMinutes)
	}

	if _, err := NewAuthService(config.AuthSettings{}, AuthDeps{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
