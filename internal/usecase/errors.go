package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the email or username is already registered.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials never distinguishes an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailNotVerified indicates the account must be verified before login.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountLocked indicates too many failed logins.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidOrExpiredToken covers verification and reset tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidToken indicates a refresh or access token failed signature or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidOrExpiredSession indicates no live session matches the refresh token.
	ErrInvalidOrExpiredSession = errors.New("invalid or expired session")
	// ErrUserNotFound indicates the token subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyVerified indicates a verification email was requested for a verified account.
	ErrAlreadyVerified = errors.New("already verified")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// FlowError is a policy failure returned by a flow. It unwraps to one of the sentinels above.
type FlowError struct {
	Kind    error
	Message string

	// LockMinutes is set for ErrAccountLocked.
	LockMinutes int
	// AttemptsLeft is set for ErrInvalidCredentials after a wrong password on an unlocked account.
	AttemptsLeft *int
	// Email is set for ErrEmailNotVerified so the client can offer a resend.
	Email string
}

func (e *FlowError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *FlowError) Unwrap() error {
	return e.Kind
}

func flowError(kind error, message string) *FlowError {
	return &FlowError{Kind: kind, Message: message}
}

func validationError(format string, args ...any) *FlowError {
	return &FlowError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// AsFlowError extracts the flow error from err, if any.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

const (
	msgMissingFields         = "username, email and password are required"
	msgInvalidEmail          = "invalid email format"
	msgEmailTaken            = "email already registered"
	msgUsernameTaken         = "username already in use"
	msgAccountTaken          = "email or username already in use"
	msgMissingToken          = "token is required"
	msgInvalidVerification   = "verification token is invalid or expired"
	msgMissingCredentials    = "email and password are required"
	msgInvalidCredentials    = "invalid credentials"
	msgEmailNotVerified      = "you must verify your email before signing in"
	msgMissingEmail          = "email is required"
	msgMissingResetFields    = "token, password and password confirmation are required"
	msgPasswordMismatch      = "passwords do not match"
	msgPasswordTooLong       = "password must be at most %d bytes long"
	msgInvalidReset          = "reset token is invalid or expired"
	msgAlreadyVerified       = "account already verified"
	msgMissingRefreshToken   = "refresh token is required"
	msgInvalidRefreshToken   = "refresh token is invalid or expired"
	msgInvalidSession        = "session is invalid or expired"
	msgUserNotFound          = "user not found"
	msgAccountLockedFormat   = "account temporarily locked, try again in %d minutes"
	msgTooManyAttemptsFormat = "too many failed attempts, account locked for %d minutes"
	msgAttemptsLeftFormat    = "invalid credentials, %d attempts left"
)
