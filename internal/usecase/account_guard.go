package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
)

const (
	defaultMaxLoginAttempts = 5
	defaultLockDuration     = 15 * time.Minute
)

// LockoutOutcome reports the account state after a failed login.
type LockoutOutcome struct {
	Locked       bool
	LockUntil    time.Time
	Attempts     int
	AttemptsLeft int
}

// AccountGuard keeps the failed-login counter and lock deadline on the user row.
// The read-increment-write sequence is not atomic; concurrent failures may under-count by one.
type AccountGuard struct {
	users       port.UserRepository
	maxAttempts int
	lockFor     time.Duration
	now         func() time.Time
}

// NewAccountGuard constructs a guard. Non-positive values fall back to 5 attempts and 15 minutes.
func NewAccountGuard(users port.UserRepository, maxAttempts int, lockFor time.Duration) *AccountGuard {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}
	if lockFor <= 0 {
		lockFor = defaultLockDuration
	}
	return &AccountGuard{
		users:       users,
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (g *AccountGuard) WithClock(now func() time.Time) *AccountGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// IsLocked reports whether the lock deadline is still ahead.
func (g *AccountGuard) IsLocked(user domain.User) bool {
	return user.IsLocked(g.now())
}

// OnFailure increments the counter and locks the account once it reaches the maximum.
func (g *AccountGuard) OnFailure(ctx context.Context, user domain.User) (LockoutOutcome, error) {
	attempts := user.LoginAttempts + 1
	outcome := LockoutOutcome{Attempts: attempts}

	var lockedUntil *time.Time
	if attempts >= g.maxAttempts {
		until := g.now().Add(g.lockFor)
		lockedUntil = &until
		outcome.Locked = true
		outcome.LockUntil = until
	} else {
		outcome.AttemptsLeft = g.maxAttempts - attempts
	}

	if err := g.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
		return LockoutOutcome{}, fmt.Errorf("record login failure: %w", err)
	}
	return outcome, nil
}

// OnSuccess clears the counter and the lock and stamps the login time.
func (g *AccountGuard) OnSuccess(ctx context.Context, userID string) (time.Time, error) {
	at := g.now()
	if err := g.users.RecordLoginSuccess(ctx, userID, at); err != nil {
		return time.Time{}, fmt.Errorf("record login success: %w", err)
	}
	return at, nil
}

// RemainingLockMinutes rounds the time left on a lock up to whole minutes.
func (g *AccountGuard) RemainingLockMinutes(lockedUntil time.Time) int {
	return RemainingLockMinutes(lockedUntil, g.now())
}

// RemainingLockMinutes rounds lockedUntil-now up to whole minutes, never below zero.
func RemainingLockMinutes(lockedUntil, now time.Time) int {
	left := lockedUntil.Sub(now)
	if left <= 0 {
		return 0
	}
	minutes := int(left / time.Minute)
	if left%time.Minute != 0 {
		minutes++
	}
	return minutes
}
