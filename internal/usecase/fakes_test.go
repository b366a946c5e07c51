package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	uuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/infra/security"
	"github.com/orsocook/orso-auth/internal/infra/telemetry"
	"github.com/orsocook/orso-auth/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User

	createErr     error
	getByEmailErr error
	failures      int
}

func newMemUserRepository() *memUserRepository {
	return &memUserRepository{users: map[string]domain.User{}}
}

func (r *memUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrAlreadyExists
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepository) put(user domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *memUserRepository) get(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *memUserRepository) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

func (r *memUserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *memUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.getByEmailErr != nil {
		return nil, r.getByEmailErr
	}
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *memUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, err := r.find(func(u domain.User) bool { return u.Email == email })
	return err == nil, nil
}

func (r *memUserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, err := r.find(func(u domain.User) bool { return u.Username == username })
	return err == nil, nil
}

func (r *memUserRepository) GetByLiveEmailToken(_ context.Context, token string, now time.Time) (*domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.EmailToken != nil && *u.EmailToken == token && u.HasLiveEmailToken(now)
	})
}

func (r *memUserRepository) GetByLiveResetToken(_ context.Context, token string, now time.Time) (*domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.ResetToken != nil && *u.ResetToken == token && u.HasLiveResetToken(now)
	})
}

func (r *memUserRepository) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	r.users[id] = u
	return nil
}

func (r *memUserRepository) MarkVerified(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) {
		u.IsVerified = true
		u.EmailToken = nil
		u.EmailTokenExpiry = nil
	})
}

func (r *memUserRepository) SetEmailToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.EmailToken = &token
		u.EmailTokenExpiry = &expiresAt
	})
}

func (r *memUserRepository) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.ResetToken = &token
		u.ResetTokenExpiry = &expiresAt
	})
}

func (r *memUserRepository) ResetPassword(_ context.Context, id, hash string) error {
	return r.mutate(id, func(u *domain.User) {
		u.PasswordHash = hash
		u.ResetToken = nil
		u.ResetTokenExpiry = nil
		u.LoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (r *memUserRepository) RecordLoginFailure(_ context.Context, id string, attempts int, lockedUntil *time.Time) error {
	r.failures++
	return r.mutate(id, func(u *domain.User) {
		u.LoginAttempts = attempts
		u.LockedUntil = lockedUntil
	})
}

func (r *memUserRepository) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.LoginAttempts = 0
		u.LockedUntil = nil
		u.LastLogin = &at
	})
}

type memSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	now      func() time.Time

	// uuidIDs makes DeleteForUser fail on ids a UUID column would reject.
	uuidIDs bool
}

func newMemSessionRepository(now func() time.Time) *memSessionRepository {
	return &memSessionRepository{sessions: map[string]domain.Session{}, now: now}
}

func (r *memSessionRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *memSessionRepository) Upsert(_ context.Context, in domain.SessionUpsert) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, s := range r.sessions {
		if s.UserID == in.UserID {
			s.RefreshToken = in.RefreshToken
			s.ExpiresAt = in.ExpiresAt
			if in.UserAgent != nil {
				s.UserAgent = in.UserAgent
			}
			if in.IPAddress != nil {
				s.IPAddress = in.IPAddress
			}
			s.UpdatedAt = now
			r.sessions[id] = s
			return s, nil
		}
	}
	s := domain.Session{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt,
		UserAgent:    in.UserAgent,
		IPAddress:    in.IPAddress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *memSessionRepository) GetLiveByToken(_ context.Context, token string, now time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshToken == token && s.IsLive(now) {
			found := s
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSessionRepository) deleteWhere(match func(domain.Session) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, s := range r.sessions {
		if match(s) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted
}

func (r *memSessionRepository) DeleteByToken(_ context.Context, token string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.RefreshToken == token }), nil
}

func (r *memSessionRepository) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return s.UserID == userID }), nil
}

func (r *memSessionRepository) DeleteForUser(_ context.Context, userID, sessionID string) (int, error) {
	if r.uuidIDs && uuid.Validate(sessionID) != nil {
		return 0, fmt.Errorf("invalid input syntax for type uuid: %q", sessionID)
	}
	return r.deleteWhere(func(s domain.Session) bool { return s.UserID == userID && s.ID == sessionID }), nil
}

func (r *memSessionRepository) ListLiveByUser(_ context.Context, userID string, now time.Time) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Session{}
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsLive(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memSessionRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return r.deleteWhere(func(s domain.Session) bool { return !s.IsLive(now) }), nil
}

type sentEmail struct {
	kind     string
	to       string
	username string
	token    string
}

type recordingEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *recordingEmailSender) record(kind, to, username, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEmail{kind: kind, to: to, username: username, token: token})
	return s.err
}

func (s *recordingEmailSender) SendVerificationEmail(_ context.Context, to, username, token string) error {
	return s.record(notifyVerificationEmail, to, username, token)
}

func (s *recordingEmailSender) SendPasswordResetEmail(_ context.Context, to, username, token string) error {
	return s.record(notifyResetEmail, to, username, token)
}

func (s *recordingEmailSender) emails() []sentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentEmail, len(s.sent))
	copy(out, s.sent)
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) record(event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) snapshot() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishUserVerified(_ context.Context, e domain.UserVerifiedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishPasswordResetRequested(_ context.Context, e domain.PasswordResetRequestedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishPasswordReset(_ context.Context, e domain.PasswordResetEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishAccountLocked(_ context.Context, e domain.AccountLockedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishSessionCreated(_ context.Context, e domain.SessionCreatedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishSessionRevoked(_ context.Context, e domain.SessionRevokedEvent) error {
	return p.record(e)
}

type sequenceTokens struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceTokens) NewToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("tok-%02d", s.n), nil
}

type failingTokens struct{}

func (failingTokens) NewToken() (string, error) { return "", errors.New("entropy exhausted") }

// countingHasher records how often the wrapped hasher is used.
type countingHasher struct {
	port.PasswordHasher
	hashes   atomic.Int32
	verifies atomic.Int32
}

func (c *countingHasher) Hash(password string) (string, error) {
	c.hashes.Add(1)
	return c.PasswordHasher.Hash(password)
}

func (c *countingHasher) Verify(password, encoded string) (bool, error) {
	c.verifies.Add(1)
	return c.PasswordHasher.Verify(password, encoded)
}

// harness wires both services to in-memory stores and a controllable clock.
type harness struct {
	clock    *testClock
	users    *memUserRepository
	sessions *memSessionRepository
	emails   *recordingEmailSender
	events   *recordingPublisher
	hasher   *security.PasswordHasher
	issuer   *security.TokenIssuer
	metrics  *telemetry.Metrics
	notifier *Notifier
	auth     *AuthService
	session  *SessionService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := newTestClock()
	log := zaptest.NewLogger(t)

	hasher, err := security.NewPasswordHasher(security.WithBcryptCost(4))
	if err != nil {
		t.Fatalf("NewPasswordHasher returned error: %v", err)
	}
	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		Issuer:        "orso-auth",
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	issuer.WithClock(clock.Now)

	metrics, err := telemetry.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}

	h := &harness{
		clock:    clock,
		users:    newMemUserRepository(),
		sessions: newMemSessionRepository(clock.Now),
		emails:   &recordingEmailSender{},
		events:   &recordingPublisher{},
		hasher:   hasher,
		issuer:   issuer,
		metrics:  metrics,
	}
	h.notifier = NewNotifier(h.emails, h.events, metrics, log)

	auth, err := NewAuthService(config.AuthSettings{}, AuthDeps{
		Users:    h.users,
		Sessions: h.sessions,
		Hasher:   hasher,
		Issuer:   issuer,
		Tokens:   &sequenceTokens{},
		Notifier: h.notifier,
		Metrics:  metrics,
		Logger:   log,
	})
	if err != nil {
		t.Fatalf("NewAuthService returned error: %v", err)
	}
	h.auth = auth.WithClock(clock.Now)
	h.session = NewSessionService(h.sessions, h.users, issuer, h.notifier, metrics, log).WithClock(clock.Now)
	return h
}

// seedUser stores a verified account with the given password.
func (h *harness) seedUser(t *testing.T, username, email, password string) domain.User {
	t.Helper()
	hash, err := h.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsVerified:   true,
		CreatedAt:    h.clock.Now(),
		UpdatedAt:    h.clock.Now(),
	}
	h.users.put(user)
	return user
}

func requireKind(t *testing.T, err error, kind error) *FlowError {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	fe, ok := AsFlowError(err)
	if !ok {
		t.Fatalf("expected *FlowError, got %T", err)
	}
	return fe
}
