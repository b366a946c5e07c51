package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/repository"
)

func userRow(user domain.User) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns).AddRow(
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsVerified,
		user.EmailToken, user.EmailTokenExpiry, user.ResetToken, user.ResetTokenExpiry,
		user.LoginAttempts, user.LockedUntil, user.LastLogin, user.AvatarURL,
		user.CreatedAt, user.UpdatedAt,
	)
}

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// anyArgs matches n arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	expiry := now.Add(24 * time.Hour)
	token := "tok"
	user := domain.User{
		ID:               "user-1",
		Username:         "mario",
		Email:            "mario@x.com",
		PasswordHash:     "hash",
		EmailToken:       &token,
		EmailTokenExpiry: &expiry,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs(
			user.ID, user.Username, user.Email, user.PasswordHash, false,
			user.EmailToken, user.EmailTokenExpiry, user.ResetToken, user.ResetTokenExpiry,
			0, user.LockedUntil, user.LastLogin, user.AvatarURL, now, now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`INSERT INTO auth\.users`).
		WithArgs(anyArgs(len(userColumns))...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err = repo.Create(context.Background(), domain.User{ID: "user-1", Username: "mario", Email: "mario@x.com"})
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()
	locked := now.Add(10 * time.Minute)
	stored := domain.User{
		ID:            "user-1",
		Username:      "mario",
		Email:         "mario@x.com",
		PasswordHash:  "hash",
		IsVerified:    true,
		LoginAttempts: 5,
		LockedUntil:   &locked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectQuery(`SELECT .* FROM auth\.users WHERE email = \$1 LIMIT 1`).
		WithArgs("mario@x.com").
		WillReturnRows(userRow(stored))

	user, err := repo.GetByEmail(context.Background(), "mario@x.com")
	if err != nil {
		t.Fatalf("GetByEmail returned error: %v", err)
	}
	if user.ID != "user-1" || !user.IsVerified || user.LoginAttempts != 5 {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.LockedUntil == nil || !user.LockedUntil.Equal(locked) {
		t.Fatalf("expected locked_until to be populated")
	}
	if user.EmailToken != nil {
		t.Fatalf("expected nil email token")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .* FROM auth\.users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_GetByLiveEmailTokenFiltersExpiry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM auth\.users WHERE \(email_token = \$1 AND email_token_expiry > \$2\)`).
		WithArgs("tok", now).
		WillReturnRows(pgxmock.NewRows(userColumns))

	if _, err := repo.GetByLiveEmailToken(context.Background(), "tok", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_ExistsByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM auth\.users WHERE username = \$1\)`).
		WithArgs("mario").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByUsername(context.Background(), "mario")
	if err != nil {
		t.Fatalf("ExistsByUsername returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected username to exist")
	}
}

func TestUserRepository_ResetPasswordClearsTokenAndLockout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = fixedNow(now)

	// SetMap orders columns alphabetically.
	mock.ExpectExec(`UPDATE auth\.users SET locked_until = \$1, login_attempts = \$2, password_hash = \$3, reset_token = \$4, reset_token_expiry = \$5, updated_at = \$6 WHERE id = \$7`).
		WithArgs(nil, 0, "new-hash", nil, nil, now, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.ResetPassword(context.Background(), "user-1", "new-hash"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_RecordLoginFailureMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = fixedNow(now)

	mock.ExpectExec(`UPDATE auth\.users SET locked_until = \$1, login_attempts = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs(pgxmock.AnyArg(), 1, now, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.RecordLoginFailure(context.Background(), "missing", 1, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
