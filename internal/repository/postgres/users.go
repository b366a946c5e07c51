package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/repository"
)

const usersTable = "auth.users"

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"is_verified",
	"email_token",
	"email_token_expiry",
	"reset_token",
	"reset_token_expiry",
	"login_attempts",
	"locked_until",
	"last_login",
	"avatar_url",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{exec: tx, builder: r.builder, now: r.now}
}

// Create inserts a new user row. Unique violations on email or username surface as repository.ErrAlreadyExists.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	updatedAt := user.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.IsVerified,
			user.EmailToken,
			user.EmailTokenExpiry,
			user.ResetToken,
			user.ResetTokenExpiry,
			user.LoginAttempts,
			user.LockedUntil,
			user.LastLogin,
			user.AvatarURL,
			createdAt,
			updatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "by id", squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "by email", squirrel.Eq{"email": email})
}

// GetByLiveEmailToken finds the user holding token whose expiry is strictly after now.
func (r *UserRepository) GetByLiveEmailToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	return r.getOne(ctx, "by email token", squirrel.And{
		squirrel.Eq{"email_token": token},
		squirrel.Gt{"email_token_expiry": now},
	})
}

// GetByLiveResetToken finds the user holding token whose expiry is strictly after now.
func (r *UserRepository) GetByLiveResetToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	return r.getOne(ctx, "by reset token", squirrel.And{
		squirrel.Eq{"reset_token": token},
		squirrel.Gt{"reset_token_expiry": now},
	})
}

// ExistsByEmail reports whether an account already uses email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", squirrel.Eq{"email": email})
}

// ExistsByUsername reports whether an account already uses username.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", squirrel.Eq{"username": username})
}

// MarkVerified flags the account verified and clears the verification token pair.
func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	return r.update(ctx, "mark verified", id, map[string]any{
		"is_verified":        true,
		"email_token":        nil,
		"email_token_expiry": nil,
	})
}

// SetEmailToken stores a fresh verification token pair.
func (r *UserRepository) SetEmailToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.update(ctx, "set email token", id, map[string]any{
		"email_token":        token,
		"email_token_expiry": expiresAt,
	})
}

// SetResetToken stores a fresh password reset token pair.
func (r *UserRepository) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return r.update(ctx, "set reset token", id, map[string]any{
		"reset_token":        token,
		"reset_token_expiry": expiresAt,
	})
}

// ResetPassword swaps the hash, consumes the reset token and clears the lockout in one statement.
func (r *UserRepository) ResetPassword(ctx context.Context, id, passwordHash string) error {
	return r.update(ctx, "reset password", id, map[string]any{
		"password_hash":      passwordHash,
		"reset_token":        nil,
		"reset_token_expiry": nil,
		"login_attempts":     0,
		"locked_until":       nil,
	})
}

// RecordLoginFailure stores the new failed-attempt count and optional lock deadline.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	return r.update(ctx, "record login failure", id, map[string]any{
		"login_attempts": attempts,
		"locked_until":   lockedUntil,
	})
}

// RecordLoginSuccess clears the lockout state and stamps the login time.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "record login success", id, map[string]any{
		"login_attempts": 0,
		"locked_until":   nil,
		"last_login":     at,
	})
}

func (r *UserRepository) getOne(ctx context.Context, label string, where squirrel.Sqlizer) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user %s sql: %w", label, err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user %s: %w", label, err)
	}
	return user, nil
}

func (r *UserRepository) exists(ctx context.Context, label string, where squirrel.Sqlizer) (bool, error) {
	inner, innerArgs, err := r.builder.Select("1").From(usersTable).Where(where).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists %s sql: %w", label, err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, "SELECT EXISTS ("+inner+")", innerArgs...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s exists: %w", label, err)
	}
	return exists, nil
}

func (r *UserRepository) update(ctx context.Context, label, id string, values map[string]any) error {
	values["updated_at"] = r.now()

	stmt, args, err := r.builder.Update(usersTable).
		SetMap(values).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", label, err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&user.EmailToken,
		&user.EmailTokenExpiry,
		&user.ResetToken,
		&user.ResetTokenExpiry,
		&user.LoginAttempts,
		&user.LockedUntil,
		&user.LastLogin,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
