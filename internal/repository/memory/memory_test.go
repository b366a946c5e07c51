package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/repository"
)

var (
	_ port.UserRepository    = (*UserRepository)(nil)
	_ port.SessionRepository = (*SessionRepository)(nil)
)

func TestUserRepositoryUniqueness(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, domain.User{ID: "1", Username: "mario", Email: "mario@x.com"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	err := repo.Create(ctx, domain.User{ID: "2", Username: "luigi", Email: "mario@x.com"})
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.MarkVerified(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepositoryTokenLookupsRespectExpiry(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, domain.User{ID: "1", Username: "mario", Email: "mario@x.com"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.SetResetToken(ctx, "1", "reset", now.Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken returned error: %v", err)
	}

	if _, err := repo.GetByLiveResetToken(ctx, "reset", now); err != nil {
		t.Fatalf("expected live token, got %v", err)
	}
	if _, err := repo.GetByLiveResetToken(ctx, "reset", now.Add(time.Hour)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("token must be dead at its expiry, got %v", err)
	}

	if err := repo.ResetPassword(ctx, "1", "hash"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	user, _ := repo.GetByID(ctx, "1")
	if user.ResetToken != nil || user.ResetTokenExpiry != nil || user.PasswordHash != "hash" {
		t.Fatalf("unexpected user after reset %+v", user)
	}
}

func TestSessionRepositoryUpsertKeepsOneRow(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo := NewSessionRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()
	agent := "firefox"

	first, err := repo.Upsert(ctx, domain.SessionUpsert{UserID: "u", RefreshToken: "a", ExpiresAt: now.Add(time.Hour), UserAgent: &agent})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	now = now.Add(time.Minute)
	second, err := repo.Upsert(ctx, domain.SessionUpsert{UserID: "u", RefreshToken: "b", ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if first.ID != second.ID || second.RefreshToken != "b" {
		t.Fatalf("expected in-place replacement, got %+v", second)
	}
	if second.UserAgent == nil || *second.UserAgent != agent {
		t.Fatal("absent user agent should keep the stored one")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatal("expected created_at kept and updated_at bumped")
	}

	if _, err := repo.GetLiveByToken(ctx, "a", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("old token should be gone, got %v", err)
	}

	deleted, _ := repo.DeleteForUser(ctx, "someone-else", second.ID)
	if deleted != 0 {
		t.Fatal("foreign delete must be a no-op")
	}
	deleted, _ = repo.DeleteExpired(ctx, now.Add(2*time.Hour))
	if deleted != 1 {
		t.Fatalf("expected one expired session, got %d", deleted)
	}
}

func TestSessionRepositoryRefreshTokenIsUnique(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo := NewSessionRepository().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, domain.SessionUpsert{UserID: "mario", RefreshToken: "shared", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if _, err := repo.Upsert(ctx, domain.SessionUpsert{UserID: "luigi", RefreshToken: "shared", ExpiresAt: now.Add(time.Hour)}); !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for a token held by another user, got %v", err)
	}
	// re-upserting the owner's own token is an update, not a conflict
	if _, err := repo.Upsert(ctx, domain.SessionUpsert{UserID: "mario", RefreshToken: "shared", ExpiresAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("owner re-upsert returned error: %v", err)
	}

	sessions, err := repo.ListLiveByUser(ctx, "luigi", now)
	if err != nil {
		t.Fatalf("ListLiveByUser returned error: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("rejected upsert must not store a session, got %d", len(sessions))
	}
}
