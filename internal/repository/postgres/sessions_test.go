package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/orsocook/orso-auth/internal/core/domain"
	"github.com/orsocook/orso-auth/internal/repository"
)

func TestSessionRepository_UpsertReturnsStoredRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = fixedNow(now)
	repo.newID = func() string { return "session-new" }

	ua := "Firefox"
	expires := now.Add(7 * 24 * time.Hour)
	created := now.Add(-48 * time.Hour)
	ip := "198.51.100.10"

	mock.ExpectQuery(`INSERT INTO auth\.sessions .* ON CONFLICT \(user_id\) DO UPDATE SET`).
		WithArgs("session-new", "user-1", "refresh-1", expires, &ua, (*string)(nil), now, now).
		WillReturnRows(pgxmock.NewRows(sessionColumns).AddRow(
			"session-old", "user-1", "refresh-1", expires, &ua, &ip, created, now,
		))

	session, err := repo.Upsert(context.Background(), domain.SessionUpsert{
		UserID:       "user-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expires,
		UserAgent:    &ua,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if session.ID != "session-old" {
		t.Fatalf("expected existing session id to be kept, got %s", session.ID)
	}
	if session.IPAddress == nil || *session.IPAddress != ip {
		t.Fatalf("expected previous ip to survive when none supplied")
	}
	if !session.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at to be preserved")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetLiveByToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM auth\.sessions WHERE refresh_token = \$1 AND expires_at > \$2 LIMIT 1`).
		WithArgs("refresh-1", now).
		WillReturnRows(pgxmock.NewRows(sessionColumns).AddRow(
			"session-1", "user-1", "refresh-1", now.Add(time.Hour), nil, nil, now, now,
		))

	session, err := repo.GetLiveByToken(context.Background(), "refresh-1", now)
	if err != nil {
		t.Fatalf("GetLiveByToken returned error: %v", err)
	}
	if session.UserID != "user-1" || session.UserAgent != nil {
		t.Fatalf("unexpected session %+v", session)
	}

	mock.ExpectQuery(`SELECT .* FROM auth\.sessions`).
		WithArgs("stale", now).
		WillReturnRows(pgxmock.NewRows(sessionColumns))

	if _, err := repo.GetLiveByToken(context.Background(), "stale", now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_ListLiveByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	now := time.Now().UTC()
	ua, ip := "UA", "203.0.113.5"

	mock.ExpectQuery(`SELECT .* FROM auth\.sessions WHERE user_id = \$1 AND expires_at > \$2 ORDER BY created_at DESC`).
		WithArgs("user-1", now).
		WillReturnRows(pgxmock.NewRows(sessionColumns).
			AddRow("session-2", "user-1", "r2", now.Add(time.Hour), &ua, &ip, now, now).
			AddRow("session-1", "user-1", "r1", now.Add(time.Hour), nil, nil, now.Add(-time.Hour), now))

	sessions, err := repo.ListLiveByUser(context.Background(), "user-1", now)
	if err != nil {
		t.Fatalf("ListLiveByUser returned error: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "session-2" {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
	if sessions[0].IPAddress == nil || *sessions[0].IPAddress != "203.0.113.5" {
		t.Fatalf("expected ip address on first session")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_Deletes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	now := time.Now().UTC()
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM auth\.sessions WHERE refresh_token = \$1`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM auth\.sessions WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM auth\.sessions WHERE id = \$1 AND user_id = \$2`).
		WithArgs("session-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM auth\.sessions WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	if n, err := repo.DeleteByToken(ctx, "gone"); err != nil || n != 0 {
		t.Fatalf("DeleteByToken = %d, %v", n, err)
	}
	if n, err := repo.DeleteAllForUser(ctx, "user-1"); err != nil || n != 1 {
		t.Fatalf("DeleteAllForUser = %d, %v", n, err)
	}
	if n, err := repo.DeleteForUser(ctx, "user-1", "session-1"); err != nil || n != 1 {
		t.Fatalf("DeleteForUser = %d, %v", n, err)
	}
	if n, err := repo.DeleteExpired(ctx, now); err != nil || n != 3 {
		t.Fatalf("DeleteExpired = %d, %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
