package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/database/migrations"
)

// gooseUp is swapped in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded goose migrations through a database/sql handle
// borrowed from the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return runMigrations(ctx, db, log)
}

func runMigrations(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("database migrations applied")
	return nil
}
