package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/infra/database"
	"github.com/orsocook/orso-auth/internal/infra/logger"
	postgresrepo "github.com/orsocook/orso-auth/internal/repository/postgres"
	"github.com/orsocook/orso-auth/internal/usecase"
)

// session-sweeper deletes expired sessions once and exits, for use from a cron job.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Postgres.Enabled {
		log.Fatal("session-sweeper needs postgres.enabled")
	}

	zl, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, zl)
	if err != nil {
		zl.Error("connect postgres", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	repos := postgresrepo.NewRepositories(pool)
	sessions := usecase.NewSessionService(repos.Sessions, repos.Users, nil, nil, nil, zl)

	removed, err := sessions.SweepExpired(ctx)
	if err != nil {
		zl.Error("sweep expired sessions", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("expired sessions swept", zap.Int("removed", removed))
}
