package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/orsocook/orso-auth/docs/swagger"
	"github.com/orsocook/orso-auth/internal/infra/app"
	"github.com/orsocook/orso-auth/internal/infra/config"
)

// @title			OrsoCook Auth API
// @version		1.0
// @description	Account registration, email verification, login and session management for OrsoCook.
// @BasePath		/
//
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
// @description				Type "Bearer" followed by a space and the access token.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		log.Printf("application stopped: %v", err)
		os.Exit(1)
	}
}
