package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/config"
)

const (
	defaultSchema   = "auth"
	applicationName = "orso-auth"
)

// DSN renders a postgres:// URL. Credentials are escaped, so passwords may contain any character.
func DSN(cfg config.PostgresSettings) string {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// PoolConfig applies the pool limits and pins search_path to the auth schema.
// Zero limits keep the pgxpool defaults.
func PoolConfig(cfg config.PostgresSettings) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	schema := cfg.Schema
	if schema == "" {
		schema = defaultSchema
	}
	params := pc.ConnConfig.RuntimeParams
	params["search_path"] = schema + ",public"
	params["application_name"] = applicationName

	return pc, nil
}

// NewPostgresPool opens the pool and verifies it with a ping.
func NewPostgresPool(ctx context.Context, cfg config.PostgresSettings, log *zap.Logger) (*pgxpool.Pool, error) {
	pc, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("connected to postgres",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("search_path", pc.ConnConfig.RuntimeParams["search_path"]),
		zap.Int32("max_conns", pc.MaxConns),
	)
	return pool, nil
}
