package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/infra/config"
)

const dialTimeout = 5 * time.Second

// Client owns the Redis pool that backs sliding-window rate limits.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// Options turns the settings into go-redis options. A redis:// or rediss:// URL wins over the discrete fields.
func Options(cfg config.RedisSettings) (*redis.Options, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}

	opts := &redis.Options{
		Addr:            cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        10,
		MinIdleConns:    2,
		MaxRetries:      3,
		DialTimeout:     dialTimeout,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// NewClient dials Redis and fails when the first ping does not succeed.
func NewClient(ctx context.Context, cfg config.RedisSettings, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	logger.Info("Redis connection established",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.Bool("tls", opts.TLSConfig != nil),
	)
	return &Client{client: client, logger: logger}, nil
}

// Client exposes the pool for repositories that take a redis.Cmdable.
func (c *Client) Client() *redis.Client {
	return c.client
}

// HealthCheck pings Redis for the readiness probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close logs the pool counters and releases the pool.
func (c *Client) Close() error {
	stats := c.client.PoolStats()
	c.logger.Info("Closing Redis connection",
		zap.Uint32("hits", stats.Hits),
		zap.Uint32("misses", stats.Misses),
		zap.Uint32("timeouts", stats.Timeouts),
	)
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}
