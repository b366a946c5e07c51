package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/orsocook/orso-auth/internal/infra/config"
)

func TestOptionsPreferURL(t *testing.T) {
	opts, err := Options(config.RedisSettings{URL: "redis://:pw@cache.internal:6380/2", Host: "ignored", Port: 1})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "pw" {
		t.Fatalf("unexpected options from url: addr=%s db=%d", opts.Addr, opts.DB)
	}

	opts, err = Options(config.RedisSettings{Host: "localhost", Port: 6379, DB: 1, TLSEnabled: true})
	if err != nil {
		t.Fatalf("Options returned error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 1 || opts.TLSConfig == nil {
		t.Fatalf("unexpected discrete options: %+v", opts)
	}

	if _, err := Options(config.RedisSettings{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

func TestNewClientPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(context.Background(), config.RedisSettings{URL: "redis://" + srv.Addr()}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	srv.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail once the server is gone")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestNewClientFailsWithoutServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{URL: "redis://" + addr}, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected NewClient to fail when redis is unreachable")
	}
}
