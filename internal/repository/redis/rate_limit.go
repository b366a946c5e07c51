package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	uuid "github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orsocook/orso-auth/internal/core/port"
)

// SlidingWindowConfig names the keyspace and how long an idle window survives.
type SlidingWindowConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// RateLimitRepository keeps attempts in one sorted set per key, scored by unix nanoseconds.
type RateLimitRepository struct {
	client redis.Cmdable
	cfg    SlidingWindowConfig
}

func NewRateLimitRepository(client redis.Cmdable, cfg SlidingWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// Usage trims attempts that fell out of the window and reads what remains in one transaction.
func (r *RateLimitRepository) Usage(ctx context.Context, key string, window time.Duration, at time.Time) (port.WindowUsage, error) {
	if window <= 0 {
		return port.WindowUsage{}, errors.New("window must be positive")
	}

	k := r.key(key)
	cutoff := "(" + strconv.FormatInt(at.Add(-window).UnixNano(), 10)

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		card = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		return nil
	})
	if err != nil {
		return port.WindowUsage{}, fmt.Errorf("redis window usage: %w", err)
	}

	usage := port.WindowUsage{Count: int(card.Val())}
	if first := oldest.Val(); len(first) > 0 {
		usage.Oldest = time.Unix(0, int64(first[0].Score)).UTC()
	}
	return usage, nil
}

// Record adds an attempt and pushes the key expiry out.
func (r *RateLimitRepository) Record(ctx context.Context, key string, at time.Time) error {
	k := r.key(key)
	// random suffix keeps two attempts in the same nanosecond distinct
	member := redis.Z{
		Score:  float64(at.UnixNano()),
		Member: strconv.FormatInt(at.UnixNano(), 10) + ":" + uuid.NewString(),
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, k, member)
		if r.cfg.TTL > 0 {
			pipe.Expire(ctx, k, r.cfg.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}
	return nil
}

func (r *RateLimitRepository) key(key string) string {
	if r.cfg.KeyPrefix == "" {
		return key
	}
	return r.cfg.KeyPrefix + ":" + key
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
