package port

import (
	"context"
	"time"
)

// WindowUsage describes one sliding window after expired attempts were dropped.
// Oldest is the zero time when the window is empty.
type WindowUsage struct {
	Count  int
	Oldest time.Time
}

// RateLimitStore keeps attempt timestamps per key for the request throttle.
type RateLimitStore interface {
	Usage(ctx context.Context, key string, window time.Duration, at time.Time) (WindowUsage, error)
	Record(ctx context.Context, key string, at time.Time) error
}
