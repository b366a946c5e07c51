package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/port"
	appLogger "github.com/orsocook/orso-auth/internal/infra/logger"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window limits backed by a RateLimitStore.
// A nil limiter or store lets every request through.
type RateLimiter struct {
	store   port.RateLimitStore
	metrics *HTTPMetrics
	logger  *zap.Logger
	now     func() time.Time
}

type ruleResult struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// RateLimitedResponse is the envelope returned with 429.
type RateLimitedResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    RateLimitedData `json:"data"`
	TraceID string          `json:"trace_id,omitempty"`
}

// RateLimitedData tells the client when to retry.
type RateLimitedData struct {
	RetryAfter int `json:"retryAfter"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// WithMetrics counts every rejection per rule.
func (rl *RateLimiter) WithMetrics(m *HTTPMetrics) *RateLimiter {
	rl.metrics = m
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. Store failures fail open.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if rl == nil || rl.store == nil || len(active) == 0 {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *ruleResult

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			res, err := rl.evaluate(c, rule, rule.Name+":"+identifier, now)
			if err != nil {
				appLogger.Enrich(c.Request.Context(), rl.logger).Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", appLogger.MaskString(identifier)),
					zap.Error(err),
				)
				continue
			}

			if !res.allowed {
				rl.metrics.observeThrottled(rule.Name)
				applyRateLimitHeaders(c, res)
				rl.reject(c, res)
				return
			}
			if tightest == nil || res.remaining < tightest.remaining ||
				(res.remaining == tightest.remaining && res.reset.Before(tightest.reset)) {
				snapshot := res
				tightest = &snapshot
			}
		}

		if tightest != nil {
			applyRateLimitHeaders(c, *tightest)
		}
		c.Next()
	}
}

func (rl *RateLimiter) evaluate(c *gin.Context, rule RateLimitRule, key string, now time.Time) (ruleResult, error) {
	ctx := c.Request.Context()

	usage, err := rl.store.Usage(ctx, key, rule.Window, now)
	if err != nil {
		return ruleResult{}, err
	}

	res := ruleResult{allowed: true, limit: rule.Limit, reset: now.Add(rule.Window)}
	if !usage.Oldest.IsZero() {
		res.reset = usage.Oldest.Add(rule.Window)
	}
	res.retryAfter = max(res.reset.Sub(now), 0)

	if usage.Count >= rule.Limit {
		res.allowed = false
		return res, nil
	}

	if err := rl.store.Record(ctx, key, now); err != nil {
		return ruleResult{}, err
	}
	res.remaining = max(rule.Limit-usage.Count-1, 0)
	return res, nil
}

func applyRateLimitHeaders(c *gin.Context, res ruleResult) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(res.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))

	if !res.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(res.retryAfter)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, res ruleResult) {
	seconds := retrySeconds(res.retryAfter)
	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedResponse{
		Success: false,
		Message: fmt.Sprintf("too many requests, try again in %d seconds", seconds),
		Data:    RateLimitedData{RetryAfter: seconds},
		TraceID: GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
