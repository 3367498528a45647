package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitProblemType  = "https://iam.creativedesigns.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateLimitStore is the attempt ledger behind the limiter. The Redis
// implementation keeps a sorted set per key; any store with sliding-window
// count semantics fits.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
}

// IdentifierFunc derives the scoping key for a request, typically the client
// IP. Returning false skips the rule for that request.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule caps attempts per identifier inside a sliding window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter evaluates rules against a shared attempt store. Store failures
// never reject a request; an unreachable store degrades to no limiting.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a limiter over the given store.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock swaps the time source, for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule by the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// decision is the outcome of evaluating one rule for one request.
type decision struct {
	allowed    bool
	limit      int
	remaining  int
	resetAt    time.Time
	retryAfter time.Duration
}

// ProblemDetails is the RFC 9457 payload returned on rejection.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// RateLimit enforces the given rules in order. The response carries the
// X-RateLimit headers of the tightest rule that applied; the first rule to
// reject short-circuits with a 429.
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
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *decision

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}
			key := rule.Name + ":" + identifier

			dec, err := rl.decide(c.Request.Context(), rule, key, now)
			if err != nil {
				rl.logger.Warn("rate limit store unavailable",
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				continue
			}

			if tightest == nil || tighter(dec, *tightest) {
				snapshot := dec
				tightest = &snapshot
			}

			if !dec.allowed {
				rl.writeRateHeaders(c, dec)
				rl.reject(c, dec)
				return
			}
		}

		if tightest != nil {
			rl.writeRateHeaders(c, *tightest)
		}
		c.Next()
	}
}

// decide trims the window, counts attempts, and records the new attempt only
// when it is admitted, so rejected requests never extend a lockout window.
func (rl *RateLimiter) decide(ctx context.Context, rule RateLimitRule, key string, now time.Time) (decision, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return decision{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return decision{}, err
	}

	dec := decision{
		limit:   rule.Limit,
		resetAt: now.Add(rule.Window),
	}

	if count >= rule.Limit {
		dec.retryAfter = rule.Window
		return dec, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return decision{}, err
	}

	dec.allowed = true
	dec.remaining = rule.Limit - count - 1
	return dec, nil
}

// tighter reports whether a is the stricter decision: rejections first, then
// fewer remaining attempts, then the earlier reset.
func tighter(a, b decision) bool {
	if a.allowed != b.allowed {
		return !a.allowed
	}
	if a.remaining != b.remaining {
		return a.remaining < b.remaining
	}
	return a.resetAt.Before(b.resetAt)
}

func (rl *RateLimiter) writeRateHeaders(c *gin.Context, dec decision) {
	h := c.Writer.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(dec.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.resetAt.Unix(), 10))
	if !dec.allowed {
		h.Set("Retry-After", strconv.Itoa(retrySeconds(dec.retryAfter)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, dec decision) {
	seconds := retrySeconds(dec.retryAfter)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Request rate exceeded; retry in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 0 {
		return 0
	}
	return seconds
}
