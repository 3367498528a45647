package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// memoryRateLimitStore keeps attempt timestamps per key, mirroring the
// sliding-window semantics of the Redis-backed store.
type memoryRateLimitStore struct {
	attempts map[string][]time.Time
}

func newMemoryRateLimitStore() *memoryRateLimitStore {
	return &memoryRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *memoryRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	cutoff := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *memoryRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	cutoff := reference.Add(-window)
	count := 0
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *memoryRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func newRateLimitedEngine(limiter *RateLimiter, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", limiter.RateLimit(rule), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func performRequest(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.7:4711"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitAllowsUpToLimit(t *testing.T) {
	store := newMemoryRateLimitStore()
	limiter := NewRateLimiter(store, nil)
	engine := newRateLimitedEngine(limiter, RateLimitRule{
		Name:       "login",
		Limit:      3,
		Window:     time.Minute,
		Identifier: ClientIPIdentifier(),
	})

	for i := 0; i < 3; i++ {
		rec := performRequest(engine)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := performRequest(engine)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on rejection")
	}
}

func TestRateLimitSetsHeaders(t *testing.T) {
	store := newMemoryRateLimitStore()
	limiter := NewRateLimiter(store, nil)
	engine := newRateLimitedEngine(limiter, RateLimitRule{
		Name:       "login",
		Limit:      5,
		Window:     time.Minute,
		Identifier: ClientIPIdentifier(),
	})

	rec := performRequest(engine)
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Fatalf("expected limit header 5, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Fatalf("expected remaining header 4, got %q", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Fatal("expected reset header")
	}
}

func TestRateLimitWindowSlides(t *testing.T) {
	store := newMemoryRateLimitStore()

	current := time.Now()
	limiter := NewRateLimiter(store, nil).WithClock(func() time.Time { return current })
	engine := newRateLimitedEngine(limiter, RateLimitRule{
		Name:       "login",
		Limit:      2,
		Window:     time.Minute,
		Identifier: ClientIPIdentifier(),
	})

	performRequest(engine)
	performRequest(engine)
	if rec := performRequest(engine); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 at the limit, got %d", rec.Code)
	}

	// Once the window passes, attempts are admitted again.
	current = current.Add(61 * time.Second)
	if rec := performRequest(engine); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after the window slid, got %d", rec.Code)
	}
}

func TestRateLimitFailsOpenWithoutStore(t *testing.T) {
	limiter := NewRateLimiter(nil, nil)
	engine := newRateLimitedEngine(limiter, RateLimitRule{
		Name:       "login",
		Limit:      1,
		Window:     time.Minute,
		Identifier: ClientIPIdentifier(),
	})

	for i := 0; i < 3; i++ {
		if rec := performRequest(engine); rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through without a store, got %d", rec.Code)
		}
	}
}
