package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newswire-search/pkg/ratelimit"
)

func newTestIPRateLimiter(t *testing.T, limit int, enabled bool) *IPRateLimiter {
	t.Helper()
	store := ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: 100})
	algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
	breaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	})
	return NewIPRateLimiter(
		IPRateLimiterConfig{Limit: limit, Window: time.Minute, Enabled: enabled},
		&RemoteAddrExtractor{},
		store,
		algorithm,
		ratelimit.NewNoOpMetrics(),
		breaker,
	)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPRateLimiter_AllowsWithinLimit(t *testing.T) {
	limiter := newTestIPRateLimiter(t, 3, true)
	handler := limiter.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "3" {
			t.Errorf("request %d: X-RateLimit-Limit = %q, want 3",
				i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestIPRateLimiter_DeniesOverLimit(t *testing.T) {
	limiter := newTestIPRateLimiter(t, 2, true)
	handler := limiter.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
		req.RemoteAddr = "10.0.0.2:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("warmup request %d failed: %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/query", nil)
	req.RemoteAddr = "10.0.0.2:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0",
			rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestIPRateLimiter_IsolatesClients(t *testing.T) {
	limiter := newTestIPRateLimiter(t, 1, true)
	handler := limiter.Middleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	first.RemoteAddr = "10.0.0.3:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", rec.Code)
	}

	// 別クライアントは独立した予算を持つ
	second := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	second.RemoteAddr = "10.0.0.4:1000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Errorf("second client: expected 200, got %d", rec.Code)
	}
}

func TestIPRateLimiter_DisabledPassesThrough(t *testing.T) {
	limiter := newTestIPRateLimiter(t, 1, false)
	handler := limiter.Middleware()(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
		req.RemoteAddr = "10.0.0.5:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: disabled limiter rejected request: %d", i+1, rec.Code)
		}
	}
}

// failingStore errors on every operation, simulating a broken backend.
type failingStore struct{}

func (failingStore) AddRequest(context.Context, string, time.Time) error {
	return errors.New("store down")
}

func (failingStore) GetRequests(context.Context, string, time.Time) ([]time.Time, error) {
	return nil, errors.New("store down")
}

func (failingStore) GetRequestCount(context.Context, string, time.Time) (int, error) {
	return 0, errors.New("store down")
}

func (failingStore) Cleanup(context.Context, time.Time) error { return errors.New("store down") }
func (failingStore) KeyCount(context.Context) (int, error)    { return 0, errors.New("store down") }
func (failingStore) MemoryUsage(context.Context) (int64, error) {
	return 0, errors.New("store down")
}

func TestIPRateLimiter_FailsOpenOnStoreError(t *testing.T) {
	algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
	breaker := ratelimit.NewCircuitBreaker(ratelimit.CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	})
	limiter := NewIPRateLimiter(
		IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: true},
		&RemoteAddrExtractor{},
		failingStore{},
		algorithm,
		ratelimit.NewNoOpMetrics(),
		breaker,
	)
	handler := limiter.Middleware()(okHandler())

	// ストア障害時は遮断せず通過させる
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
		req.RemoteAddr = "10.0.0.6:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected fail-open 200, got %d", i+1, rec.Code)
		}
	}
}

func TestStartRateLimitCleanup_StopsOnCancel(t *testing.T) {
	store := ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: 10})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		StartRateLimitCleanup(ctx, store, 10*time.Millisecond, time.Minute, "ip")
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine did not stop after cancel")
	}
}
