package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newControllableLimiter() (*RateLimiter, func(time.Time)) {
	mu := sync.Mutex{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := &RateLimiter{
		windows: make(map[string]*window),
		nowFunc: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	}
	set := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}
	return rl, set
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_Allow_UnderLimit(t *testing.T) {
	rl := NewRateLimiter()
	limits := Limits{MaxRequests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := rl.Allow("chat", "tok-1", limits)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if remaining != 3-(i+1) {
			t.Errorf("request %d remaining = %d, want %d", i+1, remaining, 3-(i+1))
		}
	}
}

func TestRateLimiter_Allow_OverLimit(t *testing.T) {
	rl := NewRateLimiter()
	limits := Limits{MaxRequests: 2, Window: time.Minute}

	rl.Allow("chat", "tok-1", limits)
	rl.Allow("chat", "tok-1", limits)

	allowed, _, retryAfter := rl.Allow("chat", "tok-1", limits)
	if allowed {
		t.Fatal("3rd request should be denied")
	}
	if retryAfter < 1 {
		t.Errorf("retryAfter = %d, want >= 1", retryAfter)
	}
}

func TestRateLimiter_EndpointIsolation(t *testing.T) {
	rl := NewRateLimiter()
	limits := Limits{MaxRequests: 1, Window: time.Minute}

	allowed, _, _ := rl.Allow("chat", "tok-1", limits)
	if !allowed {
		t.Fatal("first chat request should be allowed")
	}
	allowed, _, _ = rl.Allow("chat", "tok-1", limits)
	if allowed {
		t.Fatal("second chat request should be denied")
	}

	// Same token, different endpoint has its own window.
	allowed, _, _ = rl.Allow("retrieve", "tok-1", limits)
	if !allowed {
		t.Fatal("retrieve request for same token should be allowed")
	}
}

func TestRateLimiter_TokenIsolation(t *testing.T) {
	rl := NewRateLimiter()
	limits := Limits{MaxRequests: 1, Window: time.Minute}

	rl.Allow("chat", "tok-A", limits)
	allowed, _, _ := rl.Allow("chat", "tok-A", limits)
	if allowed {
		t.Fatal("tok-A should be exhausted")
	}

	allowed, _, _ = rl.Allow("chat", "tok-B", limits)
	if !allowed {
		t.Fatal("exhausting tok-A must not affect tok-B")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl, setNow := newControllableLimiter()
	limits := Limits{MaxRequests: 2, Window: time.Minute}

	rl.Allow("chat", "tok-1", limits)
	rl.Allow("chat", "tok-1", limits)

	allowed, _, _ := rl.Allow("chat", "tok-1", limits)
	if allowed {
		t.Fatal("3rd request within window should be denied")
	}

	setNow(time.Date(2026, 1, 1, 12, 1, 1, 0, time.UTC))

	allowed, remaining, _ := rl.Allow("chat", "tok-1", limits)
	if !allowed {
		t.Fatal("request after window expiry should be allowed")
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestRateLimiter_ExpiredKeyRetrackedAfterPrune(t *testing.T) {
	rl, setNow := newControllableLimiter()
	limits := Limits{MaxRequests: 1, Window: time.Minute}

	rl.Allow("chat", "tok-1", limits)
	setNow(time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC))

	// Touch the key with a request count check only via a fresh Allow call;
	// this forces pruning of the now-expired sole timestamp.
	rl.Allow("chat", "tok-1", limits)

	rl.mu.Lock()
	_, stillTracked := rl.windows["chat\x00tok-1"]
	rl.mu.Unlock()
	if !stillTracked {
		t.Fatal("key should be tracked again after the new request was appended")
	}
}

func TestPruneExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-1 * time.Minute)

	timestamps := []time.Time{
		now.Add(-2 * time.Minute),
		now.Add(-90 * time.Second),
		now.Add(-30 * time.Second),
		now,
	}

	result := pruneExpired(timestamps, cutoff)
	if len(result) != 2 {
		t.Errorf("pruneExpired returned %d entries, want 2", len(result))
	}
}

func TestRateLimit_MiddlewareRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter()
	handler := RateLimit(rl, "chat", Limits{MaxRequests: 1, Window: time.Minute}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
	req = req.WithContext(WithToken(req.Context(), "tok-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat", nil)
	req = req.WithContext(WithToken(req.Context(), "tok-1"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

type countingRecorder struct {
	hits map[string]int
}

func (c *countingRecorder) RecordRateLimitHit(endpoint string) {
	if c.hits == nil {
		c.hits = make(map[string]int)
	}
	c.hits[endpoint]++
}

func TestRateLimit_MiddlewareNotifiesRecorder(t *testing.T) {
	rl := NewRateLimiter()
	rec := &countingRecorder{}
	handler := RateLimit(rl, "retrieve", Limits{MaxRequests: 0, Window: time.Minute}, rec)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/retrieve", nil)
	req = req.WithContext(WithToken(req.Context(), "tok-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if rec.hits["retrieve"] != 1 {
		t.Errorf("hits[retrieve] = %d, want 1", rec.hits["retrieve"])
	}
}
