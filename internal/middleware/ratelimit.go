package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
)

// Limits is the sliding-window policy for one endpoint.
type Limits struct {
	MaxRequests int
	Window      time.Duration
}

// window holds the ordered request timestamps for one (endpoint, token)
// pair that currently fall, or recently fell, inside the active window.
type window struct {
	timestamps []time.Time
}

// RateLimitRecorder is notified whenever a request is rejected for
// exceeding its rate limit, so the metrics bucket for that endpoint can
// track rateLimitHits independently of the error counter.
type RateLimitRecorder interface {
	RecordRateLimitHit(endpoint string)
}

// RateLimiter implements the per-(endpoint, token) sliding window described
// in the system's rate-limiting design: a single mutex guards the whole
// table, since each operation is O(window size) and short-lived. Cleanup
// is lazy and happens only on access to the key being checked; there is no
// background sweeper.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	nowFunc func() time.Time
}

// NewRateLimiter returns a RateLimiter with an empty table.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		nowFunc: time.Now,
	}
}

// Allow evaluates one request against limits for the given (endpoint,
// token) key. It returns whether the request is allowed, the number of
// remaining requests in the window after this one (valid only when
// allowed), and the number of seconds the caller should wait before
// retrying (valid only when rejected).
func (rl *RateLimiter) Allow(endpoint, token string, limits Limits) (allowed bool, remaining int, retryAfterSeconds int) {
	key := endpoint + "\x00" + token
	now := rl.nowFunc()
	cutoff := now.Add(-limits.Window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := rl.windows[key]
	if w == nil {
		w = &window{}
	}
	w.timestamps = pruneExpired(w.timestamps, cutoff)
	if len(w.timestamps) == 0 {
		delete(rl.windows, key)
	}

	count := len(w.timestamps)
	if count >= limits.MaxRequests {
		wait := limits.Window.Seconds()
		if count > 0 {
			wait = w.timestamps[0].Add(limits.Window).Sub(now).Seconds()
		}
		retryAfterSeconds = int(math.Ceil(wait))
		if retryAfterSeconds < 1 {
			retryAfterSeconds = 1
		}
		rl.windows[key] = w
		return false, 0, retryAfterSeconds
	}

	w.timestamps = append(w.timestamps, now)
	rl.windows[key] = w
	return true, limits.MaxRequests - len(w.timestamps), 0
}

// pruneExpired removes timestamps strictly before cutoff, in place.
func pruneExpired(timestamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, t := range timestamps {
		if !t.Before(cutoff) {
			timestamps[idx] = t
			idx++
		}
	}
	return timestamps[:idx]
}

// RateLimit returns middleware enforcing limits for one named endpoint.
// It requires TokenFromContext to resolve a non-empty token; auth
// middleware must run first. recorder may be nil.
func RateLimit(rl *RateLimiter, endpoint string, limits Limits, recorder RateLimitRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromContext(r.Context())

			allowed, _, retryAfter := rl.Allow(endpoint, token, limits)
			if !allowed {
				if recorder != nil {
					recorder.RecordRateLimitHit(endpoint)
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apperror.WriteJSON(w, RequestIDFromContext(r.Context()),
					apperror.RateLimitExceeded(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
