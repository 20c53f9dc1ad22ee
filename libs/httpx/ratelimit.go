package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// RateLimiter is a fixed-window, per-process limiter used when Redis is not configured.
type RateLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: map[string]*bucket{},
	}
}

func (rl *RateLimiter) Middleware(key KeyFunc) Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(key(r)) {
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b := rl.buckets[key]
	if b == nil || !now.Before(b.resetAt) {
		rl.sweep(now)
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// sweep drops expired buckets so idle clients do not accumulate.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, k)
		}
	}
}

func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
