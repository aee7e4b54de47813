package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/Agentopians/WeAi/internal/metric"
)

// RateLimiter implements token bucket rate limiting by IP
type RateLimiter struct {
	ips map[string]*ipLimiter
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter. Idle entries are cleaned up until
// ctx is done.
// r: requests per second
// b: burst size
func NewRateLimiter(ctx context.Context, r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		ips: make(map[string]*ipLimiter),
		r:   r,
		b:   b,
	}

	go rl.cleanupLoop(ctx)
	return rl
}

// getRealIP extracts client IP from request headers
func (rl *RateLimiter) getRealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		if i := strings.Index(forwardedFor, ","); i != -1 {
			return strings.TrimSpace(forwardedFor[:i])
		}
		return strings.TrimSpace(forwardedFor)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// getLimiter returns rate limiter for IP
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.ips[ip]
	if !exists {
		v = &ipLimiter{
			limiter:  rate.NewLimiter(rl.r, rl.b),
			lastSeen: time.Now(),
		}
		rl.ips[ip] = v
	} else {
		v.lastSeen = time.Now()
	}

	return v.limiter
}

// cleanupLoop runs cleanup every hour
func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup(time.Hour)
		}
	}
}

// cleanup removes IPs not seen for idle
func (rl *RateLimiter) cleanup(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.ips {
		if time.Since(v.lastSeen) > idle {
			delete(rl.ips, ip)
		}
	}
}

// RateLimit middleware enforces rate limits by IP
func (rl *RateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.getRealIP(r)
		limiter := rl.getLimiter(ip)

		if !limiter.Allow() {
			metric.RecordError("rate_limited")
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Metrics records request counts and latency per route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		metric.RecordRequest(r.Method, endpoint)
		metric.RecordRequestDuration(r.Method, endpoint, time.Since(start))
	})
}
