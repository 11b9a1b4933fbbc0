package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig defines rate limiting configuration: at most Max requests
// per Window from one client address.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// DefaultRateLimitConfig returns 100 requests per 15 minutes.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Max:    100,
		Window: 15 * time.Minute,
	}
}

// window counts the requests of one client since start.
type window struct {
	start time.Time
	count int
}

// RateLimiter counts requests per client address in fixed windows. A
// client's window opens with its first request and every request inside it
// counts, rejected ones included.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*window
	lastSweep time.Time
}

// NewRateLimiter creates a limiter; an invalid config falls back to the
// default.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

// take counts one request from key.
func (l *RateLimiter) take(key string) (allowed bool, remaining int, reset time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.cfg.Window {
		for k, w := range l.clients {
			if now.Sub(w.start) >= l.cfg.Window {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		w = &window{start: now}
		l.clients[key] = w
	}
	w.count++

	remaining = l.cfg.Max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= l.cfg.Max, remaining, w.start.Add(l.cfg.Window)
}

// Handler returns the middleware. Every handler returned by one limiter
// shares its counters.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	limit := strconv.Itoa(l.cfg.Max)

	return func(c *gin.Context) {
		allowed, remaining, reset := l.take(c.ClientIP())

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retry := int(reset.Sub(l.now()).Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, please try again later.",
			})
			return
		}

		c.Next()
	}
}

// RateLimit creates a per-IP rate limiting middleware.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return NewRateLimiter(cfg).Handler()
}
