package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/festival/pkg/httputil"
	"github.com/platinummonkey/festival/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
}

// DefaultLoginRateLimitConfig limits credential endpoints per client IP
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 20,
		WindowDuration:    time.Minute,
	}
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() *RateLimitConfig
	// RetryAfter estimates how long a rejected key must wait
	RetryAfter(ctx context.Context, key string) time.Duration
}

// RateLimiter is an in-process token bucket limiter
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Config returns the limiter configuration
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow takes a token from key's bucket, refilling at RequestsPerWindow per WindowDuration
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	capacity := float64(rl.config.RequestsPerWindow)

	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: capacity, lastUpdate: now}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastUpdate)
	if elapsed > 0 {
		b.tokens += elapsed.Seconds() * capacity / rl.config.WindowDuration.Seconds()
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// RetryAfter returns the time until key's bucket holds a whole token again
func (rl *RateLimiter) RetryAfter(ctx context.Context, key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || b.tokens >= 1 {
		return 0
	}
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
	return time.Duration((1 - b.tokens) * float64(perToken))
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware throttles requests matching its rules per client IP
type RateLimitMiddleware struct {
	limiter Limiter
	rules   []Rule
	logger  *observability.Logger
}

// NewRateLimitMiddleware creates a limiter applied only to requests matching rules
func NewRateLimitMiddleware(limiter Limiter, rules []Rule, logger *observability.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RateLimitMiddleware{limiter: limiter, rules: rules, logger: logger}
}

// CredentialEndpoints are the routes throttled against password guessing
func CredentialEndpoints() []Rule {
	return []Rule{
		{Methods: []string{http.MethodPost}, Patterns: []string{"/api/auth/login", "/api/auth/register", "/api/users/register"}},
	}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.applies(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := "ip:" + httputil.ClientIP(r)
		allowed, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			// Fail open: a broken limiter backend must not lock users out
			m.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		cfg := m.limiter.Config()
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RequestsPerWindow))
		if !allowed {
			wait := m.limiter.RetryAfter(r.Context(), key)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int64(math.Ceil(wait.Seconds()))))
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) applies(r *http.Request) bool {
	for _, rule := range m.rules {
		if rule.Matches(r.Method, r.URL.Path) {
			return true
		}
	}
	return false
}
