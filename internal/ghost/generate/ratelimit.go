package generate

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultRateLimit is the number of generation calls allowed per session
	// per window when no explicit limit is configured.
	DefaultRateLimit = 20

	defaultRateLimitWindow = time.Minute
)

// RateLimiter enforces a per-session sliding-window limit.
//
// It keeps the call timestamps for each session inside the current window
// and prunes stale entries on every Allow, so memory stays bounded to
// O(limit) per active session. Safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
	counters map[string][]time.Time
}

// NewRateLimiter returns a limiter allowing limit calls per window.
// Non-positive values select DefaultRateLimit and one minute.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string][]time.Time),
	}
}

// Allow records a call for key and reports whether it is within quota.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	existing := r.counters[key]
	valid := existing[:0]
	for _, t := range existing {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= r.limit {
		r.counters[key] = valid
		return false
	}
	r.counters[key] = append(valid, now)
	return true
}

type sessionKey struct{}

// WithSession tags ctx with the session id used for rate limiting.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

func sessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

type limited struct {
	next    Generator
	limiter *RateLimiter
}

// Limited wraps g so each session (see WithSession) is rate limited.
func Limited(g Generator, limiter *RateLimiter) Generator {
	return &limited{next: g, limiter: limiter}
}

func (l *limited) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if !l.limiter.Allow(sessionFrom(ctx)) {
		return "", ErrRateLimit
	}
	return l.next.Generate(ctx, prompt, opts)
}
