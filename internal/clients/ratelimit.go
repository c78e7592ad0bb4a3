package clients

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// LimiterRegistry holds a token bucket per provider. Providers without a
// registered limit pass through unthrottled.
type LimiterRegistry struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewLimiterRegistry creates an empty limiter registry
func NewLimiterRegistry(log zerolog.Logger) *LimiterRegistry {
	return &LimiterRegistry{
		limiters: make(map[string]*rate.Limiter),
		log:      log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Register installs a token bucket for the provider with the given
// requests-per-second rate and burst size. Re-registering replaces the
// existing bucket.
func (r *LimiterRegistry) Register(provider string, rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
	r.log.Debug().Str("provider", provider).Float64("rps", rps).Int("burst", burst).Msg("Registered rate limit")
}

// Wait blocks until the provider's bucket grants a token or the context
// is cancelled. Unregistered providers return immediately.
func (r *LimiterRegistry) Wait(ctx context.Context, provider string) error {
	r.mu.RLock()
	limiter, ok := r.limiters[provider]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}

// Allow reports whether a token is available right now without blocking.
// Unregistered providers always allow.
func (r *LimiterRegistry) Allow(provider string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[provider]
	r.mu.RUnlock()

	if !ok {
		return true
	}
	return limiter.Allow()
}
