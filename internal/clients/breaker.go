package clients

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/mgalanis/conveyor/internal/domain"
)

// BreakerRegistry holds one circuit breaker per provider. A breaker trips
// after consecutive transport failures and keeps the provider out of
// rotation until the cool-down expires, so a dead upstream fails fast
// instead of burning the per-call timeout on every symbol.
type BreakerRegistry struct {
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
	log      zerolog.Logger
}

// BreakerState describes one provider's breaker for status reporting
type BreakerState struct {
	Provider            string `json:"provider"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// NewBreakerRegistry creates an empty breaker registry
func NewBreakerRegistry(log zerolog.Logger) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		log:      log.With().Str("component", "circuit_breaker").Logger(),
	}
}

// Register installs a breaker for the provider. The breaker opens after
// five consecutive failures and probes again after one minute.
// Unsupported-operation and empty-result errors do not count as failures;
// they say nothing about provider health.
func (r *BreakerRegistry) Register(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrUnsupported) ||
				errors.Is(err, domain.ErrNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
	r.breakers[provider] = gobreaker.NewCircuitBreaker(settings)
}

// Execute runs fn through the provider's breaker. An open breaker is
// reported as domain.ErrProviderUnavailable so fallback chains move on.
// Unregistered providers run fn directly.
func (r *BreakerRegistry) Execute(provider string, fn func() error) error {
	r.mu.RLock()
	breaker, ok := r.breakers[provider]
	r.mu.RUnlock()

	if !ok {
		return fn()
	}

	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%s circuit open: %w", provider, domain.ErrProviderUnavailable)
		}
		return err
	}
	return nil
}

// States returns a snapshot of every registered breaker, sorted by the
// caller if ordering matters.
func (r *BreakerRegistry) States() []BreakerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]BreakerState, 0, len(r.breakers))
	for name, breaker := range r.breakers {
		counts := breaker.Counts()
		states = append(states, BreakerState{
			Provider:            name,
			State:               breaker.State().String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	return states
}
