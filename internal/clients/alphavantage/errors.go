package alphavantage

import (
	"fmt"

	"github.com/mgalanis/conveyor/internal/domain"
)

// ErrRateLimitExceeded indicates the free-tier daily request budget is
// spent or the API itself pushed back. Unwraps to domain.ErrRateLimited
// so fallback chains and breakers treat it uniformly.
type ErrRateLimitExceeded struct{}

func (ErrRateLimitExceeded) Error() string {
	return "alpha vantage daily rate limit exceeded"
}

func (ErrRateLimitExceeded) Unwrap() error { return domain.ErrRateLimited }

// ErrInvalidAPIKey indicates the configured key was rejected.
type ErrInvalidAPIKey struct{}

func (ErrInvalidAPIKey) Error() string {
	return "invalid alpha vantage api key"
}

func (ErrInvalidAPIKey) Unwrap() error { return domain.ErrProviderUnavailable }

// ErrSymbolNotFound indicates the API has no data for the symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol %s not found", e.Symbol)
}

func (ErrSymbolNotFound) Unwrap() error { return domain.ErrNoData }
