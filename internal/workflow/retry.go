package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mgalanis/conveyor/internal/domain"
)

// RetryPolicy controls how stage failures are retried before a symbol
// lands in the dead letter queue. MaxAttempts counts retries after the
// first try, so a symbol is attempted MaxAttempts+1 times in total.
type RetryPolicy struct {
	InitialDelay time.Duration
	Factor       float64
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultRetryPolicy returns the production policy: three retries at
// 60s, 120s and 240s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 60 * time.Second,
		Factor:       2,
		MaxDelay:     time.Hour,
		MaxAttempts:  3,
	}
}

// Delay returns the backoff before the given retry (0-based), capped
// at MaxDelay.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	delay := p.InitialDelay
	for i := 0; i < retry; i++ {
		delay = time.Duration(float64(delay) * p.Factor)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// ShouldRetry reports whether another attempt is warranted after the
// given number of completed retries.
func (p RetryPolicy) ShouldRetry(err error, retries int) bool {
	if retries >= p.MaxAttempts {
		return false
	}
	return IsRetryable(err)
}

// IsRetryable classifies an error as transient or terminal. Terminal
// errors (empty or garbled provider answers, unsupported operations,
// an operator cancel) go straight to the dead letter queue. Anything
// else, provider outages and rate limits included, is assumed
// transient; the attempt cap bounds the damage when that assumption
// is wrong.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrNoData),
		errors.Is(err, domain.ErrMalformedResponse),
		errors.Is(err, domain.ErrUnsupported),
		errors.Is(err, domain.ErrUnsupportedFrequency),
		errors.Is(err, context.Canceled):
		return false
	}

	return true
}

// Sleeper abstracts retry waits so tests do not spend real time.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type contextSleeper struct{}

// NewSleeper returns a Sleeper backed by a real timer that aborts
// early when the context is cancelled.
func NewSleeper() Sleeper {
	return contextSleeper{}
}

func (contextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
