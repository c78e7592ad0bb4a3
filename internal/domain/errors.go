package domain

import "errors"

// Sentinel errors shared across the ingestion and computation layers.
// Provider adapters wrap these so callers can branch with errors.Is
// without knowing which provider produced the failure.
var (
	// ErrProviderUnavailable indicates a transport-level failure (timeout,
	// connection refused, 5xx) from a data provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRateLimited indicates the provider rejected the call due to
	// request budget exhaustion or throttling.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrMalformedResponse indicates the provider answered but the payload
	// could not be parsed into domain models.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrAllProvidersFailed indicates every provider in a fallback chain
	// failed or declined the request.
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrNoData indicates a provider answered successfully but returned
	// zero rows for the requested symbol and range.
	ErrNoData = errors.New("no data returned")

	// ErrStaleData indicates stored data exists but is older than the
	// configured freshness horizon.
	ErrStaleData = errors.New("data is stale")

	// ErrUnsupported indicates a provider does not implement the requested
	// operation. Fallback chains skip to the next provider on this error.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrUnsupportedFrequency indicates an attempt to persist bars at a
	// frequency the storage layer does not accept.
	ErrUnsupportedFrequency = errors.New("unsupported bar frequency")
)
