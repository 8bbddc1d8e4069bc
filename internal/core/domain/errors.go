package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidChunkConfig indicates chunking parameters are out of
	// bounds. This is fatal - the caller must fix the configuration,
	// it is never retried.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	// ErrEmbeddingUnavailable indicates the embedding provider chain
	// and the deterministic fallback both failed. Extremely rare.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrStoreUnavailable indicates the vector storage backend is
	// unreachable. Surfaced to the caller as a degraded-mode signal,
	// not retried internally.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrGenerationExhausted indicates every provider in the
	// generation chain failed, including terminal fallbacks.
	ErrGenerationExhausted = errors.New("generation provider chain exhausted")

	// ErrSafetyBlocked marks a query or prompt that was intentionally
	// refused. This is a normal outcome, not a failure, and must be
	// kept distinct from outages in logging and metrics.
	ErrSafetyBlocked = errors.New("blocked by safety guard")

	// ErrDimensionMismatch indicates a vector's dimension does not
	// match the store's configured dimension for the active model.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSourceUnavailable indicates the content store could not be
	// reached during a scan.
	ErrSourceUnavailable = errors.New("content source unavailable")

	// ErrProviderRejected indicates a provider refused the request
	// outright (bad credentials, unknown model, malformed input).
	// Retrying cannot succeed; callers skip straight to the next
	// provider in the chain.
	ErrProviderRejected = errors.New("provider rejected request")
)
