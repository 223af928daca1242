package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrContentTooShort indicates a document has too little text to embed.
	// Retrying does not help until the document itself changes.
	ErrContentTooShort = errors.New("content too short")

	// ErrConfiguration indicates missing credentials or connection details.
	ErrConfiguration = errors.New("configuration error")

	// ErrEmbeddingUnavailable indicates the embedding backend could not be reached.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrPermanent marks a failure that will not go away on retry,
	// such as an HTTP 404 from the page being fetched.
	ErrPermanent = errors.New("permanent failure")

	// ErrLeaseExpired is recorded on tasks reclaimed by the lease sweep.
	ErrLeaseExpired = errors.New("lease expired")

	// ErrTaskNotClaimable indicates a task is not in a state that allows the transition.
	ErrTaskNotClaimable = errors.New("task not in a claimable state")
)

// IsRetryable reports whether a task failing with err should be re-queued.
// Validation, not-found, too-short, configuration and permanent failures are
// final; everything else is treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrContentTooShort),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrPermanent):
		return false
	default:
		return true
	}
}
