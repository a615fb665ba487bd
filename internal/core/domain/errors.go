package domain

import (
	"context"
	"errors"
)

// Domain errors represent pipeline failures that callers act on.
// Adapters wrap their own errors with one of these so callers can use errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input supplied by the caller.
	// Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable indicates the embedding or generation capability
	// could not be reached or timed out. Retryable by the caller.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrIndexNotReady indicates the vector collection does not exist yet.
	// The orchestrator handles it once by creating the collection.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrDimensionMismatch indicates a vector length disagrees with the
	// collection's configured dimension. This is a configuration error.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrScopeViolation indicates a search result carried a scope other than
	// the requested one. The result is dropped and the event logged.
	ErrScopeViolation = errors.New("scope violation")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector backend is unreachable or
	// returned a transient failure.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrConfigNotFound indicates a required configuration key is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// ErrorKind is the structured classification surfaced to callers alongside
// the error message.
type ErrorKind string

const (
	// KindInput is a caller error.
	KindInput ErrorKind = "input_error"
	// KindUpstream is an unreachable embedding, generation or index backend.
	KindUpstream ErrorKind = "upstream_unavailable"
	// KindIndexNotReady is a missing collection that could not be initialised.
	KindIndexNotReady ErrorKind = "index_not_ready"
	// KindDimensionMismatch is a vector length configuration error.
	KindDimensionMismatch ErrorKind = "dimension_mismatch"
	// KindScopeViolation is a cross-scope result.
	KindScopeViolation ErrorKind = "scope_violation"
	// KindNotFound is a missing entity.
	KindNotFound ErrorKind = "not_found"
	// KindCanceled is a caller cancellation or deadline.
	KindCanceled ErrorKind = "canceled"
	// KindInternal is anything unclassified.
	KindInternal ErrorKind = "internal"
)

// KindOf classifies err. More specific kinds win when an error wraps several
// sentinels.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInput
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrScopeViolation):
		return KindScopeViolation
	case errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrVectorIndexUnavailable),
		errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrLLMUnavailable):
		return KindUpstream
	case errors.Is(err, ErrIndexNotReady):
		return KindIndexNotReady
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConfigNotFound):
		return KindNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindUpstream
}
