package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync run or rebuild already holds the lock.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrRunAborted indicates a run stopped before reaching the natural end.
	ErrRunAborted = errors.New("run aborted")

	// Upstream Errors.

	// ErrRateLimited indicates the upstream throttled requests and retries were exhausted.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates requests timed out and retries were exhausted.
	ErrTimeout = errors.New("upstream timeout")

	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUpstream indicates an upstream error response.
	ErrUpstream = errors.New("upstream error")

	// ErrDailyQuotaExceeded indicates the daily call ceiling was reached.
	// It is fatal for the run and never retried.
	ErrDailyQuotaExceeded = errors.New("daily request quota exceeded")

	// ErrMalformedResponse indicates a payload could not be interpreted.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrUnrecoverable indicates both the structured and the fallback tier failed.
	ErrUnrecoverable = errors.New("unrecoverable document")

	// Validation Errors.

	// ErrMissingRequiredField indicates normalisation found no value for a required field.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidDateFormat indicates a date in an unsupported shape.
	ErrInvalidDateFormat = errors.New("invalid date format")

	// Index Errors.

	// ErrEmbeddingUnavailable indicates the embedding service is not configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// FailureKind is the typed outcome of an exhausted or rejected fetch.
type FailureKind string

const (
	FailureRateLimited  FailureKind = "RateLimited"
	FailureTimeout      FailureKind = "Timeout"
	FailureUnauthorized FailureKind = "Unauthorized"
	FailureUpstream     FailureKind = "UpstreamError"
)

// FetchFailure is returned by the fetcher instead of raising transport errors.
// The caller decides whether to skip, abort or escalate.
type FetchFailure struct {
	Kind FailureKind

	// Code is the HTTP status, or 0 when no response was received.
	Code int

	// Attempts is the number of requests made, including retries.
	Attempts int

	Err error
}

func (f *FetchFailure) Error() string {
	msg := string(f.Kind)
	if f.Kind == FailureUpstream && f.Code != 0 {
		msg = fmt.Sprintf("%s{%d}", f.Kind, f.Code)
	}
	if f.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, f.Attempts)
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *FetchFailure) Unwrap() []error {
	var sentinel error
	switch f.Kind {
	case FailureRateLimited:
		sentinel = ErrRateLimited
	case FailureTimeout:
		sentinel = ErrTimeout
	case FailureUnauthorized:
		sentinel = ErrUnauthorized
	default:
		sentinel = ErrUpstream
	}
	if f.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, f.Err}
}

// Transient reports whether the failure came from a retryable condition.
func (f *FetchFailure) Transient() bool {
	switch f.Kind {
	case FailureRateLimited, FailureTimeout:
		return true
	case FailureUpstream:
		// Code 0 means no response arrived (connection reset, refused).
		return f.Code == 0 || f.Code >= 500
	default:
		return false
	}
}

// UnrecoverableError reports that neither response tier produced a usable document.
type UnrecoverableError struct {
	Kind         DocumentKind
	SerialNumber string
	Cause        error
}

func (e *UnrecoverableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unrecoverable %s %s: %v", e.Kind, e.SerialNumber, e.Cause)
	}
	return fmt.Sprintf("unrecoverable %s %s", e.Kind, e.SerialNumber)
}

func (e *UnrecoverableError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUnrecoverable}
	}
	return []error{ErrUnrecoverable, e.Cause}
}

// MissingFieldError names the first required field found absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingRequiredField }

// InvalidDateError carries the raw value that failed to parse.
type InvalidDateError struct {
	Raw string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date format: %q", e.Raw)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDateFormat }

// IndexError wraps an embedding or vector-index failure for one record.
// The record itself may already be persisted.
type IndexError struct {
	Key RecordKey
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Key, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// ErrorClass is the propagation category of a failure.
type ErrorClass string

const (
	ClassTransientUpstream ErrorClass = "TransientUpstream"
	ClassUpstreamRejected  ErrorClass = "UpstreamRejected"
	ClassMalformedResponse ErrorClass = "MalformedResponse"
	ClassValidationFailure ErrorClass = "ValidationFailure"
	ClassIndexFailure      ErrorClass = "IndexFailure"
	ClassUnknown           ErrorClass = "Unknown"
)

// Classify maps an error onto the propagation taxonomy.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}

	var idx *IndexError
	if errors.As(err, &idx) ||
		errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrVectorIndexUnavailable) ||
		errors.Is(err, ErrDimensionMismatch) {
		return ClassIndexFailure
	}

	if errors.Is(err, ErrUnrecoverable) || errors.Is(err, ErrMalformedResponse) {
		return ClassMalformedResponse
	}

	if errors.Is(err, ErrMissingRequiredField) ||
		errors.Is(err, ErrInvalidDateFormat) ||
		errors.Is(err, ErrInvalidInput) {
		return ClassValidationFailure
	}

	var ff *FetchFailure
	if errors.As(err, &ff) {
		if ff.Transient() {
			return ClassTransientUpstream
		}
		return ClassUpstreamRejected
	}

	switch {
	case errors.Is(err, ErrDailyQuotaExceeded), errors.Is(err, ErrUnauthorized):
		return ClassUpstreamRejected
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrTimeout):
		return ClassTransientUpstream
	}

	return ClassUnknown
}
