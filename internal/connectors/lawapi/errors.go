package lawapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// Registry-specific errors.
var (
	// ErrMissingAPIKey indicates no OC key was configured.
	ErrMissingAPIKey = errors.New("lawapi: api key is required (set LAW_API_KEY or api.key)")

	// ErrNoFrame indicates a document page carried neither a content frame nor a body.
	ErrNoFrame = errors.New("lawapi: document page has no content frame")

	// ErrErrorMarker indicates the response body is an upstream "no data" notice.
	ErrErrorMarker = errors.New("lawapi: response carries an error marker")

	// ErrMissingIdentity indicates the response lacks the field that makes it usable.
	ErrMissingIdentity = errors.New("lawapi: identity field is empty")
)

// APIError is an error payload returned by the registry with HTTP 200.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lawapi: upstream result %s", e.Code)
	}
	return fmt.Sprintf("lawapi: upstream result %s: %s", e.Code, e.Message)
}

// Upstream result code groups.
const (
	resultAuth      = "auth"
	resultParameter = "parameter"
	resultQuota     = "quota"
	resultTransient = "transient"
)

// group maps a result code onto how the fetcher treats it.
func (e *APIError) group() string {
	switch e.Code {
	case "01", "02", "09":
		return resultAuth
	case "10", "11":
		return resultParameter
	case "20":
		return resultQuota
	default:
		return resultTransient
	}
}

// IsRateLimited checks if the error indicates exhausted throttling retries.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}

// IsUnauthorized checks if the error indicates a rejected API key.
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}

// IsTimeout checks if the error indicates exhausted timeout retries.
func IsTimeout(err error) bool {
	return errors.Is(err, domain.ErrTimeout)
}

// IsQuotaExceeded checks if the daily ceiling was reached.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, domain.ErrDailyQuotaExceeded)
}

// IsFatal reports errors that must stop a run rather than skip an item.
// Deadline expiry of the caller's context is checked by the caller, since a
// per-request timeout is retryable and may wrap the same sentinel.
func IsFatal(err error) bool {
	return IsQuotaExceeded(err) || IsUnauthorized(err) || errors.Is(err, context.Canceled)
}
