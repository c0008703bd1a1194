package verify

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes remote lookup failures so callers can decide on
// retries without inspecting transport details.
type ErrorCategory string

const (
	// ErrorTimeout indicates the remote service took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the remote service returned a malformed response.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorOutage indicates the remote service is unavailable.
	ErrorOutage ErrorCategory = "outage"

	// ErrorRateLimited indicates too many requests.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected internal error.
	ErrorInternal ErrorCategory = "internal"
)

// LookupError wraps remote lookup failures with normalized categorization.
type LookupError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *LookupError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("remote lookup [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("remote lookup [%s]: %s", e.Category, e.Message)
}

func (e *LookupError) Unwrap() error {
	return e.Underlying
}

// NewLookupError creates a normalized lookup error. Timeouts, outages, and
// rate limits are worth retrying; malformed data is not.
func NewLookupError(category ErrorCategory, message string, underlying error) *LookupError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &LookupError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// ErrRunActive is returned when a verification run is requested for an
// assembly constituency that already has one in flight.
var ErrRunActive = errors.New("verification run already active for this constituency")

// ErrLookupUnavailable aborts a run after the remote lookup fails repeatedly,
// so a downed remote does not burn the pacing budget of a whole constituency.
var ErrLookupUnavailable = errors.New("remote lookup unavailable")
