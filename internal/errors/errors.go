// Package errors defines the error taxonomy shared by the service and API
// layers. Handlers pick HTTP status codes with errors.Is/As against these.
package errors

import (
	"errors"
	"fmt"
)

// ErrLinkNotFound is returned when a link cannot be located, and also when a
// link exists but is paused: the public resolver never distinguishes the two.
var ErrLinkNotFound = errors.New("link not found")

// ErrAliasTaken is returned when a custom alias already belongs to another
// link. The caller may retry with a different alias.
var ErrAliasTaken = errors.New("alias already exists")

// ErrAliasGenerationFailed is returned when the random generator exhausted its
// retry budget without finding a free alias.
var ErrAliasGenerationFailed = errors.New("failed to generate unique alias after maximum retries")

// ErrForbidden is returned when a requester who is not the owner and not an
// admin tries to modify a link.
var ErrForbidden = errors.New("access denied")

// ErrInvalidURL is returned when a target URL is missing a scheme or is
// otherwise not an absolute URL.
var ErrInvalidURL = errors.New("invalid URL format")

// ErrRateLimited is returned when the rate limiter denies admission.
// Always safe to retry later.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrNotAuthenticated is returned when no identity could be established for
// a request that requires one.
var ErrNotAuthenticated = errors.New("not authenticated")

// ValidationError reports why a caller-supplied alias was rejected. The
// Reason is user-actionable and specific to the failure, never generic.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrClickRecordingFailed is returned when an asynchronous click write fails.
type ErrClickRecordingFailed struct {
	LinkID string
	Reason string
}

func (e ErrClickRecordingFailed) Error() string {
	return fmt.Sprintf("failed to record click for link %s: %s", e.LinkID, e.Reason)
}
