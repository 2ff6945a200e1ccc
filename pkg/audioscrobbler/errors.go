package audioscrobbler

import (
	"errors"
	"fmt"
)

// Error represents a protocol-level API error.
//
// The Error type provides structured error information including
// the numeric error code carried on the service's <error> element.
// It implements error, and provides additional methods for retry
// logic.
type Error struct {
	Code    int    // Service error code
	Message string // Error message from the service
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("audioscrobbler: error %d: %s", e.Code, e.Message)
}

// Is checks if the target error is a protocol error with the same code.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Temporary returns true if the error is temporary and the request
// should be retried.
//
// The following error codes are considered temporary:
//   - 11: Service Offline - temporarily unavailable
//   - 16: Service Temporarily Unavailable
//
// Network errors and timeouts should also be considered temporary
// but are not represented by this type.
func (e *Error) Temporary() bool {
	switch e.Code {
	case ErrCodeServiceOffline:
		return true
	case ErrCodeTempUnavailable:
		return true
	default:
		return false
	}
}

// Common service error codes.
const (
	ErrCodeInvalidService       = 2
	ErrCodeInvalidMethod        = 3
	ErrCodeAuthenticationFailed = 4
	ErrCodeInvalidFormat        = 5
	ErrCodeInvalidParameters    = 6
	ErrCodeInvalidResourceSpec  = 7
	ErrCodeOperationFailed      = 8
	ErrCodeInvalidSessionKey    = 9
	ErrCodeInvalidAPIKey        = 10
	ErrCodeServiceOffline       = 11
	ErrCodeSubscribersOnly      = 12
	ErrCodeInvalidSignature     = 13
	ErrCodeUnauthorizedToken    = 14
	ErrCodeExpiredToken         = 15
	ErrCodeTempUnavailable      = 16
	ErrCodeRateLimitExceeded    = 29
)

// Predefined errors for common cases.
var (
	// ErrNoSessionKey is returned when an operation requires authentication
	// but no session key has been set.
	ErrNoSessionKey = fmt.Errorf("audioscrobbler: session key required")

	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = fmt.Errorf("audioscrobbler: invalid configuration")
)

// IsBadSession reports whether err is the service's "invalid session key"
// error, meaning the session has expired and should be renewed exactly
// once before the call is retried.
func IsBadSession(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == ErrCodeInvalidSessionKey
	}
	return false
}

// IsBadCredentials reports whether err is the service's authentication
// failure, i.e. the username/password pair was rejected. This is
// surfaced to the user and never retried automatically.
func IsBadCredentials(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == ErrCodeAuthenticationFailed
	}
	return false
}

// errorCode extracts the numeric service error code from err, or 0 if
// err is not a protocol error (network failure, malformed envelope).
func errorCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
