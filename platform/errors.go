package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind buckets platform API failures into the categories the scheduler
// cares about. Everything that isn't auth, throttling, or a rejected payload
// is treated as transient and retried.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindValidation  ErrorKind = "validation"
	KindTransient   ErrorKind = "transient"
)

// Error is a typed failure from the platform API.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
	Wrapped    error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error (%s) %d %s: %s", e.Kind, e.StatusCode, e.Code, e.Message)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("platform error (%s): %s", e.Kind, e.Wrapped)
	}
	return fmt.Sprintf("platform error (%s) %d", e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 400 && code < 500:
		return KindValidation
	default:
		return KindTransient
	}
}

// Classify maps any error from a platform call to an ErrorKind. Timeouts,
// cancellations, and network failures are transient.
func Classify(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTransient
	}
	return KindTransient
}

func IsAuth(err error) bool {
	return Classify(err) == KindAuth
}

func IsRateLimited(err error) bool {
	return Classify(err) == KindRateLimited
}

func IsValidation(err error) bool {
	return Classify(err) == KindValidation
}

func IsTransient(err error) bool {
	return Classify(err) == KindTransient
}
