package models

import "fmt"

// CoreError is the concrete error type carrying an ErrorKind, an
// operation name, and a human-readable message.
type CoreError struct {
	ErrKind ErrorKind
	Op      string
	Message string
	Backoff int // suggested backoff seconds, for ErrProviderRateLimited
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.ErrKind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.ErrKind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// Kind satisfies a common `Kind() ErrorKind` interface so callers can
// errors.As to the taxonomy instead of matching sentinel strings.
func (e *CoreError) Kind() ErrorKind { return e.ErrKind }

func NewError(kind ErrorKind, op, message string) *CoreError {
	return &CoreError{ErrKind: kind, Op: op, Message: message}
}

func WrapError(kind ErrorKind, op, message string, cause error) *CoreError {
	return &CoreError{ErrKind: kind, Op: op, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind of err if it (or something it wraps)
// is a *CoreError; otherwise returns ErrProviderPermanent as the safe
// non-retryable default.
func KindOf(err error) ErrorKind {
	var k interface{ Kind() ErrorKind }
	if asKinder(err, &k) {
		return k.Kind()
	}
	return ErrProviderPermanent
}

func asKinder(err error, target *interface{ Kind() ErrorKind }) bool {
	for err != nil {
		if k, ok := err.(interface{ Kind() ErrorKind }); ok {
			*target = k
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
