// Package errors defines the error taxonomy for the FAT12 driver. Every
// failure mode is one of the sentinels in errno.go, optionally decorated
// with a message or a wrapped cause without losing its identity under
// errors.Is.
package errors

import "fmt"

// FatError is a driver error: it carries a sentinel identity plus optional
// human-readable detail.
type FatError interface {
	error
	WithMessage(message string) FatError
	WrapError(err error) FatError
	Unwrap() error
}

// detailedError decorates a Sentinel with extra context.
type detailedError struct {
	sentinel Sentinel
	message  string
	cause    error
}

func (e detailedError) Error() string {
	if e.message == "" {
		return e.sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", e.sentinel.Error(), e.message)
}

func (e detailedError) WithMessage(message string) FatError {
	return detailedError{sentinel: e.sentinel, message: message, cause: e.cause}
}

func (e detailedError) WrapError(err error) FatError {
	return detailedError{sentinel: e.sentinel, message: err.Error(), cause: err}
}

// Unwrap returns the cause supplied via WrapError, or the sentinel when
// there is none.
func (e detailedError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.sentinel
}

// Is matches the sentinel, so errors.Is(err, ErrIOFailed) holds even when
// Unwrap leads to a wrapped cause instead.
func (e detailedError) Is(target error) bool {
	return target == e.sentinel
}
