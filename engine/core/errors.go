package core

import (
	"errors"
	"fmt"
)

var (
	ErrTessOverflow         = errors.New("tessellation buffer overflow")
	ErrCommandQueueOverflow = errors.New("render command queue overflow")
	ErrMissingCapability    = errors.New("required device capability missing")
	ErrNoWorld              = errors.New("no world loaded")
	ErrShaderInvalid        = errors.New("invalid shader")
	ErrTooManyShaders       = errors.New("shader registry full")
	ErrNotInitialized       = errors.New("renderer not initialized")
	ErrUnknown              = errors.New("unknown")
)

// FatalError marks a structural invariant violation that the rendering core
// cannot recover from locally. It always wraps one of the sentinels above.
type FatalError struct {
	Err    error
	Detail string
}

func (e *FatalError) Error() string {
	if e.Detail == "" {
		return "fatal: " + e.Err.Error()
	}
	return fmt.Sprintf("fatal: %s: %s", e.Err.Error(), e.Detail)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal builds a FatalError around err and logs it.
func Fatal(err error, format string, args ...interface{}) error {
	fe := &FatalError{Err: err, Detail: fmt.Sprintf(format, args...)}
	LogError(fe.Error())
	return fe
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
