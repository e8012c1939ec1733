package supervisor

import (
	"errors"
	"fmt"
)

// ErrLogin marks a rejected platform login. The process does not retry.
var ErrLogin = errors.New("platform login failed")

// FatalError is a fault the process cannot continue after: a panic in a
// supervised task or in the supervisor, or a failed HTTP listener.
type FatalError struct {
	Task string
	// Err is set for failures returned as errors.
	Err error
	// Value is the recovered panic value, if any.
	Value any
	Stack []byte
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("fatal: %s panicked: %v", e.Task, e.Value)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is or wraps a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
