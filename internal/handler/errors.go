package handler

import "errors"

// ErrLocation marks a handler location that could not be enumerated.
var ErrLocation = errors.New("handler location unreadable")

// LocationError reports which location failed and why.
type LocationError struct {
	Location string
	Err      error
}

func (e *LocationError) Error() string {
	return "handler location " + e.Location + ": " + e.Err.Error()
}

func (e *LocationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLocation) match any LocationError.
func (e *LocationError) Is(target error) bool { return target == ErrLocation }

// manifestError is a per-file validation failure; never fatal.
type manifestError struct {
	path   string
	reason string
}

func (e manifestError) Error() string { return e.path + ": " + e.reason }
