package synth

import "errors"

var (
	// ErrDomain is returned when a value violates a mathematical or range
	// constraint, e.g. an exponential ramp starting from zero.
	ErrDomain = errors.New("domain constraint violated")

	// ErrNotFound is returned when a named instrument or pitch cannot be
	// resolved.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned if a method cannot be executed in the
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrConfiguration is returned for invalid construction-time
	// configuration.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrSingleUseReused is returned when a single-use object is used more
	// than once.
	ErrSingleUseReused = errors.New("single-use object reused")
)
