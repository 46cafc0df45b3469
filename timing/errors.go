package timing

import "errors"

// Contract violations. The simulator panics with an error wrapping one of
// these, so callers that recover can test for them with errors.Is.
var (
	// ErrInvalidTime reports an attempt to schedule into the past.
	ErrInvalidTime = errors.New("timing: invalid time")

	// ErrTimeRegression reports the clock being asked to move backwards.
	ErrTimeRegression = errors.New("timing: time regression")

	// ErrAlreadyInvoked reports a second invocation of the same event.
	ErrAlreadyInvoked = errors.New("timing: event already invoked")

	// ErrInvalidState reports an operation not allowed in the simulator's
	// current state.
	ErrInvalidState = errors.New("timing: invalid simulator state")
)
