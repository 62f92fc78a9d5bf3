package backtest

import "errors"

// Validation failures detected at the start of a component's operation.
// Callers match them with errors.Is; none are retried internally.
var (
	// ErrEmptySeries is returned when a bar series or value trajectory is
	// empty.
	ErrEmptySeries = errors.New("empty series")

	// ErrLengthMismatch is returned when a signal series does not have the
	// same length as its bar series.
	ErrLengthMismatch = errors.New("signal/bar length mismatch")

	// ErrInvalidCapital is returned when initial capital is zero or negative.
	ErrInvalidCapital = errors.New("initial capital must be positive")

	// ErrNoValidPermutations is returned by PermutationTest when no shuffled
	// run produced a result.
	ErrNoValidPermutations = errors.New("no valid permutation results")
)
