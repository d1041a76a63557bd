package markov

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a model is built from an unusable source:
	// both or neither of a raw sequence and a file path, no training records, or
	// a malformed precomputed table.
	ErrInvalidInput = errors.New("invalid model input")

	// ErrUndefinedTransition is returned when a query contains a symbol outside
	// the alphabet or a predecessor whose row was never observed.
	ErrUndefinedTransition = errors.New("undefined transition")
)

// TransitionError describes the first position of a query that could not be
// scored. It matches ErrUndefinedTransition with errors.Is.
type TransitionError struct {
	Offset int  // index of the offending symbol in the query
	Prev   byte // predecessor symbol, 0 when Offset is 0
	Next   byte
}

func (e *TransitionError) Error() string {
	if _, ok := Index(e.Next); !ok {
		return fmt.Sprintf("undefined transition at offset %d: symbol %q is not in %s", e.Offset, e.Next, Alphabet)
	}
	return fmt.Sprintf("undefined transition at offset %d: no transitions observed from %q", e.Offset, e.Prev)
}

func (e *TransitionError) Unwrap() error {
	return ErrUndefinedTransition
}
