package simulation

import (
	"errors"
	"fmt"
)

// ErrMissingInput is returned when the engine is asked to run without a
// series or a battery.
var ErrMissingInput = errors.New("missing simulation input")

// MissingInputError names the absent input.
type MissingInputError struct {
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingInput, e.Input)
}

// Unwrap allows errors.Is(err, ErrMissingInput).
func (e *MissingInputError) Unwrap() error { return ErrMissingInput }
