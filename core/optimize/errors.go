package optimize

import (
	"errors"
	"fmt"
)

// ErrInfeasiblePowerLimit is returned when no limit in the search bracket
// satisfies the feasibility predicate.
var ErrInfeasiblePowerLimit = errors.New("infeasible power limit")

// InfeasibleError carries the failing bracket. Block is 0 for a flat limit.
type InfeasibleError struct {
	Block int
	Lower float64
	Upper float64
	Err   error
}

func (e *InfeasibleError) Error() string {
	scope := "flat limit"
	if e.Block > 0 {
		scope = fmt.Sprintf("block %d", e.Block)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v in [%.2f, %.2f]: %v", scope, ErrInfeasiblePowerLimit, e.Lower, e.Upper, e.Err)
	}
	return fmt.Sprintf("%s: %v in [%.2f, %.2f]", scope, ErrInfeasiblePowerLimit, e.Lower, e.Upper)
}

// Unwrap exposes both ErrInfeasiblePowerLimit and the underlying cause.
func (e *InfeasibleError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInfeasiblePowerLimit}
	}
	return []error{ErrInfeasiblePowerLimit, e.Err}
}
