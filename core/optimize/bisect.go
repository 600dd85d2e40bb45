package optimize

import (
	"errors"
	"math"
)

var (
	// ErrNoSignChange is returned when f(a) and f(b) have the same sign.
	ErrNoSignChange = errors.New("bisection bracket has no sign change")
	// ErrNotConverged is returned when the iteration budget is exhausted.
	ErrNotConverged = errors.New("bisection did not converge")
)

// Bisect finds a root of f in [a, b]. The iteration halves the step from a
// and keeps the half whose left end has the same sign as f(a); it stops when
// f(mid) is exactly zero or the step falls below xtol, and returns the last
// midpoint. f(a) and f(b) must differ in sign.
func Bisect(f func(float64) float64, a, b, xtol float64, maxIter int) (float64, error) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return math.NaN(), ErrNoSignChange
	}
	fa := f(a)
	fb := f(b)
	if fa*fb > 0 || math.IsNaN(fa*fb) {
		return math.NaN(), ErrNoSignChange
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	dm := b - a
	xa := a
	for i := 0; i < maxIter; i++ {
		dm *= .5
		xm := xa + dm
		fm := f(xm)
		if fm*fa >= 0 {
			xa = xm
		}
		if fm == 0 || math.Abs(dm) < xtol {
			return xm, nil
		}
	}
	return xa, ErrNotConverged
}

// Round1 rounds to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func sign(ok bool) float64 {
	if ok {
		return 1
	}
	return -1
}
