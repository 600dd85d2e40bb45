// Package optimize searches for the tightest grid power limits a battery
// can sustain over a load series.
//
// Every feasibility trial re-simulates the whole series from a full battery.
// The solvers own scratch batteries for that purpose and hard-reset them
// before each trial, so the caller's battery is never touched.
package optimize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/logger"
)

// Options tune the searches.
type Options struct {
	// Tolerance is the absolute bracket width at which bisection stops (kW).
	Tolerance float64
	// MaxIter bounds the number of bisection steps.
	MaxIter int
	// TieMargin is added to each block root before rounding, covering the
	// bisection tolerance so the rounded limit lands on the feasible side.
	TieMargin float64
	// HeadroomFraction is the usable share of capacity when solving block 1.
	HeadroomFraction float64
	// ConnectionLimitKW caps the upper end of the search bracket. Zero
	// means the series peak.
	ConnectionLimitKW float64
	Logger            logger.Logger
}

// DefaultOptions returns the standard search settings.
func DefaultOptions() Options {
	return Options{
		Tolerance:        0.05,
		MaxIter:          100,
		TieMargin:        0.1,
		HeadroomFraction: 0.95,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.HeadroomFraction <= 0 || o.HeadroomFraction > 1 {
		o.HeadroomFraction = d.HeadroomFraction
	}
	if o.Logger == nil {
		o.Logger = logger.Nop{}
	}
	return o
}

// limitTable maps a block id to its limit. Slot 0 holds the flat limit used
// for unlabelled samples.
type limitTable [6]float64

// PeakLimitSolver finds the minimal constant limit a battery can hold the
// load under for a whole series.
type PeakLimitSolver struct {
	opts    Options
	scratch *battery.State
	loads   []float64
	blocks  []int
	dt      float64
	limits  limitTable
}

// NewPeakLimitSolver prepares a solver for the given loads sampled every dt
// hours. The battery ratings are copied into a private scratch state.
func NewPeakLimitSolver(b *battery.State, loads []float64, dt float64, opts Options) *PeakLimitSolver {
	return &PeakLimitSolver{
		opts:    opts.normalized(),
		scratch: b.Clone(),
		loads:   loads,
		blocks:  make([]int, len(loads)),
		dt:      dt,
	}
}

// Feasible reports whether the battery, starting full, keeps every sample
// at or below limit.
func (s *PeakLimitSolver) Feasible(limit float64) bool {
	s.limits[0] = limit
	return scan(s.scratch, s.loads, s.blocks, &s.limits, s.dt)
}

// Bracket returns the search interval [peak - maxDischarge - 1, peak], with
// peak capped by the connection limit when one is configured.
func (s *PeakLimitSolver) Bracket() (float64, float64) {
	if len(s.loads) == 0 {
		return 0, 0
	}
	peak := floats.Max(s.loads)
	if s.opts.ConnectionLimitKW > 0 && s.opts.ConnectionLimitKW < peak {
		peak = s.opts.ConnectionLimitKW
	}
	return peak - s.scratch.MaxDischargePower() - 1, peak
}

// Solve bisects the feasibility predicate and returns the raw root.
func (s *PeakLimitSolver) Solve() (float64, error) {
	lo, hi := s.Bracket()
	if len(s.loads) == 0 {
		return 0, &InfeasibleError{Lower: lo, Upper: hi, Err: fmt.Errorf("empty series")}
	}
	if !allFinite(s.loads) {
		return 0, &InfeasibleError{Lower: lo, Upper: hi, Err: fmt.Errorf("series contains non-finite values")}
	}
	f := func(x float64) float64 { return sign(s.Feasible(x)) }
	root, err := Bisect(f, lo, hi, s.opts.Tolerance, s.opts.MaxIter)
	if err != nil {
		return 0, &InfeasibleError{Lower: lo, Upper: hi, Err: err}
	}
	s.opts.Logger.Debugw("peak limit solved", map[string]any{
		"lower": lo,
		"upper": hi,
		"root":  root,
	})
	return root, nil
}

// MinLimit solves and rounds to one decimal.
func (s *PeakLimitSolver) MinLimit() (float64, error) {
	root, err := s.Solve()
	if err != nil {
		return 0, err
	}
	return Round1(root), nil
}

// scan is the feasibility kernel shared by both solvers. Each sample's limit
// is limits[blocks[i]]. Above the limit the battery must cover the excess
// both in power and in stored energy; at or below it the battery recharges
// with the spare power, clamped to its rating and headroom.
func scan(b *battery.State, loads []float64, blocks []int, limits *limitTable, dt float64) bool {
	b.HardReset()
	capacity := b.Capacity()
	maxCh := b.MaxChargePower()
	maxDis := b.MaxDischargePower()
	for i, p := range loads {
		limit := limits[blocks[i]]
		if p > limit {
			need := p - limit
			if need > maxDis || b.Energy() < need*dt {
				return false
			}
			b.Discharge(need, dt)
			continue
		}
		e := b.Energy()
		if e >= capacity {
			continue
		}
		amt := math.Min(limit-p, maxCh)
		if e+amt*dt > capacity {
			amt = (capacity - e) / dt
		}
		b.Charge(amt, dt)
	}
	return true
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
