// Package control implements the battery control strategies. Each strategy
// walks a load series once, mutating the battery it is given and recording
// the battery flows per sample.
package control

import (
	"context"
	"fmt"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/logger"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/core/optimize"
	"github.com/kilianp07/bessim/core/tariff"
)

// Strategy runs one control policy over a series.
type Strategy interface {
	Kind() Kind
	Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error)
}

// Options configure the strategies that need more than a battery.
type Options struct {
	Optimize   optimize.Options
	Classifier *tariff.Classifier
	// MonthWorkers bounds how many months run at once; zero means no limit.
	MonthWorkers int
	Logger       logger.Logger
}

// DefaultOptions returns the standard optimizer settings and the default
// tariff classifier.
func DefaultOptions() Options {
	return Options{Optimize: optimize.DefaultOptions()}
}

func (o Options) normalized() Options {
	if o.Logger == nil {
		o.Logger = logger.Nop{}
	}
	if o.Optimize.Logger == nil {
		o.Optimize.Logger = o.Logger
	}
	if o.Classifier == nil {
		o.Classifier = tariff.New(tariff.Config{})
	}
	return o
}

// New returns the strategy for kind.
func New(kind Kind, opts Options) (Strategy, error) {
	opts = opts.normalized()
	switch kind {
	case ProductionSaving:
		return productionSaving{}, nil
	case InstalledPowerLimit:
		return installedPower{opts: opts}, nil
	case BlockPowerReduction:
		return blockPower{opts: opts}, nil
	case MonthlyBlockPowerReduction:
		return monthlyBlockPower{opts: opts}, nil
	case MTVTShifting:
		return mtvtShifting{}, nil
	case FiveTariffManoeuvring:
		return fiveTariff{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %d", int(kind))
	}
}

// stepper applies battery actions for one run and records them.
type stepper struct {
	b  *battery.State
	r  *model.Result
	dt float64
}

func newStepper(kind Kind, s *model.Series, b *battery.State) *stepper {
	return &stepper{b: b, r: model.NewResult(kind.String(), s), dt: s.DT()}
}

func (st *stepper) charge(i int, kw float64) {
	c, clamped := st.b.Charge(kw, st.dt)
	if p := st.b.Power(); p != 0 {
		st.r.BatteryMinus[i] = -p
	}
	if clamped {
		st.clamp(i, c)
	}
}

func (st *stepper) discharge(i int, kw float64) {
	c, clamped := st.b.Discharge(kw, st.dt)
	st.r.BatteryPlus[i] = st.b.Power()
	if clamped {
		st.clamp(i, c)
	}
}

func (st *stepper) clamp(i int, c battery.Clamp) {
	st.r.Clamps = append(st.r.Clamps, model.Clamp{
		Index:       i,
		Time:        st.r.Time[i],
		Direction:   c.Direction.String(),
		RequestedKW: c.Requested,
		DeliveredKW: c.Delivered,
	})
}

func (st *stepper) record(i int) {
	st.r.Energy[i] = st.b.Energy()
}

func (st *stepper) result() *model.Result {
	st.r.Finalize()
	return st.r
}

func checkSeries(s *model.Series) error {
	if s == nil || s.Len() == 0 {
		return fmt.Errorf("%w: empty series", model.ErrInvalidSeries)
	}
	return nil
}
