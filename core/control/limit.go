package control

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/core/optimize"
)

// installedPower holds grid import under the smallest flat limit the battery
// can sustain over the whole series.
type installedPower struct {
	opts Options
}

func (installedPower) Kind() Kind { return InstalledPowerLimit }

func (p installedPower) Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	solver := optimize.NewPeakLimitSolver(b, s.Powers(), s.DT(), p.opts.Optimize)
	limit, err := solver.MinLimit()
	if err != nil {
		return nil, fmt.Errorf("installed power limit: %w", err)
	}
	p.opts.Logger.Infof("installed power limit %.1f kW over %d samples", limit, s.Len())

	limits := make([]float64, s.Len())
	for i := range limits {
		limits[i] = limit
	}
	b.HardReset()
	r := applyLimits(InstalledPowerLimit, s, b, limits)
	return r, nil
}

// blockPower holds grid import under one limit per tariff block.
type blockPower struct {
	opts Options
}

func (blockPower) Kind() Kind { return BlockPowerReduction }

func (p blockPower) Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, _, err := runBlocks(BlockPowerReduction, p.opts, s, b)
	return r, err
}

// monthlyBlockPower solves block limits separately for each calendar month.
// Months are independent: each one starts from a full copy of the battery.
type monthlyBlockPower struct {
	opts Options
}

func (monthlyBlockPower) Kind() Kind { return MonthlyBlockPowerReduction }

func (p monthlyBlockPower) Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	keys, parts := s.SplitMonths()
	results := make([]*model.Result, len(parts))
	limits := make([]*optimize.BlockLimits, len(parts))
	states := make([]*battery.State, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	if p.opts.MonthWorkers > 0 {
		g.SetLimit(p.opts.MonthWorkers)
	}
	for i := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mb := b.Clone()
			mb.HardReset()
			r, bl, err := runBlocks(MonthlyBlockPowerReduction, p.opts, parts[i], mb)
			if err != nil {
				return fmt.Errorf("month %s: %w", keys[i], err)
			}
			results[i], limits[i], states[i] = r, bl, mb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := model.NewResult(MonthlyBlockPowerReduction.String(), &model.Series{})
	for i, r := range results {
		out.Append(r)
		out.Periods = append(out.Periods, model.Period{Month: keys[i].String(), Limits: limits[i].Values()})
	}
	out.Finalize()

	// the caller's battery ends in the state of the last month
	if n := len(states); n > 0 {
		*b = *states[n-1]
	}
	return out, nil
}

func runBlocks(kind Kind, opts Options, s *model.Series, b *battery.State) (*model.Result, *optimize.BlockLimits, error) {
	labelled := opts.Classifier.Label(s)
	opt, err := optimize.NewBlockLimitOptimizer(b, opts.Optimize)
	if err != nil {
		return nil, nil, err
	}
	blocks := labelled.Blocks()
	bl, err := opt.Optimize(labelled.Powers(), blocks, labelled.DT())
	if err != nil {
		return nil, nil, fmt.Errorf("block power limits: %w", err)
	}
	opts.Logger.Infof("block limits %v over %d samples", bl.Values(), labelled.Len())

	b.HardReset()
	r := applyLimits(kind, labelled, b, bl.PerSample(blocks))
	r.BlockLimits = bl.Values()
	return r, bl, nil
}

// applyLimits walks the series once against per-sample limits: above the
// limit the battery covers the excess, below it the battery recharges with
// the spare power.
func applyLimits(kind Kind, s *model.Series, b *battery.State, limits []float64) *model.Result {
	st := newStepper(kind, s, b)
	dt := st.dt
	capacity := b.Capacity()
	maxCh := b.MaxChargePower()
	maxDis := b.MaxDischargePower()

	for i, smp := range s.Samples {
		load, lim := smp.PowerKW, limits[i]
		e := b.Energy()
		switch {
		case load > lim && e > 0:
			amt := math.Min(load-lim, maxDis)
			if e < amt*dt {
				amt = e / dt
			}
			st.discharge(i, amt)
		case e < capacity:
			amt := math.Min(lim-load, maxCh)
			if e+amt*dt > capacity {
				amt = (capacity - e) / dt
			}
			if amt > 0 {
				st.charge(i, amt)
			}
		}
		st.record(i)
	}
	st.r.Limits = limits
	return st.result()
}
