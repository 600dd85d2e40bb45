package scenarios

import (
	"context"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/events"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/core/simulation"
	"github.com/kilianp07/bessim/infra/logger"
	"github.com/kilianp07/bessim/infra/metrics"
	"github.com/kilianp07/bessim/internal/eventbus"
)

// Outcome is what a scenario run produced.
type Outcome struct {
	Result      *model.Result
	FinalEnergy float64
	// Registry holds the Prometheus metrics recorded for the run.
	Registry *prometheus.Registry
}

// Run executes sc through the engine with an isolated event bus and
// Prometheus registry.
func Run(ctx context.Context, sc *Scenario) (*Outcome, error) {
	b, err := sc.NewBattery()
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New[events.RunEvent]()
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := metrics.StartEventCollector(cctx, bus, sink, false)

	eng := simulation.NewEngine(b, control.DefaultOptions(), bus, logger.NopLogger{})
	res, err := eng.Run(ctx, sc.Series(), sc.Kind())
	bus.Close()
	<-done
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: res, FinalEnergy: b.Energy(), Registry: reg}, nil
}

// Check compares the outcome with the scenario expectations and returns one
// message per mismatch.
func Check(sc *Scenario, out *Outcome) []string {
	exp := sc.Expected
	tol := exp.Tolerance
	if tol == 0 {
		tol = 1e-6
	}
	var diffs []string
	diffs = append(diffs, compareSlice("power_after", exp.PowerAfter, out.Result.PowerAfter, tol)...)
	diffs = append(diffs, compareSlice("limits", exp.Limits, out.Result.Limits, tol)...)
	diffs = append(diffs, compareSlice("block_limits", exp.BlockLimits, out.Result.BlockLimits, tol)...)
	if exp.FinalEnergyKWh != nil && math.Abs(*exp.FinalEnergyKWh-out.FinalEnergy) > tol {
		diffs = append(diffs, fmt.Sprintf("final energy: want %g, got %g", *exp.FinalEnergyKWh, out.FinalEnergy))
	}
	if exp.PeakAfterKW != nil {
		got := out.Result.Summary(sc.Series().DT()).PeakAfterKW
		if math.Abs(*exp.PeakAfterKW-got) > tol {
			diffs = append(diffs, fmt.Sprintf("peak after: want %g, got %g", *exp.PeakAfterKW, got))
		}
	}
	if exp.Clamps != nil && *exp.Clamps != len(out.Result.Clamps) {
		diffs = append(diffs, fmt.Sprintf("clamps: want %d, got %d", *exp.Clamps, len(out.Result.Clamps)))
	}
	return diffs
}

func compareSlice(name string, want, got []float64, tol float64) []string {
	if len(want) == 0 {
		return nil
	}
	if len(want) != len(got) {
		return []string{fmt.Sprintf("%s: want %d values, got %d", name, len(want), len(got))}
	}
	var diffs []string
	for i := range want {
		if math.Abs(want[i]-got[i]) > tol {
			diffs = append(diffs, fmt.Sprintf("%s[%d]: want %g, got %g", name, i, want[i], got[i]))
		}
	}
	return diffs
}
