package control

import (
	"context"
	"math"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/model"
)

// productionSaving stores surplus production and serves consumption from
// the battery whenever it holds energy.
type productionSaving struct{}

func (productionSaving) Kind() Kind { return ProductionSaving }

func (productionSaving) Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := newStepper(ProductionSaving, s, b)
	dt := st.dt
	capacity := b.Capacity()
	maxCh := b.MaxChargePower()
	maxDis := b.MaxDischargePower()

	for i, smp := range s.Samples {
		load := smp.PowerKW
		e := b.Energy()
		switch {
		case load > 0 && e > 0:
			if e-dt*load > 0 {
				st.discharge(i, math.Min(load, maxDis))
			} else {
				st.discharge(i, math.Min(maxDis, e/dt))
			}
		case load <= 0:
			if e-dt*load < capacity {
				st.charge(i, math.Min(-load, maxCh))
			} else {
				st.charge(i, math.Min((capacity-e)/dt, maxCh))
			}
		}
		st.record(i)
	}
	return st.result(), nil
}
