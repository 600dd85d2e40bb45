package control

import (
	"context"
	"math"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/model"
)

// mtvtShifting charges during the low two-tariff window (22:00 to 06:00)
// and discharges during the high one, regardless of the load.
type mtvtShifting struct{}

func (mtvtShifting) Kind() Kind { return MTVTShifting }

func (mtvtShifting) Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := newStepper(MTVTShifting, s, b)
	step := s.Step()
	capacity := b.Capacity()

	for i, smp := range s.Samples {
		h := smp.Time.Add(-step).Hour()
		if h <= 5 || h >= 22 {
			st.charge(i, chargeAmount(b, capacity/8, st.dt))
		} else {
			st.discharge(i, dischargeAmount(b, capacity/16, st.dt))
		}
		st.record(i)
	}
	return st.result(), nil
}

// fiveTariff follows the five block timetable: it charges in the cheap
// windows and discharges in the expensive ones, spreading the capacity over
// the length of each window.
type fiveTariff struct{}

func (fiveTariff) Kind() Kind { return FiveTariffManoeuvring }

// window returns whether hour h charges, and over how many hours the
// capacity is spread. n is zero when the hour is idle.
func (fiveTariff) window(h int) (charge bool, n int) {
	switch {
	case h <= 5 || h >= 22:
		return true, 8
	case h >= 7 && h <= 13:
		return false, 7
	case h >= 14 && h <= 15:
		return true, 2
	case h >= 16 && h <= 19:
		return false, 4
	}
	return false, 0
}

func (f fiveTariff) Run(ctx context.Context, s *model.Series, b *battery.State) (*model.Result, error) {
	if err := checkSeries(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := newStepper(FiveTariffManoeuvring, s, b)
	step := s.Step()
	capacity := b.Capacity()

	for i, smp := range s.Samples {
		charge, n := f.window(smp.Time.Add(-step).Hour())
		switch {
		case n == 0:
		case charge:
			st.charge(i, chargeAmount(b, capacity/float64(n), st.dt))
		default:
			st.discharge(i, dischargeAmount(b, capacity/float64(n), st.dt))
		}
		st.record(i)
	}
	return st.result(), nil
}

func chargeAmount(b *battery.State, share, dt float64) float64 {
	return math.Min(math.Min(share, (b.Capacity()-b.Energy())/dt), b.MaxChargePower())
}

func dischargeAmount(b *battery.State, share, dt float64) float64 {
	return math.Min(math.Min(share, b.Energy()/dt), b.MaxDischargePower())
}
