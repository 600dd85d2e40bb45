package control

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/model"
)

var scenarioLoads = []float64{0, -3, -2, 8, 7, 6, 7, 8, 3, 5, 4, -2, 0, 2, 0, 0, 0}

func newBattery() *battery.State {
	return battery.MustNew(battery.Params{CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5})
}

func scenarioSeries() *model.Series {
	start := time.Date(2024, 7, 1, 0, 15, 0, 0, time.UTC)
	return model.FromValues(start, 15*time.Minute, scenarioLoads)
}

// mixedSeries spans two days with a daily consumption peak and midday
// production.
func mixedSeries(start time.Time) *model.Series {
	powers := make([]float64, 192)
	for i := range powers {
		phase := float64(i%96) / 96 * 2 * math.Pi
		powers[i] = 2.5 + 2.5*math.Sin(phase) - 1.5*math.Cos(2*phase) + float64(i%5)*0.2
	}
	return model.FromValues(start, 15*time.Minute, powers)
}

func run(t *testing.T, k Kind, s *model.Series, b *battery.State) *model.Result {
	t.Helper()
	st, err := New(k, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, k, st.Kind())
	r, err := st.Run(context.Background(), s, b)
	require.NoError(t, err)
	require.Equal(t, s.Len(), r.Len())
	return r
}

func TestKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)

		b, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, k, back)
	}
	k, err := ParseKind("Monthly-Block-Power")
	require.NoError(t, err)
	assert.Equal(t, MonthlyBlockPowerReduction, k)

	_, err = ParseKind("peak_shaving")
	assert.Error(t, err)
	_, err = New(Kind(42), DefaultOptions())
	assert.Error(t, err)
}

func TestProductionSavingScenario(t *testing.T) {
	b := newBattery()
	r := run(t, ProductionSaving, scenarioSeries(), b)

	want := []float64{0, -3, -2, 3, 2, 1, 2, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	assert.InDeltaSlice(t, want, r.PowerAfter, 1e-9)
	assert.Nil(t, r.Limits)
	assert.InDelta(t, 0.75, b.Energy(), 1e-9)
	assert.InDelta(t, 0.75, r.Energy[len(r.Energy)-1], 1e-9)
}

func TestInstalledPowerScenario(t *testing.T) {
	r := run(t, InstalledPowerLimit, scenarioSeries(), newBattery())

	want := []float64{0, -3, -2}
	for i := 3; i < len(scenarioLoads); i++ {
		want = append(want, 3)
	}
	assert.InDeltaSlice(t, want, r.PowerAfter, 1e-9)
	require.Len(t, r.Limits, len(scenarioLoads))
	for _, l := range r.Limits {
		assert.Equal(t, 3.0, l)
	}
}

func TestEmptyBatteryUnderLoad(t *testing.T) {
	b := newBattery()
	require.NoError(t, b.SetSoC(0))
	s := model.FromValues(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC), 15*time.Minute, []float64{4, 4, 4})

	r := run(t, ProductionSaving, s, b)
	assert.Equal(t, []float64{0, 0, 0}, r.BatteryPlus)
	assert.InDeltaSlice(t, []float64{4, 4, 4}, r.PowerAfter, 1e-9)
	assert.Empty(t, r.Clamps)
}

func TestBlockPowerKeepsLoadUnderLimits(t *testing.T) {
	s := scenarioSeries()
	for i := range s.Samples {
		s.Samples[i].Block = 1
	}
	r := run(t, BlockPowerReduction, s, newBattery())
	assert.Equal(t, []float64{3.1, 0, 0, 0, 0}, r.BlockLimits)
	for i, pa := range r.PowerAfter {
		assert.LessOrEqual(t, pa, r.Limits[i]+1e-9, "sample %d", i)
	}
}

func TestInvariantsAcrossStrategies(t *testing.T) {
	s := mixedSeries(time.Date(2024, 3, 4, 0, 15, 0, 0, time.UTC))
	for _, k := range Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			b := newBattery()
			r := run(t, k, s, b)
			for i := range r.Load {
				assert.GreaterOrEqual(t, r.Energy[i], -1e-9)
				assert.LessOrEqual(t, r.Energy[i], b.Capacity()+1e-9)
				assert.GreaterOrEqual(t, r.BatteryPlus[i], 0.0)
				assert.LessOrEqual(t, r.BatteryMinus[i], 0.0)
				assert.InDelta(t, r.Load[i]-r.BatteryPlus[i]-r.BatteryMinus[i], r.PowerAfter[i], 1e-9)
				assert.LessOrEqual(t, r.BatteryPlus[i], b.MaxDischargePower()+1e-9)
				assert.LessOrEqual(t, -r.BatteryMinus[i], b.MaxChargePower()+1e-9)
			}
			if k.UsesLimits() {
				require.Len(t, r.Limits, s.Len())
				for i, pa := range r.PowerAfter {
					assert.LessOrEqual(t, pa, r.Limits[i]+1e-9, "sample %d", i)
				}
			}
		})
	}
}

func TestMTVTShifting(t *testing.T) {
	b := newBattery()
	require.NoError(t, b.SetSoC(0))
	s := mixedSeries(time.Date(2024, 3, 4, 0, 15, 0, 0, time.UTC))
	r := run(t, MTVTShifting, s, b)

	assert.InDelta(t, -1.25, r.BatteryMinus[0], 1e-9, "00:15 charges capacity/8")
	assert.InDelta(t, -1.25, r.BatteryMinus[23], 1e-9, "06:00 still belongs to the night window")
	assert.InDelta(t, 0.625, r.BatteryPlus[24], 1e-9, "06:15 discharges capacity/16")
	assert.Equal(t, 0.0, r.BatteryMinus[24])
	assert.InDelta(t, 7.5, r.Energy[23], 1e-9)
}

func TestFiveTariffWindows(t *testing.T) {
	f := fiveTariff{}
	cases := []struct {
		hour   int
		charge bool
		n      int
	}{
		{0, true, 8}, {5, true, 8}, {6, false, 0}, {7, false, 7}, {13, false, 7},
		{14, true, 2}, {15, true, 2}, {16, false, 4}, {19, false, 4},
		{20, false, 0}, {21, false, 0}, {22, true, 8}, {23, true, 8},
	}
	for _, c := range cases {
		charge, n := f.window(c.hour)
		assert.Equal(t, c.charge, charge, "hour %d", c.hour)
		assert.Equal(t, c.n, n, "hour %d", c.hour)
	}
}

func TestFiveTariffRun(t *testing.T) {
	b := newBattery()
	require.NoError(t, b.SetSoC(0))
	s := mixedSeries(time.Date(2024, 3, 4, 0, 15, 0, 0, time.UTC))
	r := run(t, FiveTariffManoeuvring, s, b)

	assert.InDelta(t, -1.25, r.BatteryMinus[0], 1e-9)
	// 06:15 to 07:00 is idle
	for i := 24; i < 28; i++ {
		assert.Equal(t, 0.0, r.BatteryPlus[i])
		assert.Equal(t, 0.0, r.BatteryMinus[i])
	}
	assert.InDelta(t, 10.0/7, r.BatteryPlus[28], 1e-9, "07:15 discharges capacity/7")
	// 14:15 charges capacity/2 capped by the charge rating
	assert.InDelta(t, -5.0, r.BatteryMinus[56], 1e-9)
}

func TestMonthlyBlockPowerIsolatesMonths(t *testing.T) {
	s := mixedSeries(time.Date(2024, 1, 31, 0, 15, 0, 0, time.UTC))
	b := newBattery()
	r := run(t, MonthlyBlockPowerReduction, s, b)

	require.Len(t, r.Periods, 2)
	assert.Equal(t, "2024-01", r.Periods[0].Month)
	assert.Equal(t, "2024-02", r.Periods[1].Month)
	require.Len(t, r.Limits, s.Len())

	_, parts := s.SplitMonths()
	require.Len(t, parts, 2)
	require.Equal(t, 96, parts[1].Len())
	alone := run(t, BlockPowerReduction, parts[1], newBattery())
	assert.InDeltaSlice(t, alone.PowerAfter, r.PowerAfter[96:], 1e-9)
	assert.Equal(t, alone.BlockLimits, r.Periods[1].Limits)
	assert.InDelta(t, alone.Energy[95], b.Energy(), 1e-9)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, k := range Kinds() {
		st, err := New(k, DefaultOptions())
		require.NoError(t, err)
		_, err = st.Run(ctx, scenarioSeries(), newBattery())
		assert.ErrorIs(t, err, context.Canceled, k.String())
	}
}

func TestEmptySeriesRejected(t *testing.T) {
	st, err := New(ProductionSaving, DefaultOptions())
	require.NoError(t, err)
	_, err = st.Run(context.Background(), model.NewSeries(nil), newBattery())
	assert.ErrorIs(t, err, model.ErrInvalidSeries)
}
