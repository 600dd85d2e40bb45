package optimize

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bessim/core/battery"
)

var scenarioLoads = []float64{0, -3, -2, 8, 7, 6, 7, 8, 3, 5, 4, -2, 0, 2, 0, 0, 0}

func scenarioBattery() *battery.State {
	return battery.MustNew(battery.Params{CapacityKWh: 10, MaxChargeKW: 5, MaxDischargeKW: 5})
}

func TestBisect(t *testing.T) {
	root, err := Bisect(func(x float64) float64 { return x - 1.3 }, 0, 2, 1e-6, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, root, 1e-5)

	root, err = Bisect(func(x float64) float64 { return x }, 0, 2, 1e-6, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, root, "exact zero at the left end")
}

func TestBisectNoSignChange(t *testing.T) {
	_, err := Bisect(func(float64) float64 { return 1 }, 0, 10, 0.05, 100)
	assert.ErrorIs(t, err, ErrNoSignChange)

	_, err = Bisect(func(float64) float64 { return -1 }, 0, 10, 0.05, 100)
	assert.ErrorIs(t, err, ErrNoSignChange)

	_, err = Bisect(func(x float64) float64 { return x }, math.NaN(), 10, 0.05, 100)
	assert.ErrorIs(t, err, ErrNoSignChange)
}

func TestBisectNotConverged(t *testing.T) {
	_, err := Bisect(func(x float64) float64 { return x - 1.3 }, 0, 2, 1e-9, 3)
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 3.0, Round1(2.984375))
	assert.Equal(t, 3.1, Round1(3.084375))
	assert.Equal(t, -1.5, Round1(-1.46))
}

func TestPeakLimitSolverScenario(t *testing.T) {
	b := scenarioBattery()
	s := NewPeakLimitSolver(b, scenarioLoads, 0.25, DefaultOptions())

	lo, hi := s.Bracket()
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 8.0, hi)
	assert.False(t, s.Feasible(2.9))
	assert.True(t, s.Feasible(3))

	root, err := s.Solve()
	require.NoError(t, err)
	assert.Equal(t, 2.984375, root)

	limit, err := s.MinLimit()
	require.NoError(t, err)
	assert.Equal(t, 3.0, limit)

	assert.Equal(t, 10.0, b.Energy(), "caller battery untouched")
}

func TestPeakLimitSolverTrialsAreIndependent(t *testing.T) {
	s := NewPeakLimitSolver(scenarioBattery(), scenarioLoads, 0.25, DefaultOptions())
	first := s.Feasible(3.5)
	_ = s.Feasible(2)
	_ = s.Feasible(8)
	assert.Equal(t, first, s.Feasible(3.5))
}

func TestPeakLimitSolverInfeasible(t *testing.T) {
	t.Run("connection limit below what the battery can cover", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ConnectionLimitKW = 10
		s := NewPeakLimitSolver(scenarioBattery(), []float64{2, 20, 2}, 0.25, opts)
		_, err := s.Solve()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInfeasiblePowerLimit)
		assert.ErrorIs(t, err, ErrNoSignChange)
		var ierr *InfeasibleError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, 0, ierr.Block)
		assert.Equal(t, 10.0, ierr.Upper)
	})
	t.Run("non finite load", func(t *testing.T) {
		s := NewPeakLimitSolver(scenarioBattery(), []float64{1, math.NaN(), 3}, 0.25, DefaultOptions())
		_, err := s.Solve()
		assert.ErrorIs(t, err, ErrInfeasiblePowerLimit)
	})
	t.Run("empty", func(t *testing.T) {
		s := NewPeakLimitSolver(scenarioBattery(), nil, 0.25, DefaultOptions())
		_, err := s.Solve()
		assert.ErrorIs(t, err, ErrInfeasiblePowerLimit)
	})
}

func TestBlockLimitsSingleBlock(t *testing.T) {
	o, err := NewBlockLimitOptimizer(scenarioBattery(), DefaultOptions())
	require.NoError(t, err)
	blocks := make([]int, len(scenarioLoads))
	for i := range blocks {
		blocks[i] = 1
	}
	res, err := o.Optimize(scenarioLoads, blocks, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 3.1, res.Limit(1))
	assert.Equal(t, 8.0, res.Peaks[1])
	for b := 2; b <= NumBlocks; b++ {
		assert.False(t, res.Populated[b])
		assert.Equal(t, 0.0, res.Limit(b), "empty block %d", b)
	}
}

func TestBlockLimitsReuseAndSolve(t *testing.T) {
	o, err := NewBlockLimitOptimizer(scenarioBattery(), DefaultOptions())
	require.NoError(t, err)

	t.Run("reuse previous limit", func(t *testing.T) {
		loads := append(append([]float64{}, scenarioLoads...), 2, 2, 2)
		blocks := make([]int, len(loads))
		for i := range blocks {
			blocks[i] = 1
			if i >= len(scenarioLoads) {
				blocks[i] = 2
			}
		}
		res, err := o.Optimize(loads, blocks, 0.25)
		require.NoError(t, err)
		assert.Equal(t, 3.1, res.Limit(1))
		assert.Equal(t, 3.1, res.Limit(2))
		assert.True(t, res.Reused[2])
		assert.Equal(t, 8.0, res.Ceilings[2], "ceiling follows the running maximum")
	})

	t.Run("solve higher block", func(t *testing.T) {
		loads := append(append([]float64{}, scenarioLoads...), 9, 9)
		blocks := make([]int, len(loads))
		for i := range blocks {
			blocks[i] = 1
			if i >= len(scenarioLoads) {
				blocks[i] = 2
			}
		}
		res, err := o.Optimize(loads, blocks, 0.25)
		require.NoError(t, err)
		assert.Equal(t, 3.1, res.Limit(1))
		assert.Equal(t, 4.1, res.Limit(2))
		assert.False(t, res.Reused[2])
		assert.Equal(t, []float64{3.1, 4.1, 0, 0, 0}, res.Values())
		assert.Equal(t, []float64{3.1, 4.1}, res.PerSample([]int{1, 2}))
	})
}

func TestBlockLimitsMonotonicAndFeasible(t *testing.T) {
	b := battery.MustNew(battery.Params{CapacityKWh: 13.5, MaxChargeKW: 5, MaxDischargeKW: 5})
	o, err := NewBlockLimitOptimizer(b, DefaultOptions())
	require.NoError(t, err)

	n := 7 * 96
	loads := make([]float64, n)
	blocks := make([]int, n)
	for i := 0; i < n; i++ {
		hour := (i / 4) % 24
		loads[i] = 3 + 4*math.Sin(float64(i)*2*math.Pi/96) + float64(i%7)*0.3
		switch {
		case hour >= 7 && hour < 14:
			blocks[i] = 1
		case hour >= 14 && hour < 20:
			blocks[i] = 2
		case hour >= 20 || hour < 2:
			blocks[i] = 3
		default:
			blocks[i] = 4
		}
	}
	res, err := o.Optimize(loads, blocks, 0.25)
	require.NoError(t, err)

	var prev float64
	first := true
	for blk := 1; blk <= NumBlocks; blk++ {
		if !res.Populated[blk] {
			assert.Equal(t, 0.0, res.Limit(blk))
			continue
		}
		assert.LessOrEqual(t, res.Limit(blk), res.Ceilings[blk]+1e-9)
		if !first {
			assert.LessOrEqual(t, prev, res.Limit(blk), "block %d", blk)
		}
		prev = res.Limit(blk)
		first = false
	}
	assert.True(t, o.Feasible(loads, blocks, res.Limits, 0.25))
}

func TestBlockLimitsConnectionLimit(t *testing.T) {
	allOnes := func(n int) []int {
		blocks := make([]int, n)
		for i := range blocks {
			blocks[i] = 1
		}
		return blocks
	}

	t.Run("caps the bracket", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ConnectionLimitKW = 6
		o, err := NewBlockLimitOptimizer(scenarioBattery(), opts)
		require.NoError(t, err)
		res, err := o.Optimize(scenarioLoads, allOnes(len(scenarioLoads)), 0.25)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Limit(1), 6.0)
		assert.InDelta(t, 3.1, res.Limit(1), 0.2)
		assert.Equal(t, 8.0, res.Ceilings[1])
	})

	t.Run("below what the battery can cover", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ConnectionLimitKW = 10
		o, err := NewBlockLimitOptimizer(scenarioBattery(), opts)
		require.NoError(t, err)
		_, err = o.Optimize([]float64{2, 20, 2}, allOnes(3), 0.25)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInfeasiblePowerLimit)
		var ierr *InfeasibleError
		require.True(t, errors.As(err, &ierr))
		assert.Equal(t, 1, ierr.Block)
		assert.Equal(t, 10.0, ierr.Upper)
		assert.Equal(t, 4.0, ierr.Lower)
	})
}

func TestBlockLimitsNeverDecrease(t *testing.T) {
	// A coarse tolerance stops block 2 at 3.5, below the 4.6 already
	// fixed for block 1.
	opts := DefaultOptions()
	opts.Tolerance = 2
	o, err := NewBlockLimitOptimizer(scenarioBattery(), opts)
	require.NoError(t, err)

	loads := []float64{6, 6, 6, 6, 8, 6}
	blocks := []int{1, 1, 1, 1, 2, 2}
	res, err := o.Optimize(loads, blocks, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.6, res.Limit(1), 1e-9)
	assert.InDelta(t, 4.6, res.Limit(2), 1e-9)
	assert.False(t, res.Reused[2], "block 2 was bisected, not reused")
	assert.Equal(t, 8.0, res.Ceilings[2])
}

func TestBlockLimitsRejectsBadInput(t *testing.T) {
	o, err := NewBlockLimitOptimizer(scenarioBattery(), DefaultOptions())
	require.NoError(t, err)

	_, err = o.Optimize([]float64{1, 2}, []int{1}, 0.25)
	assert.Error(t, err)

	_, err = o.Optimize([]float64{1}, []int{0}, 0.25)
	assert.Error(t, err)

	_, err = o.Optimize([]float64{math.Inf(1)}, []int{1}, 0.25)
	assert.ErrorIs(t, err, ErrInfeasiblePowerLimit)
}
