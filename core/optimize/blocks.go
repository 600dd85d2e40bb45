package optimize

import (
	"fmt"
	"math"

	"github.com/kilianp07/bessim/core/battery"
)

// NumBlocks is the number of tariff blocks handled by BlockLimitOptimizer.
const NumBlocks = 5

// BlockLimits is the outcome of a block optimization, indexed by block id
// (index 0 unused). Ceilings hold the running peak maximum before any
// connection limit is applied.
type BlockLimits struct {
	Limits    [NumBlocks + 1]float64
	Peaks     [NumBlocks + 1]float64
	Ceilings  [NumBlocks + 1]float64
	Populated [NumBlocks + 1]bool
	Reused    [NumBlocks + 1]bool
}

// Limit returns the limit of block id b.
func (l *BlockLimits) Limit(b int) float64 { return l.Limits[b] }

// Values returns the limits of blocks 1..5 in order.
func (l *BlockLimits) Values() []float64 {
	out := make([]float64, NumBlocks)
	copy(out, l.Limits[1:])
	return out
}

// PerSample expands the limits into one value per sample.
func (l *BlockLimits) PerSample(blocks []int) []float64 {
	out := make([]float64, len(blocks))
	for i, b := range blocks {
		out[i] = l.Limits[b]
	}
	return out
}

// BlockLimitOptimizer finds one limit per tariff block, solving blocks in
// order 1..5 so that each limit is as tight as possible given the limits
// already fixed for earlier blocks. It is not safe for concurrent use.
type BlockLimitOptimizer struct {
	opts    Options
	full    *battery.State
	relaxed *battery.State
}

// NewBlockLimitOptimizer copies the ratings of b into two scratch states:
// one at full capacity and one at HeadroomFraction of it for block 1.
func NewBlockLimitOptimizer(b *battery.State, opts Options) (*BlockLimitOptimizer, error) {
	opts = opts.normalized()
	full := b.Clone()
	relaxed := b.Clone()
	if err := relaxed.SetCapacity(b.Capacity() * opts.HeadroomFraction); err != nil {
		return nil, err
	}
	return &BlockLimitOptimizer{opts: opts, full: full, relaxed: relaxed}, nil
}

// Optimize computes the per-block limits for loads labelled with blocks
// (values 1..5) sampled every dt hours.
func (o *BlockLimitOptimizer) Optimize(loads []float64, blocks []int, dt float64) (*BlockLimits, error) {
	if len(loads) != len(blocks) {
		return nil, fmt.Errorf("loads and blocks differ in length: %d != %d", len(loads), len(blocks))
	}
	res := &BlockLimits{}
	for i, p := range loads {
		b := blocks[i]
		if b < 1 || b > NumBlocks {
			return nil, fmt.Errorf("sample %d: tariff block %d out of range", i, b)
		}
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, &InfeasibleError{Block: b, Err: fmt.Errorf("sample %d is not finite", i)}
		}
		if !res.Populated[b] || p > res.Peaks[b] {
			res.Peaks[b] = p
		}
		res.Populated[b] = true
	}

	running := math.Inf(-1)
	var table limitTable
	for b := 1; b <= NumBlocks; b++ {
		if !res.Populated[b] {
			continue
		}
		running = math.Max(running, res.Peaks[b])
		res.Ceilings[b] = running
		table[b] = running
	}

	maxDis := o.full.MaxDischargePower()
	havePrev := false
	prev := 0.0
	for b := 1; b <= NumBlocks; b++ {
		if !res.Populated[b] {
			table[b] = 0
			continue
		}
		scratch := o.full
		if b == 1 {
			scratch = o.relaxed
		}
		block := b
		f := func(x float64) float64 {
			trial := table
			trial[block] = x
			return sign(scan(scratch, loads, blocks, &trial, dt))
		}

		if havePrev && f(prev) > 0 {
			table[b] = prev
			res.Reused[b] = true
			o.opts.Logger.Debugw("block limit reused", map[string]any{"block": b, "limit": prev})
			continue
		}

		hi := o.ceiling(res.Ceilings[b])
		lo := hi - maxDis - 1
		root, err := Bisect(f, lo, hi, o.opts.Tolerance, o.opts.MaxIter)
		if err != nil {
			return nil, &InfeasibleError{Block: b, Lower: lo, Upper: hi, Err: err}
		}
		limit := math.Min(Round1(root+o.opts.TieMargin), hi)
		if havePrev && limit < prev {
			limit = prev
		}
		table[b] = limit
		prev = limit
		havePrev = true
		o.opts.Logger.Debugw("block limit solved", map[string]any{
			"block": b,
			"lower": lo,
			"upper": hi,
			"root":  root,
			"limit": limit,
		})
	}
	copy(res.Limits[:], table[:])
	return res, nil
}

// ceiling caps a block ceiling by the connection limit when one is set.
func (o *BlockLimitOptimizer) ceiling(c float64) float64 {
	if o.opts.ConnectionLimitKW > 0 && o.opts.ConnectionLimitKW < c {
		return o.opts.ConnectionLimitKW
	}
	return c
}

// Feasible runs the multi-block predicate for a complete set of limits on
// the full-capacity battery.
func (o *BlockLimitOptimizer) Feasible(loads []float64, blocks []int, limits [NumBlocks + 1]float64, dt float64) bool {
	table := limitTable(limits)
	return scan(o.full, loads, blocks, &table, dt)
}
