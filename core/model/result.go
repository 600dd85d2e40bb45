package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Result holds the per-sample outcome of one simulation. BatteryMinus is
// stored as a non-positive value so that PowerAfter = Load - BatteryPlus -
// BatteryMinus.
type Result struct {
	RunID        string      `json:"run_id,omitempty"`
	Strategy     string      `json:"strategy"`
	Time         []time.Time `json:"time"`
	Load         []float64   `json:"load"`
	BatteryPlus  []float64   `json:"battery_plus"`
	BatteryMinus []float64   `json:"battery_minus"`
	PowerAfter   []float64   `json:"power_after"`
	Energy       []float64   `json:"energy"`
	Limits       []float64   `json:"limits,omitempty"`
	BlockLimits  []float64   `json:"block_limits,omitempty"`
	Periods      []Period    `json:"periods,omitempty"`
	Clamps       []Clamp     `json:"clamps,omitempty"`
}

// Clamp records a step where the battery could not take or give the
// requested power.
type Clamp struct {
	Index       int       `json:"index"`
	Time        time.Time `json:"time"`
	Direction   string    `json:"direction"`
	RequestedKW float64   `json:"requested_kw"`
	DeliveredKW float64   `json:"delivered_kw"`
}

// Period holds the block limits found for one calendar month.
type Period struct {
	Month  string    `json:"month"`
	Limits []float64 `json:"limits"`
}

// NewResult allocates a result for the given series.
func NewResult(strategy string, s *Series) *Result {
	n := s.Len()
	r := &Result{
		Strategy:     strategy,
		Time:         make([]time.Time, n),
		Load:         make([]float64, n),
		BatteryPlus:  make([]float64, n),
		BatteryMinus: make([]float64, n),
		PowerAfter:   make([]float64, n),
		Energy:       make([]float64, n),
	}
	for i, smp := range s.Samples {
		r.Time[i] = smp.Time
		r.Load[i] = smp.PowerKW
	}
	return r
}

// Len returns the number of samples.
func (r *Result) Len() int { return len(r.Load) }

// Finalize recomputes PowerAfter from the load and battery flows.
func (r *Result) Finalize() {
	if len(r.PowerAfter) != len(r.Load) {
		r.PowerAfter = make([]float64, len(r.Load))
	}
	for i := range r.Load {
		r.PowerAfter[i] = r.Load[i] - r.BatteryPlus[i] - r.BatteryMinus[i]
	}
}

// Append concatenates other onto r. Block limits are not merged; clamp
// indices are shifted to the combined position.
func (r *Result) Append(other *Result) {
	offset := r.Len()
	r.Time = append(r.Time, other.Time...)
	r.Load = append(r.Load, other.Load...)
	r.BatteryPlus = append(r.BatteryPlus, other.BatteryPlus...)
	r.BatteryMinus = append(r.BatteryMinus, other.BatteryMinus...)
	r.PowerAfter = append(r.PowerAfter, other.PowerAfter...)
	r.Energy = append(r.Energy, other.Energy...)
	if other.Limits != nil {
		r.Limits = append(r.Limits, other.Limits...)
	}
	for _, c := range other.Clamps {
		c.Index += offset
		r.Clamps = append(r.Clamps, c)
	}
}

// Summary aggregates a result into a few headline figures. SelfConsumedKWh
// is local production stored by the battery instead of being exported.
type Summary struct {
	Strategy        string  `json:"strategy"`
	Samples         int     `json:"samples"`
	PeakBeforeKW    float64 `json:"peak_before_kw"`
	PeakAfterKW     float64 `json:"peak_after_kw"`
	MeanLoadKW      float64 `json:"mean_load_kw"`
	MeanAfterKW     float64 `json:"mean_after_kw"`
	DischargedKWh   float64 `json:"discharged_kwh"`
	ChargedKWh      float64 `json:"charged_kwh"`
	GridImportKWh   float64 `json:"grid_import_kwh"`
	GridExportKWh   float64 `json:"grid_export_kwh"`
	SelfConsumedKWh float64 `json:"self_consumed_kwh"`
	FinalEnergyKWh  float64 `json:"final_energy_kwh"`
	Clamps          int     `json:"clamps"`
}

// Summary computes headline figures using dt hours per sample.
func (r *Result) Summary(dt float64) Summary {
	s := Summary{Strategy: r.Strategy, Samples: r.Len(), Clamps: len(r.Clamps)}
	if r.Len() == 0 {
		return s
	}
	s.PeakBeforeKW = floats.Max(r.Load)
	s.PeakAfterKW = floats.Max(r.PowerAfter)
	s.MeanLoadKW = stat.Mean(r.Load, nil)
	s.MeanAfterKW = stat.Mean(r.PowerAfter, nil)
	s.DischargedKWh = floats.Sum(r.BatteryPlus) * dt
	s.ChargedKWh = -floats.Sum(r.BatteryMinus) * dt
	for i, p := range r.PowerAfter {
		if p > 0 {
			s.GridImportKWh += p * dt
		} else {
			s.GridExportKWh -= p * dt
		}
		if r.Load[i] < 0 {
			s.SelfConsumedKWh += math.Min(-r.Load[i], -r.BatteryMinus[i]) * dt
		}
	}
	s.FinalEnergyKWh = r.Energy[len(r.Energy)-1]
	return s
}
