package metrics

import (
	"time"

	"github.com/kilianp07/bessim/core/model"
)

// RunRecord summarizes one simulation.
type RunRecord struct {
	RunID    string
	Strategy string
	Battery  string
	Summary  model.Summary
	Duration time.Duration
	Failed   bool
	Error    string
	Time     time.Time
}

// MetricsSink records simulation runs for observability purposes.
type MetricsSink interface {
	RecordRun(rec RunRecord) error
}

// LimitRecord carries the limits found by a limit strategy. Period is empty
// unless limits were solved per month. Limits holds one value for a flat
// limit, or the five block limits in block order.
type LimitRecord struct {
	RunID    string
	Strategy string
	Period   string
	Limits   []float64
	Time     time.Time
}

// LimitRecorder records optimized power limits.
type LimitRecorder interface {
	RecordLimits(rec LimitRecord) error
}

// ClampRecorder records the steps where the battery saturated.
type ClampRecorder interface {
	RecordClamps(runID, strategy string, clamps []model.Clamp) error
}

// SeriesRecorder records the full per-sample trace of a result.
type SeriesRecorder interface {
	RecordSeries(r *model.Result) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunRecord) error                        { return nil }
func (NopSink) RecordLimits(LimitRecord) error                   { return nil }
func (NopSink) RecordClamps(string, string, []model.Clamp) error { return nil }
func (NopSink) RecordSeries(*model.Result) error                 { return nil }
