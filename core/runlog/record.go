// Package runlog defines the persistent log of simulation runs. Stores live
// in infra/runlog and are selected by type name through the registry.
package runlog

import (
	"context"
	"time"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/events"
	"github.com/kilianp07/bessim/core/model"
)

// Record captures one simulation run.
type Record struct {
	RunID       string         `json:"run_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Strategy    string         `json:"strategy"`
	Battery     battery.Params `json:"battery"`
	Summary     model.Summary  `json:"summary"`
	Limits      []float64      `json:"limits,omitempty"`
	Periods     []model.Period `json:"periods,omitempty"`
	DurationMS  float64        `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
	SeriesStart time.Time      `json:"series_start"`
	SeriesEnd   time.Time      `json:"series_end"`
}

// Failed reports whether the run ended with an error.
func (r Record) Failed() bool { return r.Error != "" }

// FromEvent converts a bus event into a record. Limits holds the block
// limits for block strategies or the flat limit for installed power.
func FromEvent(ev events.RunEvent) Record {
	rec := Record{
		RunID:      ev.RunID,
		Timestamp:  ev.Time,
		Strategy:   ev.Strategy,
		Battery:    ev.Battery,
		Summary:    ev.Summary,
		DurationMS: float64(ev.Duration.Microseconds()) / 1000,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	if r := ev.Result; r != nil && r.Len() > 0 {
		rec.SeriesStart = r.Time[0]
		rec.SeriesEnd = r.Time[r.Len()-1]
		rec.Periods = r.Periods
		switch {
		case r.BlockLimits != nil:
			rec.Limits = r.BlockLimits
		case r.Limits != nil && r.Periods == nil:
			rec.Limits = []float64{r.Limits[0]}
		}
	}
	return rec
}

// Query defines filters for retrieving records. Zero fields match all.
type Query struct {
	Start      time.Time
	End        time.Time
	Strategy   string
	FailedOnly bool
	Limit      int
}

// Matches reports whether rec passes the filters (Limit excluded).
func (q Query) Matches(rec Record) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.Strategy != "" && rec.Strategy != q.Strategy {
		return false
	}
	if q.FailedOnly && !rec.Failed() {
		return false
	}
	return true
}

// Store persists Records and supports querying in append order.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
