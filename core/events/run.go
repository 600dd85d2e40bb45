package events

import (
	"time"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/model"
)

// RunEvent is published once per simulation. Result is nil and Err set when
// the run failed.
type RunEvent struct {
	RunID    string
	Strategy string
	Battery  battery.Params
	Result   *model.Result
	Summary  model.Summary
	Duration time.Duration
	Err      error
	Time     time.Time
}

// Failed reports whether the run ended with an error.
func (e RunEvent) Failed() bool { return e.Err != nil }
