// Package simulation runs a control strategy over a load series against a
// battery and reports the outcome.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/events"
	"github.com/kilianp07/bessim/core/logger"
	"github.com/kilianp07/bessim/core/model"
	"github.com/kilianp07/bessim/core/monitoring"
	"github.com/kilianp07/bessim/internal/eventbus"
)

// Engine owns one battery and runs strategies on it sequentially. It is not
// safe for concurrent use; run parallel simulations on separate engines.
type Engine struct {
	battery *battery.State
	opts    control.Options
	bus     eventbus.EventBus[events.RunEvent]
	log     logger.Logger
	now     func() time.Time
}

// NewEngine returns an engine for b. bus and log may be nil.
func NewEngine(b *battery.State, opts control.Options, bus eventbus.EventBus[events.RunEvent], log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &Engine{battery: b, opts: opts, bus: bus, log: log, now: time.Now}
}

// Battery returns the engine's battery.
func (e *Engine) Battery() *battery.State { return e.battery }

// Run validates s, fills the battery and runs the strategy for kind. The
// returned result carries a fresh run id.
func (e *Engine) Run(ctx context.Context, s *model.Series, kind control.Kind) (*model.Result, error) {
	if s == nil {
		return nil, &MissingInputError{Input: "series"}
	}
	if e.battery == nil {
		return nil, &MissingInputError{Input: "battery"}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	strategy, err := control.New(kind, e.opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := e.now()
	e.battery.HardReset()
	res, err := strategy.Run(ctx, s, e.battery)
	elapsed := e.now().Sub(start)
	if err != nil {
		e.log.Errorf("run %s (%s) failed: %v", runID, kind, err)
		monitoring.CaptureException(err, map[string]string{
			"run_id":   runID,
			"strategy": kind.String(),
			"battery":  e.battery.Name(),
		})
		e.publish(events.RunEvent{
			RunID:    runID,
			Strategy: kind.String(),
			Battery:  e.battery.Params(),
			Duration: elapsed,
			Err:      err,
			Time:     start,
		})
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	res.RunID = runID
	res.Finalize()
	for _, c := range res.Clamps {
		e.log.Warnf("run %s: capacity exceeded at %s (%s): requested %.3f kW, delivered %.3f kW",
			runID, c.Time.Format(time.RFC3339), c.Direction, c.RequestedKW, c.DeliveredKW)
	}
	summary := res.Summary(s.DT())
	e.log.Infof("run %s (%s): %d samples, peak %.2f -> %.2f kW, %d clamps in %s",
		runID, kind, summary.Samples, summary.PeakBeforeKW, summary.PeakAfterKW, summary.Clamps, elapsed)
	e.publish(events.RunEvent{
		RunID:    runID,
		Strategy: kind.String(),
		Battery:  e.battery.Params(),
		Result:   res,
		Summary:  summary,
		Duration: elapsed,
		Time:     start,
	})
	return res, nil
}

func (e *Engine) publish(ev events.RunEvent) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
