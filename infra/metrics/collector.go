package metrics

import (
	"context"

	"github.com/kilianp07/bessim/core/events"
	coremetrics "github.com/kilianp07/bessim/core/metrics"
	"github.com/kilianp07/bessim/infra/logger"
	"github.com/kilianp07/bessim/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records every run in
// sink. Sinks implementing the optional recorders also receive limits,
// clamps and, when withSeries is set, the per-sample trace. The returned
// channel is closed once the collector stops, on context cancellation or
// bus close.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.RunEvent], sink coremetrics.MetricsSink, withSeries bool) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := Record(sink, ev, withSeries); err != nil {
					log.Errorf("record run %s: %v", ev.RunID, err)
				}
			}
		}
	}()
	return done
}

// Record converts a run event into sink calls.
func Record(sink coremetrics.MetricsSink, ev events.RunEvent, withSeries bool) error {
	rec := coremetrics.RunRecord{
		RunID:    ev.RunID,
		Strategy: ev.Strategy,
		Battery:  ev.Battery.Name,
		Summary:  ev.Summary,
		Duration: ev.Duration,
		Failed:   ev.Failed(),
		Time:     ev.Time,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	if err := sink.RecordRun(rec); err != nil {
		return err
	}
	r := ev.Result
	if r == nil {
		return nil
	}
	if lr, ok := sink.(coremetrics.LimitRecorder); ok {
		for _, lim := range limitRecords(ev) {
			if err := lr.RecordLimits(lim); err != nil {
				return err
			}
		}
	}
	if cr, ok := sink.(coremetrics.ClampRecorder); ok && len(r.Clamps) > 0 {
		if err := cr.RecordClamps(ev.RunID, ev.Strategy, r.Clamps); err != nil {
			return err
		}
	}
	if sr, ok := sink.(coremetrics.SeriesRecorder); ok && withSeries {
		return sr.RecordSeries(r)
	}
	return nil
}

func limitRecords(ev events.RunEvent) []coremetrics.LimitRecord {
	r := ev.Result
	base := coremetrics.LimitRecord{RunID: ev.RunID, Strategy: ev.Strategy, Time: ev.Time}
	switch {
	case len(r.Periods) > 0:
		out := make([]coremetrics.LimitRecord, len(r.Periods))
		for i, p := range r.Periods {
			out[i] = base
			out[i].Period = p.Month
			out[i].Limits = p.Limits
		}
		return out
	case r.BlockLimits != nil:
		base.Limits = r.BlockLimits
		return []coremetrics.LimitRecord{base}
	case len(r.Limits) > 0:
		base.Limits = []float64{r.Limits[0]}
		return []coremetrics.LimitRecord{base}
	}
	return nil
}
