package metrics

import (
	"errors"

	"github.com/kilianp07/bessim/core/model"
)

// MultiSink fans records out to several sinks. Every sink is tried; the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the run to all sinks.
func (m *MultiSink) RecordRun(rec RunRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordRun(rec))
	}
	return errors.Join(errs...)
}

// RecordLimits forwards limits to sinks implementing LimitRecorder.
func (m *MultiSink) RecordLimits(rec LimitRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(LimitRecorder); ok {
			errs = append(errs, r.RecordLimits(rec))
		}
	}
	return errors.Join(errs...)
}

// RecordClamps forwards clamp events to sinks implementing ClampRecorder.
func (m *MultiSink) RecordClamps(runID, strategy string, clamps []model.Clamp) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(ClampRecorder); ok {
			errs = append(errs, r.RecordClamps(runID, strategy, clamps))
		}
	}
	return errors.Join(errs...)
}

// RecordSeries forwards the trace to sinks implementing SeriesRecorder.
func (m *MultiSink) RecordSeries(r *model.Result) error {
	var errs []error
	for _, s := range m.Sinks {
		if sr, ok := s.(SeriesRecorder); ok {
			errs = append(errs, sr.RecordSeries(r))
		}
	}
	return errors.Join(errs...)
}

// Close releases the sinks that hold resources.
func (m *MultiSink) Close() { closeSinks(m.Sinks) }
