package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/bessim/core/metrics"
	"github.com/kilianp07/bessim/core/model"
)

// PromSink exposes simulation outcomes as Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	peak     *prometheus.GaugeVec
	energy   *prometheus.CounterVec
	clamps   *prometheus.CounterVec
	limits   *prometheus.GaugeVec
}

// NewPromSink registers the simulation metrics on the default registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer
// defaults to the global one. Registering twice reuses the existing
// collectors.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.runs, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bessim_runs_total",
		Help: "Simulation runs by strategy and outcome",
	}, []string{"strategy", "status"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bessim_run_duration_seconds",
		Help:    "Wall time of a simulation run including limit optimization",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"strategy"})); err != nil {
		return nil, err
	}
	if s.peak, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bessim_peak_power_kw",
		Help: "Peak grid import of the last run, before and after the battery",
	}, []string{"strategy", "stage"})); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bessim_battery_energy_kwh_total",
		Help: "Energy moved through the battery",
	}, []string{"strategy", "direction"})); err != nil {
		return nil, err
	}
	if s.clamps, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bessim_clamps_total",
		Help: "Steps where the battery could not absorb or deliver the requested power",
	}, []string{"strategy", "direction"})); err != nil {
		return nil, err
	}
	if s.limits, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bessim_power_limit_kw",
		Help: "Power limits found by the last limit run; block 0 is a flat limit",
	}, []string{"strategy", "period", "block"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

// RecordRun counts the run and updates the peak gauges.
func (s *PromSink) RecordRun(rec coremetrics.RunRecord) error {
	status := "ok"
	if rec.Failed {
		status = "failed"
	}
	s.runs.WithLabelValues(rec.Strategy, status).Inc()
	s.duration.WithLabelValues(rec.Strategy).Observe(rec.Duration.Seconds())
	if rec.Failed {
		return nil
	}
	s.peak.WithLabelValues(rec.Strategy, "before").Set(rec.Summary.PeakBeforeKW)
	s.peak.WithLabelValues(rec.Strategy, "after").Set(rec.Summary.PeakAfterKW)
	s.energy.WithLabelValues(rec.Strategy, "charge").Add(rec.Summary.ChargedKWh)
	s.energy.WithLabelValues(rec.Strategy, "discharge").Add(rec.Summary.DischargedKWh)
	return nil
}

// RecordLimits sets one gauge per block.
func (s *PromSink) RecordLimits(rec coremetrics.LimitRecord) error {
	if len(rec.Limits) == 1 {
		s.limits.WithLabelValues(rec.Strategy, rec.Period, "0").Set(rec.Limits[0])
		return nil
	}
	for i, l := range rec.Limits {
		s.limits.WithLabelValues(rec.Strategy, rec.Period, strconv.Itoa(i+1)).Set(l)
	}
	return nil
}

// RecordClamps counts clamp events by direction.
func (s *PromSink) RecordClamps(_ string, strategy string, clamps []model.Clamp) error {
	for _, c := range clamps {
		s.clamps.WithLabelValues(strategy, c.Direction).Inc()
	}
	return nil
}
