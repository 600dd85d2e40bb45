package config

import (
	"fmt"

	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/logger"
	"github.com/kilianp07/bessim/core/optimize"
	"github.com/kilianp07/bessim/core/tariff"
)

// SimulationConfig tunes the strategies and the limit search.
type SimulationConfig struct {
	// Strategy is the default strategy tag, e.g. "block_power".
	Strategy string `json:"strategy"`
	// TieMargin is added to block roots before rounding; nil keeps 0.1.
	TieMargin *float64 `json:"tie_margin"`
	// Tolerance is the bisection stop width in kW.
	Tolerance float64 `json:"tolerance"`
	MaxIter   int     `json:"max_iter"`
	// HeadroomFraction is the usable capacity share when solving block 1.
	HeadroomFraction float64 `json:"headroom_fraction"`
	// ConnectionLimitKW caps the search bracket; zero uses the series peak.
	ConnectionLimitKW float64 `json:"connection_limit_kw"`
	// MonthWorkers bounds concurrent months; zero means one per month.
	MonthWorkers int `json:"month_workers"`
	// BatchWorkers bounds concurrent jobs in a batch run.
	BatchWorkers int `json:"batch_workers"`
}

// SetDefaults applies the standard search settings.
func (c *SimulationConfig) SetDefaults() {
	def := optimize.DefaultOptions()
	if c.Strategy == "" {
		c.Strategy = control.ProductionSaving.String()
	}
	if c.TieMargin == nil {
		m := def.TieMargin
		c.TieMargin = &m
	}
	if c.Tolerance <= 0 {
		c.Tolerance = def.Tolerance
	}
	if c.MaxIter <= 0 {
		c.MaxIter = def.MaxIter
	}
	if c.HeadroomFraction <= 0 {
		c.HeadroomFraction = def.HeadroomFraction
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = 4
	}
}

// Validate checks ranges.
func (c SimulationConfig) Validate() error {
	if _, err := control.ParseKind(c.Strategy); err != nil {
		return err
	}
	if c.TieMargin != nil && *c.TieMargin < 0 {
		return fmt.Errorf("tie_margin must be >= 0")
	}
	if c.HeadroomFraction > 1 {
		return fmt.Errorf("headroom_fraction must be in (0, 1]")
	}
	if c.ConnectionLimitKW < 0 {
		return fmt.Errorf("connection_limit_kw must be >= 0")
	}
	if c.MonthWorkers < 0 {
		return fmt.Errorf("month_workers must be >= 0")
	}
	return nil
}

// Kind returns the parsed default strategy.
func (c SimulationConfig) Kind() control.Kind {
	k, _ := control.ParseKind(c.Strategy)
	return k
}

// ControlOptions builds the strategy options.
func (c SimulationConfig) ControlOptions(cl *tariff.Classifier, log logger.Logger) control.Options {
	opts := control.DefaultOptions()
	if c.TieMargin != nil {
		opts.Optimize.TieMargin = *c.TieMargin
	}
	if c.Tolerance > 0 {
		opts.Optimize.Tolerance = c.Tolerance
	}
	if c.MaxIter > 0 {
		opts.Optimize.MaxIter = c.MaxIter
	}
	if c.HeadroomFraction > 0 {
		opts.Optimize.HeadroomFraction = c.HeadroomFraction
	}
	opts.Optimize.ConnectionLimitKW = c.ConnectionLimitKW
	opts.MonthWorkers = c.MonthWorkers
	opts.Classifier = cl
	opts.Logger = log
	return opts
}
