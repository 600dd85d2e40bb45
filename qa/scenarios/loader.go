// Package scenarios runs regression scenarios described in YAML files
// through the simulation engine.
package scenarios

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/bessim/core/battery"
	"github.com/kilianp07/bessim/core/control"
	"github.com/kilianp07/bessim/core/model"
)

// BatteryDef selects a preset or spells out the ratings.
type BatteryDef struct {
	Preset         string  `yaml:"preset,omitempty"`
	CapacityKWh    float64 `yaml:"capacity_kwh,omitempty"`
	MaxChargeKW    float64 `yaml:"max_charge_kw,omitempty"`
	MaxDischargeKW float64 `yaml:"max_discharge_kw,omitempty"`
}

// Expected lists the checks applied to the result. Empty fields are not
// checked.
type Expected struct {
	PowerAfter     []float64 `yaml:"power_after,omitempty"`
	Limits         []float64 `yaml:"limits,omitempty"`
	BlockLimits    []float64 `yaml:"block_limits,omitempty"`
	FinalEnergyKWh *float64  `yaml:"final_energy_kwh,omitempty"`
	PeakAfterKW    *float64  `yaml:"peak_after_kw,omitempty"`
	Clamps         *int      `yaml:"clamps,omitempty"`
	// Tolerance for float comparisons; 1e-6 when zero.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Strategy    string     `yaml:"strategy"`
	Battery     BatteryDef `yaml:"battery"`
	// Start is the RFC3339 timestamp of the first sample.
	Start       string    `yaml:"start"`
	StepMinutes int       `yaml:"step_minutes,omitempty"`
	Load        []float64 `yaml:"load"`
	// Blocks optionally labels every sample.
	Blocks   []int    `yaml:"blocks,omitempty"`
	Expected Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// Validate checks that the scenario can be run.
func (sc *Scenario) Validate() error {
	if _, err := control.ParseKind(sc.Strategy); err != nil {
		return err
	}
	if len(sc.Load) == 0 {
		return fmt.Errorf("scenario %s: empty load", sc.Name)
	}
	if sc.Blocks != nil && len(sc.Blocks) != len(sc.Load) {
		return fmt.Errorf("scenario %s: %d blocks for %d samples", sc.Name, len(sc.Blocks), len(sc.Load))
	}
	if n := len(sc.Expected.PowerAfter); n > 0 && n != len(sc.Load) {
		return fmt.Errorf("scenario %s: %d expected values for %d samples", sc.Name, n, len(sc.Load))
	}
	if _, err := time.Parse(time.RFC3339, sc.Start); err != nil {
		return fmt.Errorf("scenario %s: start: %w", sc.Name, err)
	}
	return nil
}

// Kind returns the parsed strategy.
func (sc *Scenario) Kind() control.Kind {
	k, _ := control.ParseKind(sc.Strategy)
	return k
}

// Series builds the load series.
func (sc *Scenario) Series() *model.Series {
	start, _ := time.Parse(time.RFC3339, sc.Start)
	step := time.Duration(sc.StepMinutes) * time.Minute
	if step <= 0 {
		step = model.DefaultStep
	}
	s := model.FromValues(start, step, sc.Load)
	for i, b := range sc.Blocks {
		s.Samples[i].Block = b
	}
	return s
}

// NewBattery builds the battery from the preset or the explicit ratings.
func (sc *Scenario) NewBattery() (*battery.State, error) {
	if sc.Battery.Preset != "" {
		return battery.NewFromPreset(sc.Battery.Preset)
	}
	return battery.New(battery.Params{
		Name:           sc.Name,
		CapacityKWh:    sc.Battery.CapacityKWh,
		MaxChargeKW:    sc.Battery.MaxChargeKW,
		MaxDischargeKW: sc.Battery.MaxDischargeKW,
	})
}
