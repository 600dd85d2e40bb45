package config

import (
	"fmt"

	"github.com/kilianp07/bessim/core/battery"
)

// DefaultPreset is used when neither a preset nor ratings are configured.
const DefaultPreset = "tesla_powerwall"

// BatteryConfig selects the storage: a preset name or explicit ratings.
// Explicit ratings win over the preset.
type BatteryConfig struct {
	Preset         string  `json:"preset"`
	CapacityKWh    float64 `json:"capacity_kwh"`
	MaxChargeKW    float64 `json:"max_charge_kw"`
	MaxDischargeKW float64 `json:"max_discharge_kw"`
	InitialSoC     float64 `json:"initial_soc"`
	// PresetsFile adds YAML presets before the lookup.
	PresetsFile string `json:"presets_file"`
}

func (c *BatteryConfig) explicit() bool {
	return c.CapacityKWh != 0 || c.MaxChargeKW != 0 || c.MaxDischargeKW != 0
}

// SetDefaults falls back to DefaultPreset.
func (c *BatteryConfig) SetDefaults() {
	if c.Preset == "" && !c.explicit() {
		c.Preset = DefaultPreset
	}
}

// Validate checks explicit ratings. Preset names are resolved in Params,
// after PresetsFile has been loaded.
func (c BatteryConfig) Validate() error {
	if !c.explicit() {
		if c.Preset == "" {
			return fmt.Errorf("preset or ratings required")
		}
		return nil
	}
	return c.params().Validate()
}

func (c BatteryConfig) params() battery.Params {
	name := c.Preset
	if name == "" {
		name = "custom"
	}
	return battery.Params{
		Name:           name,
		CapacityKWh:    c.CapacityKWh,
		MaxChargeKW:    c.MaxChargeKW,
		MaxDischargeKW: c.MaxDischargeKW,
		InitialSoC:     c.InitialSoC,
	}
}

// Params resolves the configured ratings.
func (c BatteryConfig) Params() (battery.Params, error) {
	if c.PresetsFile != "" {
		if _, err := battery.LoadPresets(c.PresetsFile); err != nil {
			return battery.Params{}, err
		}
	}
	if c.explicit() {
		p := c.params()
		return p, p.Validate()
	}
	p, err := battery.LookupPreset(c.Preset)
	if err != nil {
		return battery.Params{}, err
	}
	if c.InitialSoC != 0 {
		p.InitialSoC = c.InitialSoC
	}
	return p, nil
}

// NewState builds a battery from the configuration.
func (c BatteryConfig) NewState() (*battery.State, error) {
	p, err := c.Params()
	if err != nil {
		return nil, err
	}
	return battery.New(p)
}
