package battery

import "math"

// Params are the static ratings of a battery.
type Params struct {
	Name           string  `json:"name" yaml:"name"`
	CapacityKWh    float64 `json:"capacity_kwh" yaml:"capacity_kwh"`
	MaxChargeKW    float64 `json:"max_charge_kw" yaml:"max_charge_kw"`
	MaxDischargeKW float64 `json:"max_discharge_kw" yaml:"max_discharge_kw"`
	// InitialSoC is the baseline restored by SoftReset. Zero means full;
	// use State.SetSoC(0) for an empty start.
	InitialSoC float64 `json:"initial_soc" yaml:"initial_soc"`
}

// Validate checks the ratings.
func (p Params) Validate() error {
	if err := checkPositive("capacity_kwh", p.CapacityKWh); err != nil {
		return err
	}
	if err := checkPositive("max_charge_kw", p.MaxChargeKW); err != nil {
		return err
	}
	if err := checkPositive("max_discharge_kw", p.MaxDischargeKW); err != nil {
		return err
	}
	return checkSoC(p.InitialSoC)
}

func (p Params) initialSoC() float64 {
	if p.InitialSoC == 0 {
		return 1
	}
	return p.InitialSoC
}

// State is the mutable physical state of a battery. It is not safe for
// concurrent use; independent simulations use independent States.
type State struct {
	name         string
	capacity     float64
	maxCharge    float64
	maxDischarge float64
	baselineSoC  float64

	energy float64
	soc    float64
	power  float64
}

// New validates p and returns a State holding capacity*soc of energy.
func New(p Params) (*State, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &State{
		name:         p.Name,
		capacity:     p.CapacityKWh,
		maxCharge:    p.MaxChargeKW,
		maxDischarge: p.MaxDischargeKW,
		baselineSoC:  p.initialSoC(),
	}
	s.SoftReset()
	return s, nil
}

// MustNew is like New but panics on invalid parameters.
func MustNew(p Params) *State {
	s, err := New(p)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *State) Name() string               { return s.name }
func (s *State) Capacity() float64          { return s.capacity }
func (s *State) MaxChargePower() float64    { return s.maxCharge }
func (s *State) MaxDischargePower() float64 { return s.maxDischarge }
func (s *State) Energy() float64            { return s.energy }
func (s *State) SoC() float64               { return s.soc }
func (s *State) Power() float64             { return s.power }
func (s *State) BaselineSoC() float64       { return s.baselineSoC }

// Params returns the current ratings.
func (s *State) Params() Params {
	return Params{
		Name:           s.name,
		CapacityKWh:    s.capacity,
		MaxChargeKW:    s.maxCharge,
		MaxDischargeKW: s.maxDischarge,
		InitialSoC:     s.baselineSoC,
	}
}

// Clone returns an independent copy including the current energy.
func (s *State) Clone() *State {
	c := *s
	return &c
}

// Charge stores powerKW for dt hours. When the step would overfill the
// battery, energy is set to capacity and the returned Clamp describes the
// power actually absorbed. Negative power is treated as zero.
func (s *State) Charge(powerKW, dt float64) (Clamp, bool) {
	powerKW = math.Max(powerKW, 0)
	if s.energy+powerKW*dt <= s.capacity {
		s.power = powerKW
		s.energy += powerKW * dt
		s.updateSoC()
		return Clamp{}, false
	}
	delivered := 0.0
	if dt != 0 {
		delivered = (s.capacity - s.energy) / dt
	}
	s.power = delivered
	s.energy = s.capacity
	s.updateSoC()
	return Clamp{Direction: Charging, Requested: powerKW, Delivered: delivered, DT: dt}, true
}

// Discharge draws powerKW for dt hours, clamping at an empty battery.
// Negative power is treated as zero.
func (s *State) Discharge(powerKW, dt float64) (Clamp, bool) {
	powerKW = math.Max(powerKW, 0)
	if s.energy-powerKW*dt >= 0 {
		s.power = powerKW
		s.energy -= powerKW * dt
		s.updateSoC()
		return Clamp{}, false
	}
	delivered := 0.0
	if dt != 0 {
		delivered = s.energy / dt
	}
	s.power = delivered
	s.energy = 0
	s.updateSoC()
	return Clamp{Direction: Discharging, Requested: powerKW, Delivered: delivered, DT: dt}, true
}

// SoftReset restores the configured baseline state of charge.
func (s *State) SoftReset() {
	s.power = 0
	s.energy = s.capacity * s.baselineSoC
	s.updateSoC()
}

// HardReset fills the battery.
func (s *State) HardReset() {
	s.power = 0
	s.energy = s.capacity
	s.soc = 1
}

// SetMaxChargePower updates the charge rating.
func (s *State) SetMaxChargePower(kw float64) error {
	if err := checkPositive("max_charge_kw", kw); err != nil {
		return err
	}
	s.maxCharge = kw
	return nil
}

// SetMaxDischargePower updates the discharge rating.
func (s *State) SetMaxDischargePower(kw float64) error {
	if err := checkPositive("max_discharge_kw", kw); err != nil {
		return err
	}
	s.maxDischarge = kw
	return nil
}

// SetCapacity updates the capacity and clamps stored energy to it.
func (s *State) SetCapacity(kwh float64) error {
	if err := checkPositive("capacity_kwh", kwh); err != nil {
		return err
	}
	s.capacity = kwh
	if s.energy > kwh {
		s.energy = kwh
	}
	s.updateSoC()
	return nil
}

// SetSoC sets both the baseline and the current state of charge.
func (s *State) SetSoC(soc float64) error {
	if err := checkSoC(soc); err != nil {
		return err
	}
	s.baselineSoC = soc
	s.energy = s.capacity * soc
	s.soc = soc
	return nil
}

// Reconfigure replaces all ratings and hard-resets.
func (s *State) Reconfigure(p Params) error {
	if p.MaxDischargeKW == 0 {
		p.MaxDischargeKW = p.MaxChargeKW
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Name != "" {
		s.name = p.Name
	}
	s.capacity = p.CapacityKWh
	s.maxCharge = p.MaxChargeKW
	s.maxDischarge = p.MaxDischargeKW
	s.HardReset()
	return nil
}

// ReconfigurePreset applies a named preset and hard-resets.
func (s *State) ReconfigurePreset(name string) error {
	p, err := LookupPreset(name)
	if err != nil {
		return err
	}
	return s.Reconfigure(p)
}

func (s *State) updateSoC() {
	s.soc = s.energy / s.capacity
}

func checkPositive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ConfigurationError{Field: field, Value: v, Reason: "must be finite"}
	}
	if v <= 0 {
		return &ConfigurationError{Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

func checkSoC(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ConfigurationError{Field: "soc", Value: v, Reason: "must be within [0,1]"}
	}
	return nil
}
