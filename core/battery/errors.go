package battery

import (
	"errors"
	"fmt"
)

// ErrConfiguration is returned when static battery parameters are invalid.
var ErrConfiguration = errors.New("invalid battery configuration")

// ConfigurationError describes which parameter was rejected.
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("battery %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// Direction tells whether a clamp happened while charging or discharging.
type Direction int

const (
	Charging Direction = iota
	Discharging
)

func (d Direction) String() string {
	if d == Discharging {
		return "discharge"
	}
	return "charge"
}

// Clamp reports a step that requested more power than the battery could
// absorb or deliver within dt. It is informational, never fatal.
type Clamp struct {
	Direction Direction
	Requested float64
	Delivered float64
	DT        float64
}

func (c Clamp) String() string {
	return fmt.Sprintf("capacity exceeded: %s %.3f kW for %.3f h, delivered %.3f kW",
		c.Direction, c.Requested, c.DT, c.Delivered)
}
