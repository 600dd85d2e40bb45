package model

import (
	"errors"
	"fmt"
	"time"
)

// DefaultStep is assumed for series too short to derive a sampling interval.
const DefaultStep = 15 * time.Minute

// ErrInvalidSeries is returned for unsorted or unevenly spaced series.
var ErrInvalidSeries = errors.New("invalid load series")

// Sample is one point of a load profile. PowerKW is positive for net
// consumption and negative for net production. Block is the tariff block
// (1..5) or 0 when unlabelled.
type Sample struct {
	Time    time.Time `json:"timestamp"`
	PowerKW float64   `json:"power_kw"`
	Block   int       `json:"block,omitempty"`
}

// Series is an ordered, evenly spaced load profile.
type Series struct {
	Samples []Sample
	step    time.Duration
}

// NewSeries copies samples into a Series without validating them.
func NewSeries(samples []Sample) *Series {
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	return &Series{Samples: cp}
}

// FromValues builds a series starting at start with a fixed step.
func FromValues(start time.Time, step time.Duration, powers []float64) *Series {
	s := &Series{Samples: make([]Sample, len(powers)), step: step}
	for i, p := range powers {
		s.Samples[i] = Sample{Time: start.Add(time.Duration(i) * step), PowerKW: p}
	}
	return s
}

// Clone returns a deep copy keeping the derived step.
func (s *Series) Clone() *Series {
	c := NewSeries(s.Samples)
	c.step = s.step
	return c
}

// Len returns the number of samples.
func (s *Series) Len() int { return len(s.Samples) }

// Validate checks that timestamps are strictly increasing and evenly spaced
// and that block labels are within range. It does not modify s, so one
// series can be validated by concurrent runs.
func (s *Series) Validate() error {
	if len(s.Samples) == 0 {
		return fmt.Errorf("%w: no samples", ErrInvalidSeries)
	}
	var step time.Duration
	for i, smp := range s.Samples {
		if smp.Block < 0 || smp.Block > 5 {
			return fmt.Errorf("%w: sample %d has block %d", ErrInvalidSeries, i, smp.Block)
		}
		if i == 0 {
			continue
		}
		d := smp.Time.Sub(s.Samples[i-1].Time)
		if d <= 0 {
			return fmt.Errorf("%w: timestamps not increasing at %s", ErrInvalidSeries, smp.Time.Format(time.RFC3339))
		}
		if i == 1 {
			step = d
		} else if d != step {
			return fmt.Errorf("%w: uneven step %s at %s (expected %s)", ErrInvalidSeries, d, smp.Time.Format(time.RFC3339), step)
		}
	}
	return nil
}

// Step returns the sampling interval.
func (s *Series) Step() time.Duration {
	if s.step > 0 {
		return s.step
	}
	if len(s.Samples) > 1 {
		return s.Samples[1].Time.Sub(s.Samples[0].Time)
	}
	return DefaultStep
}

// DT returns the sampling interval in hours, the factor used for all energy
// integration.
func (s *Series) DT() float64 { return s.Step().Hours() }

// Powers returns the power column.
func (s *Series) Powers() []float64 {
	out := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.PowerKW
	}
	return out
}

// Blocks returns the tariff block column.
func (s *Series) Blocks() []int {
	out := make([]int, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Block
	}
	return out
}

// Labelled reports whether every sample carries a tariff block.
func (s *Series) Labelled() bool {
	for _, smp := range s.Samples {
		if smp.Block == 0 {
			return false
		}
	}
	return len(s.Samples) > 0
}

// Slice returns a series sharing the samples in [i,j).
func (s *Series) Slice(i, j int) *Series {
	return &Series{Samples: s.Samples[i:j], step: s.Step()}
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

func (k MonthKey) String() string { return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month)) }

// SplitMonths cuts the series into consecutive calendar months. A sample is
// attributed to the month in which its interval starts, i.e. the month of
// Time minus one step, so a sample stamped at midnight on the first belongs
// to the previous month.
func (s *Series) SplitMonths() ([]MonthKey, []*Series) {
	step := s.Step()
	var keys []MonthKey
	var parts []*Series
	start := 0
	for i, smp := range s.Samples {
		t := smp.Time.Add(-step)
		k := MonthKey{Year: t.Year(), Month: t.Month()}
		if len(keys) == 0 {
			keys = append(keys, k)
			continue
		}
		if k != keys[len(keys)-1] {
			parts = append(parts, s.Slice(start, i))
			keys = append(keys, k)
			start = i
		}
	}
	if len(keys) > 0 {
		parts = append(parts, s.Slice(start, len(s.Samples)))
	}
	return keys, parts
}
