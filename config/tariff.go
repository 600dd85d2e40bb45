package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/bessim/core/tariff"
)

// TariffConfig tunes the tariff block classifier.
type TariffConfig struct {
	// HighSeasonMonths as month numbers; empty keeps October to March.
	HighSeasonMonths []int `json:"high_season_months"`
	// ShiftMinutes moves timestamps back before lookup; zero means one
	// sampling step.
	ShiftMinutes int `json:"shift_minutes"`
	// Timezone for reading wall-clock hours, e.g. "Europe/Ljubljana".
	Timezone string `json:"timezone"`
	// ExtraHolidays as YYYY-MM-DD dates.
	ExtraHolidays []string `json:"extra_holidays"`
}

// Validate checks months, timezone and dates.
func (c TariffConfig) Validate() error {
	_, err := c.Classifier()
	return err
}

// Classifier builds the classifier.
func (c TariffConfig) Classifier() (*tariff.Classifier, error) {
	months, err := tariff.ParseMonths(c.HighSeasonMonths)
	if err != nil {
		return nil, err
	}
	if c.ShiftMinutes < 0 {
		return nil, fmt.Errorf("shift_minutes must be >= 0")
	}
	cfg := tariff.Config{
		HighSeason: months,
		Shift:      time.Duration(c.ShiftMinutes) * time.Minute,
	}
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		cfg.Location = loc
	}
	for _, d := range c.ExtraHolidays {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return nil, fmt.Errorf("extra holiday %q: %w", d, err)
		}
		cfg.ExtraHolidays = append(cfg.ExtraHolidays, t)
	}
	return tariff.New(cfg), nil
}
