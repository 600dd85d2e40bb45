package config

import (
	"fmt"

	"github.com/kilianp07/bessim/pkg/export"
)

// OutputConfig controls where results are written.
type OutputConfig struct {
	// Dir receives result files; empty writes to stdout.
	Dir string `json:"dir"`
	// Format is csv, json or html.
	Format string `json:"format"`
	// Chart also writes an HTML chart next to the result file.
	Chart bool `json:"chart"`
}

// SetDefaults picks JSON output.
func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = string(export.FormatJSON)
	}
}

// Validate checks the format.
func (c OutputConfig) Validate() error {
	if _, err := export.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	return nil
}
