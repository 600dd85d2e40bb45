package config

import "fmt"

// SentryConfig enables error reporting to Sentry. An empty DSN disables it.
type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment"`
	Release     string `json:"release"`
	ServerName  string `json:"server_name"`
	// SampleRate keeps this fraction of events; zero keeps all of them.
	SampleRate float64 `json:"sample_rate"`
	// Tags are attached to every reported event, e.g. the site name.
	Tags map[string]string `json:"tags"`
}

// Validate checks the sample rate.
func (c SentryConfig) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be within [0, 1], got %g", c.SampleRate)
	}
	return nil
}
