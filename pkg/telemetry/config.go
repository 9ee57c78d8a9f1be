// ABOUTME: Configuration for the metrics-only telemetry provider, with environment overrides
// ABOUTME: There is no exporter here; New returns the no-op Telemetry, and stats surface through the stats collector

package telemetry

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for the telemetry provider. Quiver is an
// embedded engine with no server process to export metrics from; no
// exporter is configured, and New returns the no-op Telemetry for every
// valid Config.
type Config struct {
	// ServiceName identifies the embedding process; Validate requires it
	// to be non-empty.
	ServiceName string `json:"service_name"`

	// Enabled makes New validate the config before returning; the
	// returned Telemetry is the no-op one either way.
	Enabled bool `json:"enabled"`

	// SampleRate is the trace sampling rate (0.0 to 1.0). Validate checks
	// its range; nothing else reads it.
	SampleRate float64 `json:"sample_rate"`
}

// DefaultConfig returns a configuration with telemetry disabled, matching
// the engine's default of running with no observability overhead.
func DefaultConfig() Config {
	return Config{
		ServiceName: "quiver",
		Enabled:     false,
		SampleRate:  1.0,
	}
}

// LoadFromEnv overrides defaults from environment variables.
func (c *Config) LoadFromEnv() {
	if val := os.Getenv("QUIVER_TELEMETRY_SERVICE_NAME"); val != "" {
		c.ServiceName = val
	}
	if val := os.Getenv("QUIVER_TELEMETRY_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Enabled = enabled
		}
	}
	if val := os.Getenv("QUIVER_TELEMETRY_SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.SampleRate = rate
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name cannot be empty")
	}
	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return fmt.Errorf("sample_rate must be between 0.0 and 1.0, got %f", c.SampleRate)
	}
	return nil
}
