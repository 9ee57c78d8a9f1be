// ABOUTME: Tests for telemetry configuration validation, environment variable loading, and default values
// ABOUTME: Ensures configuration behaves correctly with valid and invalid inputs using real config operations

package telemetry

import (
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "quiver" {
		t.Errorf("Expected default service name 'quiver', got '%s'", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("Expected telemetry to be disabled by default")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid default config", DefaultConfig(), false},
		{"empty service name", Config{ServiceName: "", SampleRate: 1.0}, true},
		{"negative sample rate", Config{ServiceName: "test", SampleRate: -0.1}, true},
		{"sample rate too high", Config{ServiceName: "test", SampleRate: 1.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	envVars := []string{
		"QUIVER_TELEMETRY_SERVICE_NAME",
		"QUIVER_TELEMETRY_ENABLED",
		"QUIVER_TELEMETRY_SAMPLE_RATE",
	}
	original := make(map[string]string)
	for _, v := range envVars {
		original[v] = os.Getenv(v)
	}
	defer func() {
		for _, v := range envVars {
			os.Setenv(v, original[v])
		}
	}()

	os.Setenv("QUIVER_TELEMETRY_SERVICE_NAME", "test-service")
	os.Setenv("QUIVER_TELEMETRY_ENABLED", "true")
	os.Setenv("QUIVER_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "test-service" {
		t.Errorf("Expected service name 'test-service', got '%s'", cfg.ServiceName)
	}
	if !cfg.Enabled {
		t.Error("Expected telemetry to be enabled")
	}
	if cfg.SampleRate != 0.5 {
		t.Errorf("Expected sample rate 0.5, got %f", cfg.SampleRate)
	}
}

func TestConfigLoadFromEnvInvalidValuesIgnored(t *testing.T) {
	original := os.Getenv("QUIVER_TELEMETRY_SAMPLE_RATE")
	defer os.Setenv("QUIVER_TELEMETRY_SAMPLE_RATE", original)

	os.Setenv("QUIVER_TELEMETRY_SAMPLE_RATE", "not-a-float")
	cfg := DefaultConfig()
	want := cfg.SampleRate
	cfg.LoadFromEnv()
	if cfg.SampleRate != want {
		t.Error("invalid sample rate string should not change the value")
	}
}
