// Package config loads the runtime configuration from weave.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up by LoadOptional callers.
const FileName = "weave.yaml"

// SupportedMajor is the configuration schema major version this build reads.
const SupportedMajor = "v1"

// Config is the runtime configuration.
type Config struct {
	Version   string          `yaml:"version" validate:"required"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Debug     DebugConfig     `yaml:"debug"`
}

// SchedulerConfig sizes the worker pools and async lanes.
type SchedulerConfig struct {
	// SyncWorkers bounds the goroutines a sync pass forks onto.
	SyncWorkers int `yaml:"syncWorkers" validate:"gte=1,lte=1024"`
	// AsyncWorkers bounds concurrently running async build tasks.
	AsyncWorkers int `yaml:"asyncWorkers" validate:"gte=1,lte=1024"`
	// AsyncLanes is the number of async lanes; lane 0 is the sync lane.
	AsyncLanes      int           `yaml:"asyncLanes" validate:"gte=1,lte=63"`
	DefaultDeadline time.Duration `yaml:"defaultDeadline" validate:"gt=0"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// MetricsConfig controls the Prometheus registry of the scheduler.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// TracingConfig controls the frame phase spans.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DebugConfig controls the debug HTTP server. An empty Addr disables it.
type DebugConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Scheduler: SchedulerConfig{
			SyncWorkers:     4,
			AsyncWorkers:    4,
			AsyncLanes:      4,
			DefaultDeadline: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "weave"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, returning the defaults if path does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks field constraints and the schema version.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return checkVersion(c.Version)
}

func checkVersion(v string) error {
	canonical := v
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return fmt.Errorf("invalid config: version %q is not a semantic version", v)
	}
	if major := semver.Major(canonical); major != SupportedMajor {
		return fmt.Errorf("invalid config: version %q has major %s, want %s", v, major, SupportedMajor)
	}
	return nil
}
