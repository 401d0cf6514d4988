// Package config provides configuration loading and management for acpc.
// It handles loading configuration from YAML or TOML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"acpctool/pkg/acpc"
)

// Config represents the application configuration
type Config struct {
	// Alignment parameters
	Alignment struct {
		// Center is the landmark placed at the origin: MC, AC or PC
		Center string `yaml:"center" toml:"center"`

		// Tolerance is the minimum AC-PC length and midline offset in mm
		Tolerance float64 `yaml:"tolerance" toml:"tolerance"`

		// OrientMidlineSuperior keeps +Z superior when the midline point was
		// placed below the AC-PC line
		OrientMidlineSuperior bool `yaml:"orientMidlineSuperior" toml:"orientMidlineSuperior"`
	} `yaml:"alignment" toml:"alignment"`

	// Input files
	Input struct {
		// LineFile is a markups file holding the AC-PC line
		LineFile string `yaml:"lineFile" toml:"lineFile"`

		// MidlineFile is a markups file holding one or more midline points
		MidlineFile string `yaml:"midlineFile" toml:"midlineFile"`

		// LandmarksFile is a single point list with AC, PC and MS labels.
		// It is used instead of LineFile and MidlineFile when set.
		LandmarksFile string `yaml:"landmarksFile" toml:"landmarksFile"`
	} `yaml:"input" toml:"input"`

	// Output parameters
	Output struct {
		// TransformFile is where the ITK transform is written (.tfm)
		TransformFile string `yaml:"transformFile" toml:"transformFile"`

		// ReportFile is where the JSON report is written; empty disables it
		ReportFile string `yaml:"reportFile" toml:"reportFile"`

		// TransformedDir receives copies of the input markups mapped into
		// AC-PC space; empty disables it
		TransformedDir string `yaml:"transformedDir" toml:"transformedDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose" toml:"verbose"`
	} `yaml:"output" toml:"output"`

	// Watch parameters for real-time updates
	Watch struct {
		// Debounce is how long to wait for writes to settle before recomputing
		Debounce Duration `yaml:"debounce" toml:"debounce"`
	} `yaml:"watch" toml:"watch"`
}

// Duration is a time.Duration written as text ("200ms") so YAML and TOML
// files accept the same values
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Alignment.Center = string(acpc.CenterMC)
	cfg.Alignment.Tolerance = acpc.DefaultTolerance
	cfg.Alignment.OrientMidlineSuperior = true

	cfg.Output.TransformFile = "acpc.tfm"
	cfg.Output.Verbose = false

	cfg.Watch.Debounce = Duration(200 * time.Millisecond)

	return cfg
}

// Validate checks the values that cannot be caught by decoding
func (c *Config) Validate() error {
	if _, err := acpc.ParseCenter(c.Alignment.Center); err != nil {
		return err
	}
	if c.Alignment.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %g", c.Alignment.Tolerance)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("debounce must be non-negative, got %s", c.Watch.Debounce)
	}
	return nil
}

// CalculatorOptions converts the alignment section to calculator options
func (c *Config) CalculatorOptions() (acpc.Options, error) {
	center, err := acpc.ParseCenter(c.Alignment.Center)
	if err != nil {
		return acpc.Options{}, err
	}
	return acpc.Options{
		Center:                center,
		Tolerance:             c.Alignment.Tolerance,
		OrientMidlineSuperior: c.Alignment.OrientMidlineSuperior,
	}, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by
// extension. If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
