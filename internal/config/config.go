// Package config loads the YAML configuration of a repack job: which packages
// to read, where to write the combined package, and how to scale it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/philipparndt/scene3mf/internal/units"
)

// Config describes one repack job.
type Config struct {
	// Inputs are the 3MF packages to read, in order.
	Inputs []string `yaml:"inputs"`
	// Output is the 3MF package to write.
	Output string `yaml:"output"`
	// Unit is the working length unit, one of the supported scene units.
	// Empty means millimeter.
	Unit string `yaml:"unit"`
	// Scale is an extra scale factor applied on import. Zero means 1.
	Scale float64 `yaml:"scale"`
	// Precision is the number of decimals written for vertex coordinates.
	// Zero means the exporter default.
	Precision int `yaml:"precision"`
}

// Loader handles loading and validating YAML configuration files
type Loader struct{}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a YAML configuration file
func (l *Loader) Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Convert relative paths to absolute paths (relative to config file)
	absConfigDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path of config directory: %w", err)
	}
	for i, input := range config.Inputs {
		if !filepath.IsAbs(input) {
			config.Inputs[i] = filepath.Join(absConfigDir, input)
		}
	}
	if !filepath.IsAbs(config.Output) {
		config.Output = filepath.Join(absConfigDir, config.Output)
	}

	return &config, nil
}

// Validate checks if the configuration is valid and fills in defaults
func (l *Loader) Validate(config *Config) error {
	if config.Output == "" {
		return fmt.Errorf("output file must be specified")
	}
	if len(config.Inputs) == 0 {
		return fmt.Errorf("at least one input file must be specified")
	}
	for i, input := range config.Inputs {
		if input == "" {
			return fmt.Errorf("input %d: file path is empty", i+1)
		}
	}
	if config.Scale < 0 {
		return fmt.Errorf("scale must be positive")
	}
	if config.Precision < 0 || config.Precision > 12 {
		return fmt.Errorf("precision must be 0-12")
	}
	if config.Unit == "" {
		config.Unit = "millimeter"
	} else if _, ok := units.SceneToMetre[config.Unit]; !ok {
		return fmt.Errorf("unknown unit: %s", config.Unit)
	}
	return nil
}
