// Package config provides configuration loading and management for petgeom.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"petgeom/pkg/listmode"
	"petgeom/pkg/projdata"
	"petgeom/pkg/scanner"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Scanner selects a known model by name, or describes a custom one.
	// Custom fields override the named model when both are given.
	Scanner scanner.Scanner `yaml:"scanner"`

	// Projection data layout
	Projection struct {
		// MaxRingDifference bounds the segments; -1 means NumRings-1
		MaxRingDifference int `yaml:"maxRingDifference"`

		// NumViews; 0 means half the detectors per ring
		NumViews int `yaml:"numViews"`

		// NumTangentialPositions; 0 means one less than the detectors per ring
		NumTangentialPositions int `yaml:"numTangentialPositions"`
	} `yaml:"projection"`

	// ListMode describes how coincidence records map onto detectors
	ListMode struct {
		Layout listmode.Layout `yaml:"layout"`
		Filter listmode.Filter `yaml:"filter"`
	} `yaml:"listmode"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for histogramming
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir is where sinograms and plots are written
		Dir string `yaml:"dir"`

		// Plots enables heat map output next to the PNG sinograms
		Plots bool `yaml:"plots"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Scanner.Name = "ECAT 962"

	cfg.Projection.MaxRingDifference = -1
	cfg.Projection.NumViews = 0
	cfg.Projection.NumTangentialPositions = 0

	cfg.ListMode.Layout = listmode.DefaultLayout()
	cfg.ListMode.Filter = listmode.DefaultFilter()

	cfg.Processing.NumCores = runtime.NumCPU()

	cfg.Output.Dir = "output"
	cfg.Output.Plots = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

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

// Validate checks the settings that do not depend on the scanner and that
// the scanner itself resolves
func (c *Config) Validate() error {
	if _, err := c.BuildScanner(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Projection.MaxRingDifference < -1 {
		return fmt.Errorf("%w: maxRingDifference %d", ErrInvalidConfig, c.Projection.MaxRingDifference)
	}
	if c.Projection.NumViews < 0 || c.Projection.NumTangentialPositions < 0 {
		return fmt.Errorf("%w: negative view or tangential count", ErrInvalidConfig)
	}
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("%w: numCores must be at least 1, got %d", ErrInvalidConfig, c.Processing.NumCores)
	}
	if err := c.ListMode.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.ListMode.Filter.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// BuildScanner resolves the scanner section. A name alone selects a known
// model; any non-zero custom field replaces the model's value. A known model
// whose every field is replaced by different values is reported as "custom".
func (c *Config) BuildScanner() (*scanner.Scanner, error) {
	s := &scanner.Scanner{Name: c.Scanner.Name}
	var model *scanner.Scanner
	if c.Scanner.Name != "" {
		if known, err := scanner.Lookup(c.Scanner.Name); err == nil {
			model = known
			copied := *known
			s = &copied
		} else if c.Scanner.NumDetectorsPerRing == 0 {
			return nil, err
		}
	}

	if c.Scanner.NumDetectorsPerRing != 0 {
		s.NumDetectorsPerRing = c.Scanner.NumDetectorsPerRing
	}
	if c.Scanner.NumRings != 0 {
		s.NumRings = c.Scanner.NumRings
	}
	if c.Scanner.RingRadius != 0 {
		s.RingRadius = c.Scanner.RingRadius
	}
	if c.Scanner.RingSpacing != 0 {
		s.RingSpacing = c.Scanner.RingSpacing
	}
	allOverridden := c.Scanner.NumDetectorsPerRing != 0 && c.Scanner.NumRings != 0 &&
		c.Scanner.RingRadius != 0 && c.Scanner.RingSpacing != 0
	if s.Name == "" || (model != nil && allOverridden && *s != *model) {
		s.Name = "custom"
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// BuildProjection resolves the scanner and the projection section into a
// no-arc-correction mapping, filling in defaults derived from the scanner
func (c *Config) BuildProjection() (*projdata.NoArcCorr, error) {
	s, err := c.BuildScanner()
	if err != nil {
		return nil, err
	}

	maxRingDiff := c.Projection.MaxRingDifference
	if maxRingDiff < 0 {
		maxRingDiff = s.NumRings - 1
	}
	numViews := c.Projection.NumViews
	if numViews == 0 {
		numViews = s.NumDetectorsPerRing / 2
	}
	numTangential := c.Projection.NumTangentialPositions
	if numTangential == 0 {
		numTangential = s.NumDetectorsPerRing - 1
	}

	cyl, err := projdata.NewCylindrical(s, maxRingDiff, numViews, numTangential)
	if err != nil {
		return nil, err
	}
	return projdata.NewNoArcCorr(cyl)
}
