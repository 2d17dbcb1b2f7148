// Package config provides configuration loading and management for bgsuppress.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bgsuppress/internal/logger"
	"bgsuppress/pkg/intensity"
	"bgsuppress/pkg/marker"
	"bgsuppress/pkg/pipeline"
	"bgsuppress/pkg/visualization"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// WindowSize is the number of recent frames the background is estimated from
		WindowSize int `yaml:"windowSize"`

		// Threshold is the z-score above which a pixel is marked
		Threshold float64 `yaml:"threshold"`

		// Policy is the colour to intensity reduction (average or single-channel)
		Policy intensity.Policy `yaml:"policy"`

		// Depth is the processing depth (full or decode-only)
		Depth pipeline.Depth `yaml:"depth"`
	} `yaml:"analysis"`

	// Input parameters
	Input struct {
		// Dir is the directory holding the frame images
		Dir string `yaml:"dir"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Save enables writing one image per analysed frame
		Save bool `yaml:"save"`

		// Dir is where mask images are written
		Dir string `yaml:"dir"`

		// Format is the image format of written masks (png or bmp)
		Format string `yaml:"format"`

		// Mode is what gets written: the binary mask or an overlay on the frame
		Mode string `yaml:"mode"`
	} `yaml:"output"`

	// Log parameters
	Log struct {
		// Level is the minimum level written (debug, info, warn, error)
		Level string `yaml:"level"`

		// JSON switches from console output to JSON lines
		JSON bool `yaml:"json"`
	} `yaml:"log"`

	// Metrics parameters
	Metrics struct {
		// File is where run metrics are written in Prometheus text format;
		// empty disables it
		File string `yaml:"file"`
	} `yaml:"metrics"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.WindowSize = pipeline.DefaultWindowSize
	cfg.Analysis.Threshold = marker.DefaultThreshold
	cfg.Analysis.Policy = intensity.Average
	cfg.Analysis.Depth = pipeline.FullStatistics

	cfg.Output.Save = false
	cfg.Output.Dir = "masks"
	cfg.Output.Format = string(visualization.FormatPNG)
	cfg.Output.Mode = string(visualization.ModeMask)

	cfg.Log.Level = "info"

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
	return SaveConfig(DefaultConfig(), configPath)
}

// Params returns the pipeline parameters described by the configuration
func (c *Config) Params() *pipeline.Params {
	return &pipeline.Params{
		WindowSize: c.Analysis.WindowSize,
		Threshold:  c.Analysis.Threshold,
		Policy:     c.Analysis.Policy,
		Depth:      c.Analysis.Depth,
	}
}

// Validate reports the first setting that would prevent a run
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Input.Dir == "" {
		return fmt.Errorf("%w: input directory is required", ErrInvalid)
	}
	if _, err := visualization.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := visualization.ParseMode(c.Output.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Output.Save && c.Output.Dir == "" {
		return fmt.Errorf("%w: output directory is required when saving", ErrInvalid)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
