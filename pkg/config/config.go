// Package config provides configuration loading and management for
// afids-apply. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Run parameters controlling candidate generation and scheduling
	Run struct {
		// Padding is the number of voxels added when zero-padding subject
		// images during feature extraction
		Padding int `yaml:"padding"`

		// Size is the factor subject images were resampled by
		Size int `yaml:"size"`

		// SamplingRate is the number of voxels sampled in both directions
		// along each axis; it must match the rate the models were trained
		// with and is part of each model's filename
		SamplingRate int `yaml:"samplingRate"`

		// Workers bounds how many landmarks are processed concurrently;
		// 1 forces a fully sequential run
		Workers int `yaml:"workers"`

		// DeadlineSeconds bounds each landmark's locate call; 0 disables
		// the deadline
		DeadlineSeconds int `yaml:"deadlineSeconds"`
	} `yaml:"run"`

	// Paths to the trained models and the feature-offset archive
	Paths struct {
		// ModelDir is the directory holding one trained model per landmark
		ModelDir string `yaml:"modelDir"`

		// FeatureOffsets is the .npz archive with the two offset arrays
		FeatureOffsets string `yaml:"featureOffsets"`

		// Output is where the predicted fiducial table is written
		Output string `yaml:"output"`
	} `yaml:"paths"`

	// Output parameters
	Output struct {
		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Defaults match the reference pipeline
	cfg.Run.Padding = 0
	cfg.Run.Size = 1
	cfg.Run.SamplingRate = 5
	cfg.Run.Workers = runtime.NumCPU()
	cfg.Run.DeadlineSeconds = 0

	cfg.Paths.Output = "afids_predicted.fcsv"

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
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

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
