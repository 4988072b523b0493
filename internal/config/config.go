// Package config loads .railsrel.yml.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/railsrel/internal/discover"
	"github.com/phobologic/railsrel/internal/graph"
	"github.com/phobologic/railsrel/internal/pathfind"
)

// FileName is the config file looked up in the application root.
const FileName = ".railsrel.yml"

// DefaultMaxFileSize skips model files larger than this many bytes.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// Config represents .railsrel.yml.
type Config struct {
	ModelsDir   string   `yaml:"models_dir"`
	BaseClasses []string `yaml:"base_classes"`
	Exclude     []string `yaml:"exclude"`
	MaxDepth    int      `yaml:"max_depth"`
	MaxSteps    int      `yaml:"max_steps"`
	MaxFileSize int      `yaml:"max_file_size"`
}

// Default returns a config with the built-in defaults.
func Default() *Config {
	return &Config{
		ModelsDir:   discover.DefaultModelsDir,
		BaseClasses: append([]string(nil), graph.DefaultBaseClasses...),
		MaxDepth:    pathfind.DefaultMaxDepth,
		MaxSteps:    pathfind.DefaultMaxSteps,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Load reads the config at path. A missing file yields Default(); keys the
// file leaves out keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return errors.New("models_dir must not be empty")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth %d is negative", c.MaxDepth)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("max_steps %d must be positive", c.MaxSteps)
	}
	if c.MaxFileSize < 1 {
		return fmt.Errorf("max_file_size %d must be positive", c.MaxFileSize)
	}
	return nil
}
