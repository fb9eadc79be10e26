// Package config loads bake configuration from YAML with the usual
// precedence: built-in defaults, then the config file, then CLI flags.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"navbake"
	"navbake/internal/logger"
)

// Logging configures the bake tools' logger.
type Logging struct {
	Level string            `yaml:"level"`
	File  logger.FileConfig `yaml:"file"`
}

// Config is the full bake configuration file.
type Config struct {
	Build   navbake.BuildOptions `yaml:"build"`
	Logging Logging              `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Build: navbake.DefaultBuildOptions(),
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the config file at path on top of the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// finish resolves serialized forms into their runtime values.
func (c *Config) finish() error {
	if c.Build.PartitionName != "" {
		p, err := navbake.ParsePartitionMethod(c.Build.PartitionName)
		if err != nil {
			return err
		}
		c.Build.Partition = p
	}
	return nil
}

// NewLogger builds the logger described by the config.
func (c *Config) NewLogger(console bool) *zap.Logger {
	return logger.New(c.Logging.Level, c.Logging.File, console)
}
