// Package config loads yarnspec settings from ~/.yarnspec/config.yaml and
// the environment.
package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config holds every setting of the resolver, the shell and the CLI.
type Config struct {
	// YarnBinary is the package manager executable (yarnBinary).
	YarnBinary string `yaml:"yarnBinary"`

	// Icon decorates every suggested script (icon).
	Icon string `yaml:"icon"`

	// LogLevel controls logging verbosity (logLevel).
	LogLevel string `yaml:"logLevel"`

	// LogFile overrides the log location (logFile). Empty means the data dir.
	LogFile string `yaml:"logFile"`

	// MaxParallelReads bounds concurrent manifest reads (maxParallelReads).
	// Zero means unbounded.
	MaxParallelReads int `yaml:"maxParallelReads"`

	// Timeout bounds one resolution (timeout). Zero waits forever.
	Timeout time.Duration `yaml:"timeout"`

	// KillTimeout is the grace period between SIGINT and SIGKILL for a
	// cancelled command (killTimeout).
	KillTimeout time.Duration `yaml:"killTimeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		YarnBinary:       "yarn",
		Icon:             "✨",
		LogLevel:         "info",
		MaxParallelReads: 8,
		KillTimeout:      2 * time.Second,
	}
}

// Level parses LogLevel into a zap level.
func (c *Config) Level() (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.YarnBinary == "" {
		return fmt.Errorf("yarnBinary must not be empty")
	}
	if c.MaxParallelReads < 0 {
		return fmt.Errorf("maxParallelReads must not be negative, got %d", c.MaxParallelReads)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}
