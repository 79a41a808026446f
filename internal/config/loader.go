package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvLogLevel   = "YARNSPEC_LOG_LEVEL"
	EnvYarnBinary = "YARNSPEC_YARN_BINARY"
	EnvTimeout    = "YARNSPEC_TIMEOUT"
)

// Loader handles loading and parsing of config.yaml files.
type Loader struct {
	logger *zap.Logger
	lookup func(string) (string, bool)
}

// NewLoader creates a new configuration loader reading overrides from the
// process environment.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
		lookup: os.LookupEnv,
	}
}

// LoadFromFile loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration with no error.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("config file not found, using defaults", zap.String("path", path))
			return l.applyEnv(DefaultConfig())
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.LoadFromString(string(content))
}

// LoadFromString loads configuration from YAML source. Unset keys keep their
// defaults.
func (l *Loader) LoadFromString(source string) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(source), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return l.applyEnv(cfg)
}

func (l *Loader) applyEnv(cfg *Config) (*Config, error) {
	if v, ok := l.lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := l.lookup(EnvYarnBinary); ok && v != "" {
		cfg.YarnBinary = v
	}
	if v, ok := l.lookup(EnvTimeout); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
