// Package config handles configuration loading for skein.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/skein-dev/skein/internal/executor"
	"github.com/skein-dev/skein/internal/memory"
)

// Config holds all configuration for skein.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Server    ServerConfig    `mapstructure:"server"`
	Learning  LearningConfig  `mapstructure:"learning"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes API calls through AWS Bedrock.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// RoutingConfig holds model routing settings.
type RoutingConfig struct {
	// Enabled turns on tier-based model selection.
	Enabled bool `mapstructure:"enabled"`
	// DefaultModel overrides the model used when routing is disabled.
	DefaultModel string `mapstructure:"default_model"`
}

// ExecutorConfig holds parallel dispatch settings.
type ExecutorConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Throttle       time.Duration `mapstructure:"throttle"`
}

// MemoryConfig holds coordination store persistence settings.
type MemoryConfig struct {
	// SnapshotPath is the SQLite database for store snapshots. Empty
	// disables persistence.
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// ServerConfig holds status server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LearningConfig holds fleet learning settings.
type LearningConfig struct {
	// Enabled turns on trajectory capture for all manifest agents.
	Enabled bool `mapstructure:"enabled"`
}

// Policy converts the executor section to an executor policy,
// filling gaps with the executor's defaults.
func (c ExecutorConfig) Policy() executor.Policy {
	p := executor.DefaultPolicy()
	if c.Concurrency > 0 {
		p.Concurrency = c.Concurrency
	}
	if c.AttemptTimeout > 0 {
		p.AttemptTimeout = c.AttemptTimeout
	}
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.Backoff > 0 {
		p.Backoff = c.Backoff
	}
	if c.MaxBackoff > 0 {
		p.MaxBackoff = c.MaxBackoff
	}
	if c.Throttle > 0 {
		p.Throttle = c.Throttle
	}
	return p
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, SKEIN_*)
// 2. Project config (.skein.yaml in current directory or a parent)
// 3. User config (~/.config/skein/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SKEIN")
	v.AutomaticEnv()

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")
	v.BindEnv("server.addr", "SKEIN_SERVER_ADDR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Memory.SnapshotPath = expandEnv(cfg.Memory.SnapshotPath)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Memory.SnapshotPath = expandEnv(cfg.Memory.SnapshotPath)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("routing.enabled", cfg.Routing.Enabled)
	v.Set("routing.default_model", cfg.Routing.DefaultModel)
	v.Set("executor.concurrency", cfg.Executor.Concurrency)
	v.Set("executor.attempt_timeout", cfg.Executor.AttemptTimeout.String())
	v.Set("executor.max_attempts", cfg.Executor.MaxAttempts)
	v.Set("executor.backoff", cfg.Executor.Backoff.String())
	v.Set("executor.max_backoff", cfg.Executor.MaxBackoff.String())
	v.Set("executor.throttle", cfg.Executor.Throttle.String())
	v.Set("memory.snapshot_path", cfg.Memory.SnapshotPath)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("learning.enabled", cfg.Learning.Enabled)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("routing.enabled", true)
	v.SetDefault("routing.default_model", "")

	p := executor.DefaultPolicy()
	v.SetDefault("executor.concurrency", p.Concurrency)
	v.SetDefault("executor.attempt_timeout", p.AttemptTimeout.String())
	v.SetDefault("executor.max_attempts", p.MaxAttempts)
	v.SetDefault("executor.backoff", p.Backoff.String())
	v.SetDefault("executor.max_backoff", p.MaxBackoff.String())
	v.SetDefault("executor.throttle", "0s")

	v.SetDefault("memory.snapshot_path", memory.DefaultSnapshotPath())

	v.SetDefault("server.addr", "127.0.0.1:7420")

	v.SetDefault("learning.enabled", false)
}

// getUserConfigDir returns the XDG config directory for skein.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "skein")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "skein")
	}
	return filepath.Join(home, ".config", "skein")
}

// findProjectConfig searches for .skein.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".skein.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	p := executor.DefaultPolicy()
	return &Config{
		Routing: RoutingConfig{Enabled: true},
		Executor: ExecutorConfig{
			Concurrency:    p.Concurrency,
			AttemptTimeout: p.AttemptTimeout,
			MaxAttempts:    p.MaxAttempts,
			Backoff:        p.Backoff,
			MaxBackoff:     p.MaxBackoff,
		},
		Memory: MemoryConfig{SnapshotPath: memory.DefaultSnapshotPath()},
		Server: ServerConfig{Addr: "127.0.0.1:7420"},
	}
}
