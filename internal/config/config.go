// Package config handles configuration loading and management for swarm.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for a swarm run (spec §6).
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`

	// MaxWorkers bounds how many tasks the execution coordinator runs
	// concurrently within a wave.
	MaxWorkers int `mapstructure:"max_workers"`
	// WorkerTimeout bounds a single Worker Agent's end-to-end run.
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`

	// DefaultModel, ComplexTaskModel, SimpleTaskModel drive the Worker
	// Agent's per-task complexity-based model selection (spec §4.F).
	DefaultModel     string `mapstructure:"default_model"`
	ComplexTaskModel string `mapstructure:"complex_task_model"`
	SimpleTaskModel  string `mapstructure:"simple_task_model"`

	// AutoTest and TestTimeout govern whether and how long a worker waits
	// on a decided test-writing strategy.
	AutoTest    bool          `mapstructure:"auto_test"`
	TestTimeout time.Duration `mapstructure:"test_timeout"`

	MaxRetries    int  `mapstructure:"max_retries"`
	SkipOnFailure bool `mapstructure:"skip_on_failure"`

	// UseGitBranches and AutoMerge are always true in this module — every
	// worker runs in an isolated worktree/branch and successful tasks
	// always merge back automatically (spec §4.D, §4.G). They exist as
	// config fields only so a loaded config document can assert the
	// invariant explicitly rather than silently ignoring a false value.
	UseGitBranches bool `mapstructure:"use_git_branches"`
	AutoMerge      bool `mapstructure:"auto_merge"`

	// MaxCost is an advisory budget in dollars; spec §9 leaves enforcement
	// unspecified, so nothing in this module reports on it or halts a run
	// because of it (see DESIGN.md's Open Questions).
	MaxCost float64 `mapstructure:"max_cost"`

	// MergeQueueBackpressureThreshold caps in-flight plus queued merges
	// before the coordinator stalls new dispatches.
	MergeQueueBackpressureThreshold int `mapstructure:"merge_queue_backpressure_threshold"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.swarm.yaml in current directory or parent)
// 3. User config (~/.config/swarmctl/config.yaml)
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

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	// UseGitBranches and AutoMerge are invariants of this module, not
	// operator-tunable knobs; force them regardless of what a config
	// document claims.
	cfg.UseGitBranches = true
	cfg.AutoMerge = true

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling %s: %w", path, err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.UseGitBranches = true
	cfg.AutoMerge = true

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("max_workers", cfg.MaxWorkers)
	v.Set("worker_timeout", cfg.WorkerTimeout.String())
	v.Set("default_model", cfg.DefaultModel)
	v.Set("complex_task_model", cfg.ComplexTaskModel)
	v.Set("simple_task_model", cfg.SimpleTaskModel)
	v.Set("auto_test", cfg.AutoTest)
	v.Set("test_timeout", cfg.TestTimeout.String())
	v.Set("max_retries", cfg.MaxRetries)
	v.Set("skip_on_failure", cfg.SkipOnFailure)
	v.Set("max_cost", cfg.MaxCost)
	v.Set("merge_queue_backpressure_threshold", cfg.MergeQueueBackpressureThreshold)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values, matching spec §6's stated defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("max_workers", 10)
	v.SetDefault("worker_timeout", "30m")

	v.SetDefault("default_model", "claude-sonnet-4-5")
	v.SetDefault("complex_task_model", "claude-opus-4-1")
	v.SetDefault("simple_task_model", "claude-haiku-4-5")

	v.SetDefault("auto_test", true)
	v.SetDefault("test_timeout", "5m")

	v.SetDefault("max_retries", 2)
	v.SetDefault("skip_on_failure", true)

	v.SetDefault("use_git_branches", true)
	v.SetDefault("auto_merge", true)

	v.SetDefault("max_cost", 0.0)
	v.SetDefault("merge_queue_backpressure_threshold", 8)
}

// getUserConfigDir returns the XDG config directory for swarmctl.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "swarmctl")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "swarmctl")
	}
	return filepath.Join(home, ".config", "swarmctl")
}

// findProjectConfig searches for .swarm.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".swarm.yaml")
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
	return &Config{
		Anthropic:                       AnthropicConfig{APIKey: ""},
		MaxWorkers:                      10,
		WorkerTimeout:                   30 * time.Minute,
		DefaultModel:                    "claude-sonnet-4-5",
		ComplexTaskModel:                "claude-opus-4-1",
		SimpleTaskModel:                 "claude-haiku-4-5",
		AutoTest:                        true,
		TestTimeout:                     5 * time.Minute,
		MaxRetries:                      2,
		SkipOnFailure:                   true,
		UseGitBranches:                  true,
		AutoMerge:                       true,
		MaxCost:                         0,
		MergeQueueBackpressureThreshold: 8,
	}
}
