package models

import "time"

// Config is the single recognized-options struct for a swarm run (spec §6).
type Config struct {
	MaxWorkers      int           `mapstructure:"maxWorkers" yaml:"maxWorkers"`
	WorkerTimeout   time.Duration `mapstructure:"workerTimeout" yaml:"workerTimeout"`
	DefaultModel    string        `mapstructure:"defaultModel" yaml:"defaultModel"`
	ComplexTaskModel string       `mapstructure:"complexTaskModel" yaml:"complexTaskModel"`
	SimpleTaskModel  string       `mapstructure:"simpleTaskModel" yaml:"simpleTaskModel"`
	AutoTest        bool          `mapstructure:"autoTest" yaml:"autoTest"`
	TestTimeout     time.Duration `mapstructure:"testTimeout" yaml:"testTimeout"`
	MaxRetries      int           `mapstructure:"maxRetries" yaml:"maxRetries"`
	SkipOnFailure   bool          `mapstructure:"skipOnFailure" yaml:"skipOnFailure"`
	// UseGitBranches is always true for the core; retained as a field for
	// interface parity with the wider product.
	UseGitBranches bool `mapstructure:"useGitBranches" yaml:"useGitBranches"`
	// AutoMerge is always true for the core; retained as a field for
	// interface parity with the wider product.
	AutoMerge bool `mapstructure:"autoMerge" yaml:"autoMerge"`
	// MaxCost is declared but not enforced by this module; see DESIGN.md's
	// Open Questions entry on cost tracking.
	MaxCost                         float64 `mapstructure:"maxCost" yaml:"maxCost"`
	MergeQueueBackpressureThreshold int     `mapstructure:"mergeQueueBackpressureThreshold" yaml:"mergeQueueBackpressureThreshold"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		MaxWorkers:                      10,
		WorkerTimeout:                   30 * time.Minute,
		DefaultModel:                    "claude-sonnet-4-5",
		ComplexTaskModel:                "claude-opus-4-5",
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
