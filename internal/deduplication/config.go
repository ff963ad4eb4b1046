package deduplication

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/Saberlve/LLM-Kit-sub000/internal/minhash"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// EnvPrefix is the environment variable prefix for engine settings.
const EnvPrefix = "QADEDUP"

// Config holds configuration for the deduplication engine.
// Threshold and NumPerm are fixed for the lifetime of a pass.
type Config struct {
	// Threshold is the Jaccard similarity (0.0-1.0] at which two records are
	// considered near-duplicates
	// Higher values = stricter (fewer merges, more survivors)
	// Lower values = more aggressive (more merges, more false positives)
	// Default: 0.8
	Threshold float64 `envconfig:"THRESHOLD"`

	// NumPerm is the number of MinHash permutations per signature
	// More permutations = better similarity estimates, slower signing
	// Default: 128
	NumPerm int `envconfig:"NUM_PERM"`

	// Mode selects which text is signed (by_question or by_answer)
	// Default: by_question
	Mode types.DedupMode `envconfig:"MODE"`

	// MinAnswerLength drops records whose answer is shorter than this many
	// characters before indexing. Only applies in by_answer mode.
	// Default: 10
	MinAnswerLength int `envconfig:"MIN_ANSWER_LENGTH"`

	// Seed fixes the MinHash permutations so results are reproducible
	// Default: 1
	Seed int64 `envconfig:"SEED"`

	// MaxClusterLogSize caps how many member ids a cluster debug line lists
	// Default: 20
	MaxClusterLogSize int `envconfig:"MAX_CLUSTER_LOG_SIZE"`
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		Threshold:         0.8,
		NumPerm:           minhash.DefaultNumPerm,
		Mode:              types.ModeByQuestion,
		MinAnswerLength:   10,
		Seed:              minhash.DefaultSeed,
		MaxClusterLogSize: 20,
	}
}

// Validate checks if the configuration has valid values.
// Every failure wraps ErrConfiguration.
func (c Config) Validate() error {
	if !(c.Threshold > 0.0 && c.Threshold <= 1.0) {
		return configErrorf("threshold must be in (0.0, 1.0] (got %.2f)", c.Threshold)
	}
	if c.NumPerm < 2 {
		return configErrorf("num_perm must be at least 2 (got %d)", c.NumPerm)
	}
	if c.NumPerm > 1024 {
		return configErrorf("num_perm too large (got %d, max 1024)", c.NumPerm)
	}
	if !c.Mode.IsValid() {
		return configErrorf("mode must be %q or %q (got %q)", types.ModeByQuestion, types.ModeByAnswer, c.Mode)
	}
	if c.MinAnswerLength < 0 {
		return configErrorf("min_answer_length cannot be negative (got %d)", c.MinAnswerLength)
	}
	if c.MaxClusterLogSize < 0 {
		return configErrorf("max_cluster_log_size cannot be negative (got %d)", c.MaxClusterLogSize)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %.2f, NumPerm: %d, Mode: %s, MinAnswerLen: %d, Seed: %d}",
		c.Threshold, c.NumPerm, c.Mode, c.MinAnswerLength, c.Seed,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - QADEDUP_THRESHOLD: Similarity threshold in (0.0, 1.0] (default: 0.8)
//   - QADEDUP_NUM_PERM: MinHash permutation count (default: 128)
//   - QADEDUP_MODE: by_question or by_answer (default: by_question)
//   - QADEDUP_MIN_ANSWER_LENGTH: Minimum answer length in by_answer mode (default: 10)
//   - QADEDUP_SEED: Permutation seed (default: 1)
//   - QADEDUP_MAX_CLUSTER_LOG_SIZE: Member ids listed per cluster log line (default: 20)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays QADEDUP_* environment variables onto cfg. Unset
// variables leave the existing values untouched.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}
