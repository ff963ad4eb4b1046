// Package config loads the qadedup application configuration.
//
// Sources are applied in order, each overriding the last:
//
//  1. built-in defaults (deduplication.DefaultConfig for engine settings)
//  2. a YAML file (dedup.yaml)
//  3. QADEDUP_* environment variables, typically populated from a .env file
//     by LoadEnvFile
//
// Command-line flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/Saberlve/LLM-Kit-sub000/internal/deduplication"
	"github.com/Saberlve/LLM-Kit-sub000/internal/priorities"
	"github.com/Saberlve/LLM-Kit-sub000/internal/types"
)

// DefaultFile is the config file read when none is given and it exists.
const DefaultFile = "dedup.yaml"

// Config is the application configuration. YAML keys follow the legacy
// dedup.yaml layout.
type Config struct {
	// InputFiles are the QA JSON files to deduplicate, in load order
	InputFiles []string `yaml:"input_files" envconfig:"INPUT_FILES"`

	// OutputFile receives the kept records
	OutputFile string `yaml:"output_file" envconfig:"OUTPUT_FILE"`

	// DeletedPairsFile receives the deleted groups (by_question mode only)
	DeletedPairsFile string `yaml:"deleted_pairs_file" envconfig:"DELETED_PAIRS_FILE"`

	// DedupByAnswer selects by_answer mode
	DedupByAnswer bool `yaml:"dedup_by_answer" envconfig:"BY_ANSWER"`

	// DedupThreshold is the Jaccard similarity threshold
	DedupThreshold float64 `yaml:"dedup_threshold" envconfig:"THRESHOLD"`

	// DedupNumPerm is the number of MinHash permutations
	DedupNumPerm int `yaml:"dedup_num_perm" envconfig:"NUM_PERM"`

	// MinAnswerLength is the by_answer short-answer cutoff, in characters
	MinAnswerLength int `yaml:"min_answer_length" envconfig:"MIN_ANSWER_LENGTH"`

	// Seed fixes the MinHash permutations
	Seed int64 `yaml:"seed" envconfig:"SEED"`

	// PriorityOrder lists source files from highest to lowest priority
	PriorityOrder []string `yaml:"priority_order" envconfig:"PRIORITY_ORDER"`

	// DatabasePath is the pass history database; empty means discover
	DatabasePath string `yaml:"database_path" envconfig:"DB_PATH"`

	// Environment selects log output: "local" is human-readable console
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`

	// LogLevel is a zerolog level name
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dedup := deduplication.DefaultConfig()
	return &Config{
		OutputFile:       "dedup_output.json",
		DeletedPairsFile: "deleted_pairs.json",
		DedupByAnswer:    dedup.Mode == types.ModeByAnswer,
		DedupThreshold:   dedup.Threshold,
		DedupNumPerm:     dedup.NumPerm,
		MinAnswerLength:  dedup.MinAnswerLength,
		Seed:             dedup.Seed,
		Environment:      "production",
		LogLevel:         "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment, then validates it. An empty path reads DefaultFile if
// it exists; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := envconfig.Process(deduplication.EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return nil
}

// Validate checks the engine settings and the application fields.
func (c *Config) Validate() error {
	if err := c.Dedup().Validate(); err != nil {
		return err
	}
	for i, f := range c.InputFiles {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("input_files[%d] must not be empty", i)
		}
	}
	if strings.TrimSpace(c.OutputFile) == "" {
		return fmt.Errorf("output_file is required")
	}
	return nil
}

// Dedup returns the engine configuration.
func (c *Config) Dedup() deduplication.Config {
	cfg := deduplication.DefaultConfig()
	cfg.Threshold = c.DedupThreshold
	cfg.NumPerm = c.DedupNumPerm
	cfg.Mode = types.ModeFromByAnswer(c.DedupByAnswer)
	cfg.MinAnswerLength = c.MinAnswerLength
	cfg.Seed = c.Seed
	return cfg
}

// Priorities returns the source priority map from PriorityOrder.
func (c *Config) Priorities() priorities.PriorityMap {
	return priorities.FromOrder(c.PriorityOrder)
}
