// Package config handles LeanGraph configuration via environment variables.
//
// LeanGraph follows the same environment-variable-first configuration style
// as its storage engine's teacher codebase: defaults are sane for local
// development, every default can be overridden with a LEANGRAPH_-prefixed
// environment variable, and a YAML file can be layered on top for
// deployments that prefer file-based config.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable knobs for a LeanGraph database handle.
type Config struct {
	// DataPath is the path to the SQLite database file. ":memory:" opens an
	// in-memory database (the default, matching the teacher's MemoryEngine
	// default for tests and prototyping).
	DataPath string `yaml:"data_path"`

	// MaxPathDepth bounds recursive CTE expansion for variable-length
	// relationships: "*" with no explicit max recurses up to it, and an
	// explicit max larger than it is cut down to it. spec.md
	// §4.3.4/§9 requires this cap to exist and be configurable.
	MaxPathDepth int `yaml:"max_path_depth"`

	// StatementCacheSize bounds the prepared-statement LRU (spec.md §5/§9).
	StatementCacheSize int `yaml:"statement_cache_size"`

	// UnwindBatchSize caps the number of parameter groups batched into a
	// single multi-row INSERT for UNWIND-driven mutation (spec.md §4.4.5).
	UnwindBatchSize int `yaml:"unwind_batch_size"`
}

// Defaults returns a Config populated with LeanGraph's built-in defaults.
func Defaults() *Config {
	return &Config{
		DataPath:           ":memory:",
		MaxPathDepth:       10,
		StatementCacheSize: 256,
		UnwindBatchSize:    500,
	}
}

// LoadFromEnv builds a Config from LEANGRAPH_* environment variables,
// falling back to Defaults() for anything unset.
func LoadFromEnv() *Config {
	cfg := Defaults()

	if v := os.Getenv("LEANGRAPH_DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v, ok := envInt("LEANGRAPH_MAX_PATH_DEPTH"); ok {
		cfg.MaxPathDepth = v
	}
	if v, ok := envInt("LEANGRAPH_STATEMENT_CACHE_SIZE"); ok {
		cfg.StatementCacheSize = v
	}
	if v, ok := envInt("LEANGRAPH_UNWIND_BATCH_SIZE"); ok {
		cfg.UnwindBatchSize = v
	}

	return cfg
}

// LoadFromFile layers a YAML config file's values on top of LoadFromEnv's
// result. Only fields present in the file override the environment-derived
// value; a missing file is not an error when path is empty.
func LoadFromFile(path string) (*Config, error) {
	cfg := LoadFromEnv()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for internally-inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.DataPath == "" {
		errs = append(errs, "data_path must not be empty")
	}
	if c.MaxPathDepth < 1 {
		errs = append(errs, "max_path_depth must be >= 1")
	}
	if c.StatementCacheSize < 1 {
		errs = append(errs, "statement_cache_size must be >= 1")
	}
	if c.UnwindBatchSize < 1 {
		errs = append(errs, "unwind_batch_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %v", errs)
	}
	return nil
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
