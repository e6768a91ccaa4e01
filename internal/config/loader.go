package config

import (
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/openprocure/evalmatrix/internal/ports"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if EVALMATRIX_CONFIG is set
//  3. env (prefix EVALMATRIX_)
func Load() (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("EVALMATRIX_CONFIG"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, ports.NewConfigError(path, ports.ErrConfigNotFound)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, ports.NewConfigError(path, err)
		}
	}

	// Environment variables: EVALMATRIX_CONSENSUS_THRESHOLD, ...
	// Map env keys like EVALMATRIX_MINOR_FLOOR -> minor_floor (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("EVALMATRIX_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "evalmatrix_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// check enforces the cross-field constraints a flat unmarshal cannot.
func (c *Config) check() error {
	if c.ConsensusThreshold < 0 {
		return errors.New("consensus_threshold must not be negative")
	}
	if c.MinorFloor < 0 || c.MinorFloor > 100 {
		return errors.New("minor_floor must be between 0 and 100")
	}
	if c.SubmissionRate < 0 {
		return errors.New("submission_rate must not be negative")
	}
	if c.SubmissionRate > 0 && c.SubmissionBurst < 1 {
		return errors.New("submission_burst must be at least 1 when throttling is enabled")
	}
	switch c.Output {
	case "table", "csv", "json":
	default:
		return errors.New("output must be one of table, csv, json")
	}
	return nil
}
