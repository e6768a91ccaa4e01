// Package config defines process-level configuration for evaluation
// tooling and loads it by layering defaults, an optional YAML file, and
// environment variables.
package config

// Config contains process configuration for the evaluation engine CLI
// and embedding hosts. Matrix-specific settings (rosters, periods) live
// in scenario files; this covers the tunables shared across matrices.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ConsensusThreshold is the maximum inter-evaluator standard
	// deviation, in weighted-score points, for consensus to hold.
	ConsensusThreshold float64 `koanf:"consensus_threshold"`

	// MinorFloor is the normalized score below which an optional
	// criterion raises a Minor compliance issue.
	MinorFloor float64 `koanf:"minor_floor"`

	// SubmissionRate caps per-evaluator submissions per second.
	// Zero disables throttling.
	SubmissionRate float64 `koanf:"submission_rate"`

	// SubmissionBurst is the per-evaluator burst allowance when
	// throttling is enabled.
	SubmissionBurst int `koanf:"submission_burst"`

	// Output selects the export encoding: table, csv, or json.
	Output string `koanf:"output"`

	// Precision is the number of decimal places in exported scores.
	Precision int `koanf:"precision"`

	// UseColors enables ANSI color in table output.
	UseColors bool `koanf:"use_colors"`
}

// New returns a Config populated with engine defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		ConsensusThreshold: 10.0,
		MinorFloor:         60.0,
		SubmissionRate:     0,
		SubmissionBurst:    1,
		Output:             "table",
		Precision:          2,
		UseColors:          true,
	}
}
