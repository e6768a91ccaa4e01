package engine

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// DefaultConsensusThreshold is the spread, in weighted-score points,
// within which independent evaluators are considered to agree.
const DefaultConsensusThreshold = 10.0

// ConsensusConfig defines the configuration parameters for the
// ConsensusAnalyzer.
type ConsensusConfig struct {
	// ThresholdPoints is the maximum inter-evaluator spread, measured as
	// the population standard deviation of weighted scores, at which
	// consensus is still considered reached. Configurable per matrix.
	ThresholdPoints float64 `yaml:"threshold_points" json:"threshold_points" validate:"min=0,max=100"`
}

// DefaultConsensusConfig returns a ConsensusConfig with the standard
// 10-point threshold.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{ThresholdPoints: DefaultConsensusThreshold}
}

// ConsensusAnalyzer measures agreement among independent evaluators
// scoring the same vendor. The spread statistic is the population
// standard deviation of the evaluators' weighted scores; a vendor scored
// by a single evaluator trivially has zero spread and full consensus.
//
// The analyzer is stateless after construction and safe for concurrent
// use.
type ConsensusAnalyzer struct {
	config ConsensusConfig
}

// NewConsensusAnalyzer creates a ConsensusAnalyzer with the given
// configuration, or an error when the configuration is invalid.
func NewConsensusAnalyzer(config ConsensusConfig) (*ConsensusAnalyzer, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ConsensusAnalyzer{config: config}, nil
}

// NewConsensusAnalyzerFromConfig creates a ConsensusAnalyzer from a
// configuration map. This is the boundary adapter for YAML/JSON
// configuration.
func NewConsensusAnalyzerFromConfig(config map[string]any) (*ConsensusAnalyzer, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	// Start with defaults, then overlay caller config.
	cfg := DefaultConsensusConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return NewConsensusAnalyzer(cfg)
}

// Threshold returns the configured consensus threshold in points.
func (ca *ConsensusAnalyzer) Threshold() float64 { return ca.config.ThresholdPoints }

// Consensus computes the inter-evaluator spread for one vendor and
// whether it is within the threshold. The input is the vendor's weighted
// scores, one per evaluator.
func (ca *ConsensusAnalyzer) Consensus(scores []float64) (variance float64, reached bool, err error) {
	if len(scores) == 0 {
		return 0, false, ErrNoScores
	}
	for i, s := range scores {
		if !isFinite(s) {
			return 0, false, fmt.Errorf("%w: score at index %d is %f", ErrInvalidScore, i, s)
		}
	}
	if len(scores) == 1 {
		return 0, true, nil
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))

	var sq float64
	for _, s := range scores {
		d := s - mean
		sq += d * d
	}
	variance = math.Sqrt(sq / float64(len(scores)))

	return variance, variance <= ca.config.ThresholdPoints, nil
}

// MatrixConsensus reduces per-vendor spreads to the matrix-level view:
// the mean of the per-vendor spreads, and true iff every vendor reached
// consensus. An empty input yields (0, true): a matrix with no scored
// vendors has nothing to disagree about.
func (ca *ConsensusAnalyzer) MatrixConsensus(vendorVariances []float64) (mean float64, reached bool) {
	if len(vendorVariances) == 0 {
		return 0, true
	}
	reached = true
	var sum float64
	for _, v := range vendorVariances {
		sum += v
		if v > ca.config.ThresholdPoints {
			reached = false
		}
	}
	return sum / float64(len(vendorVariances)), reached
}
