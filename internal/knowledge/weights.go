package knowledge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Weights defines the integer scoring weights for relevance ranking.
// A keyword contributes each weight independently when it appears as a
// substring of the corresponding field, so a single keyword can earn
// Keyword + Question + Answer points at most.
type Weights struct {
	// Keyword is awarded when an incoming token is a substring of the
	// entry's highlighted keywords. Curated tags are the most
	// trustworthy relevance signal.
	Keyword int `json:"keyword"`

	// Question is awarded for a substring match against the question text.
	Question int `json:"question"`

	// Answer is awarded for a substring match against the answer body.
	// Weakest signal: answers may mention many topics only tangentially.
	Answer int `json:"answer"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the default ranking weight configuration.
// The 3/2/1 split encodes the trust ordering of the three text fields:
// curated keyword tags first, question text next, answer body last.
func DefaultWeights() *Weights {
	return &Weights{
		Keyword:  3,
		Question: 2,
		Answer:   1,
	}
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be parsed, returns default weights
// along with the error so callers degrade gracefully. Partial
// configurations are merged with defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultWeights(), &config.Weights)
	return merged, nil
}

// MergeCalibration merges override weights with base weights. Only
// non-zero values from the override are applied, allowing partial
// overrides in the calibration file.
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	if override == nil {
		result := *base
		return &result
	}

	result := *base
	if override.Keyword != 0 {
		result.Keyword = override.Keyword
	}
	if override.Question != 0 {
		result.Question = override.Question
	}
	if override.Answer != 0 {
		result.Answer = override.Answer
	}
	return &result
}
