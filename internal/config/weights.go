package config

import (
	"fmt"

	"github.com/spf13/viper"

	"nil-match-engine/internal/services/scoring"
)

// LoadWeights reads a scoring weights table from a YAML or JSON file. Keys
// missing from the file keep their default values. An empty path returns
// the default table.
func LoadWeights(path string) (scoring.Weights, error) {
	weights := scoring.DefaultWeights()
	if path == "" {
		return weights, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return weights, fmt.Errorf("failed to read weights file %s: %w", path, err)
	}

	if err := v.Unmarshal(&weights); err != nil {
		return weights, fmt.Errorf("failed to unmarshal weights: %w", err)
	}

	if err := weights.Validate(); err != nil {
		return weights, fmt.Errorf("invalid weights file %s: %w", path, err)
	}

	return weights, nil
}
