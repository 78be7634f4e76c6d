package engine

import (
	"fmt"
	"math"

	"github.com/engagestack/engagement-intel/internal/models"
)

// Default classification policy.
const (
	DefaultPositiveThreshold = 0.6
	DefaultNegativeThreshold = 0.4
	DefaultNeutralBaseline   = 0.5
)

// Thresholds is the sentiment classification policy. A score at or above
// Positive is positive, at or below Negative is negative, anything between
// is neutral. Baseline is the neutral reference used for the KPI delta; it is
// kept separate from the class bounds so either can move independently.
type Thresholds struct {
	Positive float64 `yaml:"positiveThreshold" json:"positive_threshold"`
	Negative float64 `yaml:"negativeThreshold" json:"negative_threshold"`
	Baseline float64 `yaml:"neutralBaseline" json:"neutral_baseline"`
}

// DefaultThresholds returns the 0.6 / 0.4 policy with a 0.5 baseline.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Positive: DefaultPositiveThreshold,
		Negative: DefaultNegativeThreshold,
		Baseline: DefaultNeutralBaseline,
	}
}

// Validate checks 0 <= Negative < Positive <= 1 and Baseline in [0,1].
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Positive) || math.IsNaN(t.Negative) || math.IsNaN(t.Baseline) {
		return fmt.Errorf("thresholds must be numbers: negative=%v positive=%v baseline=%v", t.Negative, t.Positive, t.Baseline)
	}
	if t.Negative < 0 || t.Positive > 1 {
		return fmt.Errorf("thresholds must lie in [0,1]: negative=%v positive=%v", t.Negative, t.Positive)
	}
	if t.Negative >= t.Positive {
		return fmt.Errorf("negative threshold %v must be below positive threshold %v", t.Negative, t.Positive)
	}
	if t.Baseline < 0 || t.Baseline > 1 {
		return fmt.Errorf("neutral baseline %v outside [0,1]", t.Baseline)
	}
	return nil
}

// Classify maps a sentiment score to exactly one class.
func (t Thresholds) Classify(sentiment float64) models.SentimentClass {
	switch {
	case sentiment >= t.Positive:
		return models.SentimentPositive
	case sentiment <= t.Negative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
