package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ImprovementConfig is the tunable improvement policy.
type ImprovementConfig struct {
	MinGradesForImprovement int     `json:"min_grades_for_improvement" validate:"min=1"`
	ImprovementThreshold    float64 `json:"improvement_threshold" validate:"min=0,max=5"`
	AutoImplement           bool    `json:"auto_implement"`
	// DedupePending suppresses a new request while one is still pending for
	// the same skill version.
	DedupePending bool `json:"dedupe_pending"`

	// Advisory only; nothing below enforces these.
	MaxImprovementsPerWeek int                          `json:"max_improvements_per_week" validate:"min=0"`
	RollbackThreshold      float64                      `json:"rollback_threshold" validate:"min=0"`
	RollbackGraceGrades    int                          `json:"rollback_grace_grades" validate:"min=0"`
	DimensionWeights       map[QualityDimension]float64 `json:"dimension_weights,omitempty"`
}

// DefaultImprovementConfig returns the stock improvement policy.
func DefaultImprovementConfig() ImprovementConfig {
	return ImprovementConfig{
		MinGradesForImprovement: 10,
		ImprovementThreshold:    3.5,
		AutoImplement:           false,
		DedupePending:           true,
		MaxImprovementsPerWeek:  2,
		RollbackThreshold:       0.3,
		RollbackGraceGrades:     5,
		DimensionWeights: map[QualityDimension]float64{
			DimensionRelevance:       0.25,
			DimensionAccuracy:        0.20,
			DimensionCompleteness:    0.15,
			DimensionClarity:         0.15,
			DimensionActionability:   0.15,
			DimensionProfessionalism: 0.10,
		},
	}
}

// Validate validates the ImprovementConfig using the validator.
func (c *ImprovementConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	for dim := range c.DimensionWeights {
		if !dim.Valid() {
			return fmt.Errorf("unknown dimension in dimension_weights: %q", dim)
		}
	}
	return nil
}
