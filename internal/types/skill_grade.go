package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// SkillGrade is one user's judgment of one skill execution. Grades are
// append-only; nothing updates a stored grade.
type SkillGrade struct {
	ID             string `json:"id"`
	SkillID        string `json:"skill_id"`
	SkillVersionID string `json:"skill_version_id"`
	UserID         string `json:"user_id"`

	ExecutionID string `json:"execution_id"`
	InputsHash  string `json:"inputs_hash"`

	OverallScore    float64          `json:"overall_score"`
	DimensionScores []DimensionGrade `json:"dimension_scores"`

	Feedback              string `json:"feedback,omitempty"`
	ImprovementSuggestion string `json:"improvement_suggestion,omitempty"`
	ExpectedOutput        string `json:"expected_output,omitempty"`
	WasOutputUsed         bool   `json:"was_output_used"`

	GradedAt   time.Time `json:"graded_at"`
	ExecutedAt time.Time `json:"executed_at"`
}

// DimensionGrade is one dimension score inside a grade.
type DimensionGrade struct {
	Dimension QualityDimension `json:"dimension" validate:"required,oneof=relevance accuracy completeness clarity actionability professionalism"`
	Score     float64          `json:"score" validate:"min=1,max=5"`
}

// GradeInput is a grade submission before an id and timestamp are assigned.
type GradeInput struct {
	SkillID        string `json:"skill_id" validate:"required"`
	SkillVersionID string `json:"skill_version_id" validate:"required"`
	UserID         string `json:"user_id"`

	ExecutionID string `json:"execution_id"`
	InputsHash  string `json:"inputs_hash"`

	OverallScore    float64          `json:"overall_score" validate:"min=1,max=5"`
	DimensionScores []DimensionGrade `json:"dimension_scores" validate:"omitempty,unique=Dimension,dive"`

	Feedback              string `json:"feedback,omitempty" validate:"max=4000"`
	ImprovementSuggestion string `json:"improvement_suggestion,omitempty" validate:"max=4000"`
	ExpectedOutput        string `json:"expected_output,omitempty"`
	WasOutputUsed         bool   `json:"was_output_used"`

	ExecutedAt time.Time `json:"executed_at"`
}

// Validate validates the GradeInput using the validator.
func (g *GradeInput) Validate() error {
	validate := validator.New()
	return validate.Struct(g)
}

// ToGrade materializes the input as a stored grade.
func (g *GradeInput) ToGrade(id string, gradedAt time.Time) SkillGrade {
	dims := make([]DimensionGrade, len(g.DimensionScores))
	copy(dims, g.DimensionScores)
	return SkillGrade{
		ID:                    id,
		SkillID:               g.SkillID,
		SkillVersionID:        g.SkillVersionID,
		UserID:                g.UserID,
		ExecutionID:           g.ExecutionID,
		InputsHash:            g.InputsHash,
		OverallScore:          g.OverallScore,
		DimensionScores:       dims,
		Feedback:              g.Feedback,
		ImprovementSuggestion: g.ImprovementSuggestion,
		ExpectedOutput:        g.ExpectedOutput,
		WasOutputUsed:         g.WasOutputUsed,
		GradedAt:              gradedAt,
		ExecutedAt:            g.ExecutedAt,
	}
}

// FeedbackText joins the free-text fields the pattern analyzer reads.
// Returns "" when the grade carries no text at all.
func (g *SkillGrade) FeedbackText() string {
	if g.Feedback == "" && g.ImprovementSuggestion == "" {
		return ""
	}
	return g.Feedback + " " + g.ImprovementSuggestion
}
