package types

import "time"

// VersionAuthor records who produced a skill version.
type VersionAuthor string

const (
	AuthorSystem        VersionAuthor = "system"
	AuthorUser          VersionAuthor = "user"
	AuthorAIImprovement VersionAuthor = "ai-improvement"
)

// SkillVersion is one point-in-time prompt definition for a skill.
// Versions of a skill form a predecessor chain through PreviousVersionID.
type SkillVersion struct {
	ID      string `json:"id"`
	SkillID string `json:"skill_id"`
	Version int    `json:"version"`

	SystemInstruction  string `json:"system_instruction"`
	UserPromptTemplate string `json:"user_prompt_template"`

	CreatedAt         time.Time     `json:"created_at"`
	CreatedBy         VersionAuthor `json:"created_by"`
	ChangeReason      string        `json:"change_reason,omitempty"`
	PreviousVersionID string        `json:"previous_version_id,omitempty"`

	Scores   SkillVersionScores `json:"scores"`
	IsActive bool               `json:"is_active"`
}

// SkillVersionScores is the aggregate grade state rolled up onto a version.
type SkillVersionScores struct {
	GradeCount           int              `json:"grade_count"`
	RequiredGrades       int              `json:"required_grades"`
	AverageOverallScore  float64          `json:"average_overall_score"`
	DimensionScores      []DimensionScore `json:"dimension_scores"`
	ImprovementThreshold float64          `json:"improvement_threshold"`
	LastGradedAt         *time.Time       `json:"last_graded_at,omitempty"`
}

// DimensionScore is the running average for one dimension.
type DimensionScore struct {
	Dimension    QualityDimension `json:"dimension"`
	AverageScore float64          `json:"average_score"`
	GradeCount   int              `json:"grade_count"`
}

// NewVersionScores returns zeroed scores seeded from the improvement policy.
func NewVersionScores(cfg ImprovementConfig) SkillVersionScores {
	return SkillVersionScores{
		RequiredGrades:       cfg.MinGradesForImprovement,
		DimensionScores:      []DimensionScore{},
		ImprovementThreshold: cfg.ImprovementThreshold,
	}
}

// HasPredecessor reports whether the version can be rolled back.
func (v *SkillVersion) HasPredecessor() bool {
	return v.PreviousVersionID != ""
}
