package types

import "time"

// SkillImprovementHistory is the dashboard view of a skill's version lineage.
type SkillImprovementHistory struct {
	SkillID   string `json:"skill_id"`
	SkillName string `json:"skill_name"`

	Versions        []SkillVersionSummary `json:"versions"`
	ScoreTrajectory []ScorePoint          `json:"score_trajectory"`

	TotalImprovements      int `json:"total_improvements"`
	SuccessfulImprovements int `json:"successful_improvements"`
	RolledBackImprovements int `json:"rolled_back_improvements"`

	CurrentVersion        int     `json:"current_version"`
	CurrentScore          float64 `json:"current_score"`
	GradesUntilNextReview int     `json:"grades_until_next_review"`
}

// SkillVersionSummary is one row of the version table.
type SkillVersionSummary struct {
	VersionID    string    `json:"version_id"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	AverageScore float64   `json:"average_score"`
	GradeCount   int       `json:"grade_count"`
	ChangeReason string    `json:"change_reason,omitempty"`
	IsActive     bool      `json:"is_active"`
	// WasRolledBack reads request status "rolled-back", which the rollback
	// action does not set; it stays false for versions rolled back that way.
	WasRolledBack bool `json:"was_rolled_back"`
}

// ScorePoint is the mean overall score of all grades on one calendar day.
type ScorePoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}
