package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// TriggerReason names why an improvement cycle started.
type TriggerReason string

const (
	TriggerLowScore       TriggerReason = "low-score-threshold"
	TriggerDimensionWeak  TriggerReason = "dimension-weakness"
	TriggerFeedback       TriggerReason = "user-feedback-pattern"
	TriggerManual         TriggerReason = "manual-request"
	TriggerPeriodicReview TriggerReason = "periodic-review"
)

// RequestStatus is the lifecycle state of an ImprovementRequest.
type RequestStatus string

const (
	StatusPending     RequestStatus = "pending"
	StatusApproved    RequestStatus = "approved"
	StatusRejected    RequestStatus = "rejected"
	StatusImplemented RequestStatus = "implemented"
	StatusRolledBack  RequestStatus = "rolled-back"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusImplemented, StatusRolledBack:
		return true
	}
	return false
}

// CanTransition reports whether a request may move from one status to another.
// The table only moves forward; nothing returns to pending.
func CanTransition(from, to RequestStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusImplemented
	case StatusImplemented:
		return to == StatusRolledBack
	}
	return false
}

// ChangeType is the part of a skill a ProposedChange edits.
type ChangeType string

const (
	ChangeSystemInstruction ChangeType = "system-instruction"
	ChangeUserPrompt        ChangeType = "user-prompt"
	ChangeInputField        ChangeType = "input-field"
	ChangeConfig            ChangeType = "config"
)

// Confidence grades how likely a change is to help.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ProposedChange is one atomic edit proposal. OldValue and NewValue hold
// preview excerpts only; AppliedValue holds the full text to apply.
type ProposedChange struct {
	ID             string     `json:"id"`
	ChangeType     ChangeType `json:"change_type"`
	Field          string     `json:"field"`
	OldValue       string     `json:"old_value"`
	NewValue       string     `json:"new_value"`
	AppliedValue   string     `json:"applied_value,omitempty"`
	Rationale      string     `json:"rationale"`
	ExpectedImpact string     `json:"expected_impact"`
	Confidence     Confidence `json:"confidence"`
}

// FullValue returns the text that applying this change produces.
func (c *ProposedChange) FullValue() string {
	if c.AppliedValue != "" {
		return c.AppliedValue
	}
	return c.NewValue
}

// ThemeSummary is a feedback theme as carried inside an IssueAnalysis.
type ThemeSummary struct {
	Theme           FeedbackTheme `json:"theme"`
	Label           string        `json:"label"`
	Frequency       int           `json:"frequency"`
	ExampleFeedback []string      `json:"example_feedback"`
}

// ScoreBucket counts grades whose rounded overall score equals Score.
type ScoreBucket struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// IssueAnalysis is the structured diagnosis of a set of grades.
type IssueAnalysis struct {
	CommonIssues          []string           `json:"common_issues"`
	WeakestDimensions     []QualityDimension `json:"weakest_dimensions"`
	FeedbackThemes        []ThemeSummary     `json:"feedback_themes"`
	SampleSize            int                `json:"sample_size"`
	AverageScore          float64            `json:"average_score"`
	ScoreDistribution     []ScoreBucket      `json:"score_distribution"`
	PerformancePercentile int                `json:"performance_percentile"`
}

// ImprovementRequest bundles one diagnosis with its proposed edits.
type ImprovementRequest struct {
	ID             string `json:"id"`
	SkillID        string `json:"skill_id"`
	SkillVersionID string `json:"skill_version_id"`

	TriggeredAt   time.Time     `json:"triggered_at"`
	TriggerReason TriggerReason `json:"trigger_reason"`

	IssueAnalysis   IssueAnalysis    `json:"issue_analysis"`
	ProposedChanges []ProposedChange `json:"proposed_changes"`

	Status       RequestStatus `json:"status"`
	NewVersionID string        `json:"new_version_id,omitempty"`
	ReviewedBy   string        `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNotes  string        `json:"review_notes,omitempty"`
}

// Advance moves the request to the next status, rejecting any move the
// transition table does not allow.
func (r *ImprovementRequest) Advance(to RequestStatus) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("invalid status transition %s -> %s for request %s", r.Status, to, r.ID)
	}
	r.Status = to
	return nil
}

// ReviewInput carries reviewer metadata for approve/reject actions.
type ReviewInput struct {
	ReviewedBy string `json:"reviewed_by" validate:"max=200"`
	Notes      string `json:"notes" validate:"max=4000"`
}

// Validate validates the ReviewInput using the validator.
func (r *ReviewInput) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
