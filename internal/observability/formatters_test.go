package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/skill-improver/internal/improvement"
	"github.com/jonathan/skill-improver/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	v := &types.SkillVersion{
		ID:           "v-2",
		SkillID:      "resume-review",
		Version:      2,
		CreatedBy:    types.AuthorAIImprovement,
		ChangeReason: "Improvement from low-score-threshold: Too generic",
		IsActive:     true,
		Scores: types.SkillVersionScores{
			GradeCount:          3,
			RequiredGrades:      10,
			AverageOverallScore: 3.5,
			DimensionScores: []types.DimensionScore{
				{Dimension: types.DimensionAccuracy, AverageScore: 2.5, GradeCount: 2},
			},
		},
	}

	p.PrintVersion(v)
	output := buf.String()

	assert.Contains(t, output, "SKILL VERSION v-2")
	assert.Contains(t, output, "resume-review")
	assert.Contains(t, output, "2 (active)")
	assert.Contains(t, output, "3/10")
	assert.Contains(t, output, "avg 3.50")
	assert.Contains(t, output, "accuracy")
}

func TestPrintVersion_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintVersion(nil)

	assert.Empty(t, buf.String())
}

func TestPrintIssueAnalysis(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	analysis := &types.IssueAnalysis{
		CommonIssues:      []string{"Output is too generic", "Accuracy scores are low"},
		WeakestDimensions: []types.QualityDimension{types.DimensionAccuracy, types.DimensionClarity},
		FeedbackThemes: []types.ThemeSummary{
			{Theme: types.ThemeTooGeneric, Label: "Output is too generic", Frequency: 4, ExampleFeedback: []string{"very generic\nsecond line"}},
		},
		SampleSize:            10,
		AverageScore:          2.4,
		ScoreDistribution:     []types.ScoreBucket{{Score: 2, Count: 6}, {Score: 3, Count: 4}},
		PerformancePercentile: 35,
	}

	p.PrintIssueAnalysis(analysis)
	output := buf.String()

	assert.Contains(t, output, "ISSUE ANALYSIS")
	assert.Contains(t, output, "Sample size:  10")
	assert.Contains(t, output, "2.40")
	assert.Contains(t, output, "2:6 3:4")
	assert.Contains(t, output, "accuracy, clarity")
	assert.Contains(t, output, "Output is too generic (4)")
	assert.Contains(t, output, "\"very generic\"")
	assert.NotContains(t, output, "second line")
}

func TestPrintIssueAnalysis_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintIssueAnalysis(&types.IssueAnalysis{})

	assert.Contains(t, buf.String(), "No grades to analyze yet.")
}

func TestPrintIssueAnalysis_ManyIssues(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	issues := make([]string, 8)
	for i := range issues {
		issues[i] = "issue"
	}
	p.PrintIssueAnalysis(&types.IssueAnalysis{CommonIssues: issues, SampleSize: 8})

	assert.Contains(t, buf.String(), "... and 3 more")
}

func TestPrintProposedChanges(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	changes := []types.ProposedChange{
		{ChangeType: types.ChangeSystemInstruction, Confidence: types.ConfidenceHigh, Rationale: "Users report generic output", ExpectedImpact: "More specific answers"},
		{ChangeType: types.ChangeUserPrompt, Confidence: types.ConfidenceMedium, Rationale: "Clarity is weak"},
	}

	p.PrintProposedChanges(changes)
	output := buf.String()

	assert.Contains(t, output, "2 proposed changes")
	assert.Contains(t, output, "#1  system-instruction [high]")
	assert.Contains(t, output, "#2  user-prompt [medium]")
	assert.Contains(t, output, "Impact: More specific answers")
}

func TestPrintProposedChanges_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProposedChanges(nil)

	assert.Empty(t, buf.String())
}

func TestPrintRequest(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	req := &types.ImprovementRequest{
		ID:             "req-1",
		SkillID:        "resume-review",
		SkillVersionID: "v-1",
		TriggeredAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		TriggerReason:  types.TriggerLowScore,
		Status:         types.StatusImplemented,
		NewVersionID:   "v-2",
		ReviewedBy:     "alice",
		ProposedChanges: []types.ProposedChange{
			{ChangeType: types.ChangeSystemInstruction},
		},
	}

	p.PrintRequest(req)
	output := buf.String()

	assert.Contains(t, output, "IMPROVEMENT REQUEST req-1")
	assert.Contains(t, output, "low-score-threshold")
	assert.Contains(t, output, "implemented")
	assert.Contains(t, output, "2025-03-01 12:00:00")
	assert.Contains(t, output, "Promoted: v-2")
	assert.Contains(t, output, "Reviewer: alice")
	assert.Contains(t, output, "Changes:  1")
}

func TestPrintGradeResult(t *testing.T) {
	tests := []struct {
		name   string
		result *improvement.GradeResult
		want   []string
	}{
		{
			name:   "no trigger",
			result: &improvement.GradeResult{Grade: types.SkillGrade{ID: "g-1", SkillVersionID: "v-1", OverallScore: 4}},
			want:   []string{"GRADE RECORDED", "g-1", "4.0", "Trigger:  none"},
		},
		{
			name: "deduplicated",
			result: &improvement.GradeResult{
				Grade:        types.SkillGrade{ID: "g-2"},
				Trigger:      types.TriggerLowScore,
				Request:      &types.ImprovementRequest{ID: "req-1"},
				Deduplicated: true,
			},
			want: []string{"pending request reused", "Request:  req-1"},
		},
		{
			name: "promoted",
			result: &improvement.GradeResult{
				Grade:    types.SkillGrade{ID: "g-3"},
				Trigger:  types.TriggerDimensionWeak,
				Request:  &types.ImprovementRequest{ID: "req-2"},
				Promoted: &types.SkillVersion{ID: "v-2", Version: 2},
			},
			want: []string{"dimension-weakness", "Promoted: v2 (v-2)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf).PrintGradeResult(tt.result)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	history := &types.SkillImprovementHistory{
		SkillID: "resume-review",
		Versions: []types.SkillVersionSummary{
			{VersionID: "v-1", Version: 1, AverageScore: 2.1, GradeCount: 10},
			{VersionID: "v-2", Version: 2, AverageScore: 4.2, GradeCount: 3, IsActive: true, ChangeReason: "Improvement"},
		},
		ScoreTrajectory: []types.ScorePoint{
			{Date: "2025-03-01", Score: 2.1},
			{Date: "2025-03-02", Score: 4.2},
		},
		TotalImprovements:      1,
		SuccessfulImprovements: 1,
		CurrentVersion:         2,
		CurrentScore:           4.2,
		GradesUntilNextReview:  7,
	}

	p.PrintHistory(history)
	output := buf.String()

	assert.Contains(t, output, "IMPROVEMENT HISTORY: resume-review")
	assert.Contains(t, output, "Current:  v2  avg 4.20")
	assert.Contains(t, output, "1 total, 1 implemented, 0 rolled back")
	assert.Contains(t, output, "Grades until next review: 7")
	assert.Contains(t, output, "* v2")
	assert.Contains(t, output, "2025-03-02  4.20")
}

func TestPrintHistory_NoVersions(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintHistory(&types.SkillImprovementHistory{SkillID: "missing"})

	assert.Contains(t, buf.String(), "NO VERSIONS FOR missing")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("é", 100))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	for _, line := range lines {
		assert.Equal(t, boxWidth, len([]rune(line)), "line %q", line)
	}
	assert.Contains(t, buf.String(), "...")
}
