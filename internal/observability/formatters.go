// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/skill-improver/internal/improvement"
	"github.com/jonathan/skill-improver/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// firstLine returns the first line of a multi-line text.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// PrintVersion outputs a skill version and its rolled-up scores.
func (p *Printer) PrintVersion(v *types.SkillVersion) {
	if v == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Skill:    %s\n", v.SkillID))
	sb.WriteString(fmt.Sprintf("Version:  %d", v.Version))
	if v.IsActive {
		sb.WriteString(" (active)")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Author:   %s\n", v.CreatedBy))
	if v.ChangeReason != "" {
		sb.WriteString(fmt.Sprintf("Reason:   %s\n", truncate(v.ChangeReason, 44)))
	}
	sb.WriteString(fmt.Sprintf("Grades:   %d/%d", v.Scores.GradeCount, v.Scores.RequiredGrades))
	if v.Scores.GradeCount > 0 {
		sb.WriteString(fmt.Sprintf("  avg %.2f", v.Scores.AverageOverallScore))
	}
	sb.WriteString("\n")

	if len(v.Scores.DimensionScores) > 0 {
		sb.WriteString("\nDimensions:\n")
		for _, d := range v.Scores.DimensionScores {
			sb.WriteString(fmt.Sprintf("  • %-16s %.2f (%d)\n", d.Dimension, d.AverageScore, d.GradeCount))
		}
	}

	p.printBox(fmt.Sprintf("SKILL VERSION %s", v.ID), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintIssueAnalysis outputs the issues and feedback themes found in a set of grades.
func (p *Printer) PrintIssueAnalysis(analysis *types.IssueAnalysis) {
	if analysis == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sample size:  %d\n", analysis.SampleSize))
	sb.WriteString(fmt.Sprintf("Average:      %.2f\n", analysis.AverageScore))
	sb.WriteString(fmt.Sprintf("Percentile:   %d\n", analysis.PerformancePercentile))

	if len(analysis.ScoreDistribution) > 0 {
		parts := make([]string, 0, len(analysis.ScoreDistribution))
		for _, b := range analysis.ScoreDistribution {
			parts = append(parts, fmt.Sprintf("%d:%d", b.Score, b.Count))
		}
		sb.WriteString(fmt.Sprintf("Distribution: %s\n", strings.Join(parts, " ")))
	}
	sb.WriteString("\n")

	if len(analysis.WeakestDimensions) > 0 {
		dims := make([]string, len(analysis.WeakestDimensions))
		for i, d := range analysis.WeakestDimensions {
			dims[i] = string(d)
		}
		sb.WriteString(fmt.Sprintf("Weak dimensions: %s\n\n", strings.Join(dims, ", ")))
	}

	if len(analysis.CommonIssues) > 0 {
		sb.WriteString("Common Issues:\n")
		count := min(len(analysis.CommonIssues), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", analysis.CommonIssues[i]))
		}
		if len(analysis.CommonIssues) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(analysis.CommonIssues)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	if len(analysis.FeedbackThemes) > 0 {
		sb.WriteString("Feedback Themes:\n")
		for _, theme := range analysis.FeedbackThemes {
			sb.WriteString(fmt.Sprintf("  • %s (%d)\n", theme.Label, theme.Frequency))
			if len(theme.ExampleFeedback) > 0 {
				sb.WriteString(fmt.Sprintf("    \"%s\"\n", firstLine(theme.ExampleFeedback[0])))
			}
		}
	}

	if analysis.SampleSize == 0 {
		sb.WriteString("No grades to analyze yet.")
	}

	p.printBox("ISSUE ANALYSIS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProposedChanges outputs the changes a request would apply.
func (p *Printer) PrintProposedChanges(changes []types.ProposedChange) {
	if len(changes) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d proposed changes:\n\n", len(changes)))

	for i, c := range changes {
		sb.WriteString(fmt.Sprintf("#%d  %s [%s]\n", i+1, c.ChangeType, c.Confidence))
		sb.WriteString(fmt.Sprintf("    %s\n", firstLine(c.Rationale)))
		if c.ExpectedImpact != "" {
			sb.WriteString(fmt.Sprintf("    Impact: %s\n", firstLine(c.ExpectedImpact)))
		}
		if i < len(changes)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("PROPOSED CHANGES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRequest outputs an improvement request and its review state.
func (p *Printer) PrintRequest(req *types.ImprovementRequest) {
	if req == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Skill:    %s\n", req.SkillID))
	sb.WriteString(fmt.Sprintf("Version:  %s\n", req.SkillVersionID))
	sb.WriteString(fmt.Sprintf("Trigger:  %s\n", req.TriggerReason))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", req.Status))
	sb.WriteString(fmt.Sprintf("Created:  %s\n", req.TriggeredAt.UTC().Format("2006-01-02 15:04:05")))
	if req.NewVersionID != "" {
		sb.WriteString(fmt.Sprintf("Promoted: %s\n", req.NewVersionID))
	}
	if req.ReviewedBy != "" {
		sb.WriteString(fmt.Sprintf("Reviewer: %s\n", req.ReviewedBy))
	}
	if req.ReviewNotes != "" {
		sb.WriteString(fmt.Sprintf("Notes:    %s\n", firstLine(req.ReviewNotes)))
	}
	sb.WriteString(fmt.Sprintf("Changes:  %d\n", len(req.ProposedChanges)))

	p.printBox(fmt.Sprintf("IMPROVEMENT REQUEST %s", req.ID), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintGradeResult outputs what recording a grade did.
func (p *Printer) PrintGradeResult(result *improvement.GradeResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Grade:    %s\n", result.Grade.ID))
	sb.WriteString(fmt.Sprintf("Version:  %s\n", result.Grade.SkillVersionID))
	sb.WriteString(fmt.Sprintf("Score:    %.1f\n", result.Grade.OverallScore))

	switch {
	case result.Trigger == "":
		sb.WriteString("Trigger:  none")
	case result.Deduplicated:
		sb.WriteString(fmt.Sprintf("Trigger:  %s (pending request reused)", result.Trigger))
	default:
		sb.WriteString(fmt.Sprintf("Trigger:  %s", result.Trigger))
	}
	if result.Request != nil {
		sb.WriteString(fmt.Sprintf("\nRequest:  %s", result.Request.ID))
	}
	if result.Promoted != nil {
		sb.WriteString(fmt.Sprintf("\nPromoted: v%d (%s)", result.Promoted.Version, result.Promoted.ID))
	}

	p.printBox("GRADE RECORDED", sb.String())
}

// PrintHistory outputs a skill's version table and score trajectory.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintHistory(history *types.SkillImprovementHistory) {
	if history == nil {
		return
	}
	if len(history.Versions) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate("NO VERSIONS FOR "+history.SkillID, boxWidth-4))
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Current:  v%d  avg %.2f\n", history.CurrentVersion, history.CurrentScore))
	sb.WriteString(fmt.Sprintf("Improvements: %d total, %d implemented, %d rolled back\n",
		history.TotalImprovements, history.SuccessfulImprovements, history.RolledBackImprovements))
	sb.WriteString(fmt.Sprintf("Grades until next review: %d\n\n", history.GradesUntilNextReview))

	for _, v := range history.Versions {
		marker := " "
		if v.IsActive {
			marker = "*"
		}
		sb.WriteString(fmt.Sprintf("%s v%-3d %5.2f (%d grades)", marker, v.Version, v.AverageScore, v.GradeCount))
		if v.WasRolledBack {
			sb.WriteString(" rolled back")
		}
		sb.WriteString("\n")
		if v.ChangeReason != "" {
			sb.WriteString(fmt.Sprintf("       %s\n", v.ChangeReason))
		}
	}

	if len(history.ScoreTrajectory) > 0 {
		sb.WriteString("\nTrajectory:\n")
		points := history.ScoreTrajectory
		if len(points) > maxItemsToShow {
			points = points[len(points)-maxItemsToShow:]
		}
		for _, pt := range points {
			sb.WriteString(fmt.Sprintf("  %s  %.2f\n", pt.Date, pt.Score))
		}
	}

	p.printBox(fmt.Sprintf("IMPROVEMENT HISTORY: %s", history.SkillID), strings.TrimSuffix(sb.String(), "\n"))
}
