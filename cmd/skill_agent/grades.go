package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-improver/internal/improvement"
	"github.com/jonathan/skill-improver/internal/observability"
	"github.com/jonathan/skill-improver/internal/schemas"
	"github.com/jonathan/skill-improver/internal/types"
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Record a grade for a skill execution",
	Long: "Records one grade from a JSON file (validated against the grade schema) or from flags, " +
		"then evaluates whether the graded version needs improvement.",
	RunE: runGrade,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Diagnose a skill version's grades and preview proposed changes",
	RunE:  runAnalyze,
}

var (
	gradeFile       string
	gradeSkillID    string
	gradeVersionID  string
	gradeScore      float64
	gradeDimensions map[string]string
	gradeFeedback   string
	gradeSuggestion string
	gradeUserID     string
	gradeExecution  string
	gradeUsed       bool

	analyzeSkillID   string
	analyzeVersionID string
)

func init() {
	gradeCmd.Flags().StringVarP(&gradeFile, "file", "f", "", "Path to a grade JSON file")
	gradeCmd.Flags().StringVar(&gradeSkillID, "skill", "", "Skill ID")
	gradeCmd.Flags().StringVar(&gradeVersionID, "version", "", "Skill version ID (default: the active version)")
	gradeCmd.Flags().Float64Var(&gradeScore, "score", 0, "Overall score, 1-5")
	gradeCmd.Flags().StringToStringVar(&gradeDimensions, "dimension", nil, "Dimension scores as name=score, e.g. clarity=2")
	gradeCmd.Flags().StringVar(&gradeFeedback, "feedback", "", "Free-text feedback")
	gradeCmd.Flags().StringVar(&gradeSuggestion, "suggestion", "", "Suggested improvement")
	gradeCmd.Flags().StringVar(&gradeUserID, "user", "", "Grading user ID")
	gradeCmd.Flags().StringVar(&gradeExecution, "execution", "", "Execution ID the grade refers to")
	gradeCmd.Flags().BoolVar(&gradeUsed, "used", false, "The output was used")
	rootCmd.AddCommand(gradeCmd)

	analyzeCmd.Flags().StringVar(&analyzeSkillID, "skill", "", "Skill ID (required)")
	analyzeCmd.Flags().StringVar(&analyzeVersionID, "version", "", "Skill version ID (default: the active version)")
	if err := analyzeCmd.MarkFlagRequired("skill"); err != nil {
		panic(fmt.Sprintf("failed to mark skill flag as required: %v", err))
	}
	rootCmd.AddCommand(analyzeCmd)
}

// parseDimensions turns name=score pairs into dimension grades in canonical order.
func parseDimensions(raw map[string]string) ([]types.DimensionGrade, error) {
	out := make([]types.DimensionGrade, 0, len(raw))
	for name, value := range raw {
		dim := types.QualityDimension(name)
		if !dim.Valid() {
			return nil, fmt.Errorf("unknown dimension %q", name)
		}
		score, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score for %s: %w", name, err)
		}
		out = append(out, types.DimensionGrade{Dimension: dim, Score: score})
	}
	order := make(map[types.QualityDimension]int, len(types.AllDimensions))
	for i, d := range types.AllDimensions {
		order[d] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Dimension] < order[out[j].Dimension] })
	return out, nil
}

func gradeInput() (types.GradeInput, error) {
	var in types.GradeInput
	if gradeFile != "" {
		err := readValidated(schemas.GradeSchema, gradeFile, &in)
		return in, err
	}

	dims, err := parseDimensions(gradeDimensions)
	if err != nil {
		return in, err
	}
	in = types.GradeInput{
		SkillID:               gradeSkillID,
		SkillVersionID:        gradeVersionID,
		UserID:                gradeUserID,
		ExecutionID:           gradeExecution,
		OverallScore:          gradeScore,
		DimensionScores:       dims,
		Feedback:              gradeFeedback,
		ImprovementSuggestion: gradeSuggestion,
		WasOutputUsed:         gradeUsed,
	}
	return in, nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	in, err := gradeInput()
	if err != nil {
		return err
	}

	return withApp(cmd, func(a *app) error {
		ctx := cmd.Context()
		if in.SkillVersionID == "" && in.SkillID != "" {
			active, err := a.engine.ActiveVersion(ctx, in.SkillID)
			if err != nil {
				return err
			}
			if active == nil {
				return fmt.Errorf("skill %s has no active version", in.SkillID)
			}
			in.SkillVersionID = active.ID
		}

		result, err := a.engine.RecordValidatedGrade(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to record grade: %w", err)
		}
		if a.cfg.Verbose {
			observability.NewPrinter(cmd.OutOrStdout()).PrintGradeResult(result)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), result)
	})
}

// analysisReport is what analyze prints in JSON mode.
type analysisReport struct {
	SkillID         string                        `json:"skill_id"`
	VersionID       string                        `json:"version_id"`
	Aggregate       improvement.AggregateScores   `json:"aggregate"`
	Issues          types.IssueAnalysis           `json:"issues"`
	Patterns        []improvement.FeedbackPattern `json:"patterns"`
	ProposedChanges []types.ProposedChange        `json:"proposed_changes"`
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		ctx := cmd.Context()
		versionID := analyzeVersionID
		if versionID == "" {
			active, err := a.engine.ActiveVersion(ctx, analyzeSkillID)
			if err != nil {
				return err
			}
			if active == nil {
				return fmt.Errorf("skill %s has no active version", analyzeSkillID)
			}
			versionID = active.ID
		}

		grades, err := a.engine.GetGradesForVersion(ctx, analyzeSkillID, versionID)
		if err != nil {
			return err
		}
		issues := improvement.AnalyzeIssues(grades)
		changes, err := a.engine.GenerateProposedChanges(ctx, analyzeSkillID, issues)
		if err != nil {
			return err
		}

		if a.cfg.Verbose {
			p := observability.NewPrinter(cmd.OutOrStdout())
			p.PrintIssueAnalysis(&issues)
			p.PrintProposedChanges(changes)
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), analysisReport{
			SkillID:         analyzeSkillID,
			VersionID:       versionID,
			Aggregate:       improvement.CalculateAggregateScores(grades),
			Issues:          issues,
			Patterns:        improvement.DetectFeedbackPatterns(grades),
			ProposedChanges: changes,
		})
	})
}
