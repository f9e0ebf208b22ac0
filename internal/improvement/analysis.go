package improvement

import (
	"math"
	"sort"

	"github.com/jonathan/skill-improver/internal/prompts"
	"github.com/jonathan/skill-improver/internal/types"
)

const (
	weakDimensionThreshold = 3.5
	// no cross-skill comparison exists yet
	placeholderPercentile = 50
)

// commonIssue is the fixed reviewer-facing sentence for a weak dimension.
func commonIssue(dim types.QualityDimension) string {
	return prompts.MustGet(prompts.DimensionsFile, string(dim)+"-issue")
}

// weakestDimensions returns dimensions averaging below 3.5, weakest first.
func weakestDimensions(averages map[types.QualityDimension]float64) []types.QualityDimension {
	weak := []types.QualityDimension{}
	for _, dim := range types.AllDimensions {
		if avg, ok := averages[dim]; ok && avg < weakDimensionThreshold {
			weak = append(weak, dim)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		return averages[weak[i]] < averages[weak[j]]
	})
	return weak
}

func scoreDistribution(grades []types.SkillGrade) []types.ScoreBucket {
	buckets := make([]types.ScoreBucket, 5)
	for i := range buckets {
		buckets[i].Score = i + 1
	}
	for i := range grades {
		rounded := int(math.Round(grades[i].OverallScore))
		if rounded >= 1 && rounded <= 5 {
			buckets[rounded-1].Count++
		}
	}
	return buckets
}

// AnalyzeIssues builds the structured diagnosis for a set of grades.
func AnalyzeIssues(grades []types.SkillGrade) types.IssueAnalysis {
	agg := CalculateAggregateScores(grades)
	weak := weakestDimensions(agg.DimensionAverages)

	isWeak := map[types.QualityDimension]bool{}
	for _, dim := range weak {
		isWeak[dim] = true
	}
	issues := []string{}
	for _, dim := range types.AllDimensions {
		if isWeak[dim] {
			issues = append(issues, commonIssue(dim))
		}
	}

	patterns := DetectFeedbackPatterns(grades)
	themes := make([]types.ThemeSummary, 0, len(patterns))
	for _, p := range patterns {
		themes = append(themes, types.ThemeSummary{
			Theme:           p.Theme,
			Label:           p.Label,
			Frequency:       p.Frequency,
			ExampleFeedback: p.Examples,
		})
	}

	return types.IssueAnalysis{
		CommonIssues:          issues,
		WeakestDimensions:     weak,
		FeedbackThemes:        themes,
		SampleSize:            len(grades),
		AverageScore:          agg.AverageOverall,
		ScoreDistribution:     scoreDistribution(grades),
		PerformancePercentile: placeholderPercentile,
	}
}
