// Package improvement implements the skill self-improvement engine: grade
// aggregation, feedback pattern and issue analysis, improvement triggers,
// proposed prompt changes, and the skill version lifecycle.
package improvement

import (
	"time"

	"github.com/jonathan/skill-improver/internal/types"
)

// AggregateScores is the mean overall score and per-dimension means of a set of grades.
type AggregateScores struct {
	AverageOverall float64 `json:"average_overall"`
	// DimensionAverages has an entry only for dimensions some grade reported.
	DimensionAverages map[types.QualityDimension]float64 `json:"dimension_averages"`
	GradeCount        int                                `json:"grade_count"`
}

type runningMean struct {
	sum   float64
	count int
}

func (m runningMean) mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// CalculateAggregateScores averages overall and dimension scores. An empty
// grade list yields a zero average, an empty map and a zero count.
func CalculateAggregateScores(grades []types.SkillGrade) AggregateScores {
	out := AggregateScores{DimensionAverages: map[types.QualityDimension]float64{}}
	if len(grades) == 0 {
		return out
	}

	var overall runningMean
	dims := map[types.QualityDimension]runningMean{}
	for i := range grades {
		overall.sum += grades[i].OverallScore
		overall.count++
		for _, ds := range grades[i].DimensionScores {
			m := dims[ds.Dimension]
			m.sum += ds.Score
			m.count++
			dims[ds.Dimension] = m
		}
	}

	out.AverageOverall = overall.mean()
	out.GradeCount = len(grades)
	for dim, m := range dims {
		out.DimensionAverages[dim] = m.mean()
	}
	return out
}

// rollupScores recomputes a version's aggregate score state from its grades,
// keeping the policy fields (required grades, threshold) already on it.
func rollupScores(base types.SkillVersionScores, grades []types.SkillGrade) types.SkillVersionScores {
	agg := CalculateAggregateScores(grades)

	counts := map[types.QualityDimension]int{}
	var last time.Time
	for i := range grades {
		for _, ds := range grades[i].DimensionScores {
			counts[ds.Dimension]++
		}
		if grades[i].GradedAt.After(last) {
			last = grades[i].GradedAt
		}
	}

	base.GradeCount = agg.GradeCount
	base.AverageOverallScore = agg.AverageOverall
	base.DimensionScores = []types.DimensionScore{}
	for _, dim := range types.AllDimensions {
		avg, ok := agg.DimensionAverages[dim]
		if !ok {
			continue
		}
		base.DimensionScores = append(base.DimensionScores, types.DimensionScore{
			Dimension:    dim,
			AverageScore: avg,
			GradeCount:   counts[dim],
		})
	}
	if !last.IsZero() {
		base.LastGradedAt = &last
	}
	return base
}
