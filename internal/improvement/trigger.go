package improvement

import "github.com/jonathan/skill-improver/internal/types"

// dimensionTriggerThreshold is stricter than the 3.5 weak-dimension cut:
// only a dimension averaging under 3.0 fires a trigger on its own.
const dimensionTriggerThreshold = 3.0

// EvaluateTrigger decides whether a version's grades warrant an improvement
// request. Rules are checked in order and the first match wins: overall
// average below threshold, then any dimension below 3.0, then a feedback
// theme seen three or more times. Nothing fires below the minimum grade count.
func EvaluateTrigger(grades []types.SkillGrade, cfg types.ImprovementConfig) (types.TriggerReason, bool) {
	if len(grades) < cfg.MinGradesForImprovement {
		return "", false
	}

	agg := CalculateAggregateScores(grades)
	if agg.AverageOverall < cfg.ImprovementThreshold {
		return types.TriggerLowScore, true
	}

	for _, dim := range types.AllDimensions {
		if avg, ok := agg.DimensionAverages[dim]; ok && avg < dimensionTriggerThreshold {
			return types.TriggerDimensionWeak, true
		}
	}

	if patterns := DetectFeedbackPatterns(grades); len(patterns) > 0 && patterns[0].Frequency >= feedbackTriggerMin {
		return types.TriggerFeedback, true
	}

	return "", false
}
