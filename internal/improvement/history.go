package improvement

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/skill-improver/internal/types"
)

const trajectoryDateLayout = "2006-01-02"

// GetImprovementHistory projects a skill's version lineage, request counts
// and daily score trajectory. It never writes.
func (e *Engine) GetImprovementHistory(ctx context.Context, skillID string) (*types.SkillImprovementHistory, error) {
	var (
		versions []types.SkillVersion
		grades   []types.SkillGrade
		requests []types.ImprovementRequest
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := e.readVersions(gCtx)
		if err != nil {
			return err
		}
		for _, v := range all {
			if v.SkillID == skillID {
				versions = append(versions, v)
			}
		}
		return nil
	})
	g.Go(func() error {
		all, err := e.readGrades(gCtx)
		if err != nil {
			return err
		}
		grades = filterGrades(all, skillID, "")
		return nil
	})
	g.Go(func() error {
		all, err := e.readRequests(gCtx)
		if err != nil {
			return err
		}
		for _, r := range all {
			if r.SkillID == skillID {
				requests = append(requests, r)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })

	h := &types.SkillImprovementHistory{
		SkillID:         skillID,
		SkillName:       skillID,
		Versions:        make([]types.SkillVersionSummary, 0, len(versions)),
		ScoreTrajectory: scoreTrajectory(grades),
		CurrentVersion:  1,
	}

	for _, v := range versions {
		agg := CalculateAggregateScores(filterGrades(grades, skillID, v.ID))
		h.Versions = append(h.Versions, types.SkillVersionSummary{
			VersionID:     v.ID,
			Version:       v.Version,
			CreatedAt:     v.CreatedAt,
			AverageScore:  agg.AverageOverall,
			GradeCount:    agg.GradeCount,
			ChangeReason:  v.ChangeReason,
			IsActive:      v.IsActive,
			WasRolledBack: wasRolledBack(requests, v.ID),
		})
		if v.IsActive {
			h.CurrentVersion = v.Version
			h.CurrentScore = agg.AverageOverall
			h.GradesUntilNextReview = max(0, v.Scores.RequiredGrades-agg.GradeCount)
		}
	}

	h.TotalImprovements = len(requests)
	for _, r := range requests {
		switch r.Status {
		case types.StatusImplemented:
			h.SuccessfulImprovements++
		case types.StatusRolledBack:
			h.RolledBackImprovements++
		}
	}
	return h, nil
}

// wasRolledBack only reads request status; RollbackVersion does not set it.
func wasRolledBack(requests []types.ImprovementRequest, versionID string) bool {
	for _, r := range requests {
		if r.NewVersionID == versionID && r.Status == types.StatusRolledBack {
			return true
		}
	}
	return false
}

// scoreTrajectory buckets grades by UTC calendar day, ascending.
func scoreTrajectory(grades []types.SkillGrade) []types.ScorePoint {
	type bucket struct {
		sum   float64
		count int
	}
	byDate := make(map[string]*bucket)
	for _, g := range grades {
		date := g.GradedAt.UTC().Format(trajectoryDateLayout)
		b, ok := byDate[date]
		if !ok {
			b = &bucket{}
			byDate[date] = b
		}
		b.sum += g.OverallScore
		b.count++
	}

	points := make([]types.ScorePoint, 0, len(byDate))
	for date, b := range byDate {
		points = append(points, types.ScorePoint{Date: date, Score: b.sum / float64(b.count)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}
