package store

import (
	"context"
	"sync"

	"github.com/jonathan/skill-improver/internal/types"
)

// MemoryStore is a threadsafe in-memory store for tests and the default CLI backend.
type MemoryStore struct {
	mu       sync.RWMutex
	grades   []types.SkillGrade
	versions []types.SkillVersion
	requests []types.ImprovementRequest
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadGrades(_ context.Context) ([]types.SkillGrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SkillGrade, len(s.grades))
	for i := range s.grades {
		out[i] = cloneGrade(s.grades[i])
	}
	return out, nil
}

func (s *MemoryStore) AppendGrade(_ context.Context, grade types.SkillGrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades = append(s.grades, cloneGrade(grade))
	return nil
}

func (s *MemoryStore) LoadVersions(_ context.Context) ([]types.SkillVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SkillVersion, len(s.versions))
	for i := range s.versions {
		out[i] = cloneVersion(s.versions[i])
	}
	return out, nil
}

func (s *MemoryStore) ReplaceVersions(_ context.Context, versions []types.SkillVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = make([]types.SkillVersion, len(versions))
	for i := range versions {
		s.versions[i] = cloneVersion(versions[i])
	}
	return nil
}

func (s *MemoryStore) LoadRequests(_ context.Context) ([]types.ImprovementRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ImprovementRequest, len(s.requests))
	for i := range s.requests {
		out[i] = cloneRequest(s.requests[i])
	}
	return out, nil
}

func (s *MemoryStore) ReplaceRequests(_ context.Context, requests []types.ImprovementRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = make([]types.ImprovementRequest, len(requests))
	for i := range requests {
		s.requests[i] = cloneRequest(requests[i])
	}
	return nil
}

func cloneGrade(g types.SkillGrade) types.SkillGrade {
	if g.DimensionScores != nil {
		g.DimensionScores = append([]types.DimensionGrade(nil), g.DimensionScores...)
	}
	return g
}

func cloneVersion(v types.SkillVersion) types.SkillVersion {
	if v.Scores.DimensionScores != nil {
		v.Scores.DimensionScores = append([]types.DimensionScore(nil), v.Scores.DimensionScores...)
	}
	if v.Scores.LastGradedAt != nil {
		t := *v.Scores.LastGradedAt
		v.Scores.LastGradedAt = &t
	}
	return v
}

func cloneRequest(r types.ImprovementRequest) types.ImprovementRequest {
	if r.ProposedChanges != nil {
		r.ProposedChanges = append([]types.ProposedChange(nil), r.ProposedChanges...)
	}
	a := &r.IssueAnalysis
	if a.CommonIssues != nil {
		a.CommonIssues = append([]string(nil), a.CommonIssues...)
	}
	if a.WeakestDimensions != nil {
		a.WeakestDimensions = append([]types.QualityDimension(nil), a.WeakestDimensions...)
	}
	if a.ScoreDistribution != nil {
		a.ScoreDistribution = append([]types.ScoreBucket(nil), a.ScoreDistribution...)
	}
	if a.FeedbackThemes != nil {
		themes := make([]types.ThemeSummary, len(a.FeedbackThemes))
		for i, th := range a.FeedbackThemes {
			th.ExampleFeedback = append([]string(nil), th.ExampleFeedback...)
			themes[i] = th
		}
		a.FeedbackThemes = themes
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		r.ReviewedAt = &t
	}
	return r
}
