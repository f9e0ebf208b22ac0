package improvement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-improver/internal/prompts"
	"github.com/jonathan/skill-improver/internal/store"
	"github.com/jonathan/skill-improver/internal/types"
)

const testInstruction = "You review resumes."

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

type countingRecorder struct {
	grades, triggers, deduped, promoted, rolledBack, rejected, corrupt int
}

func (r *countingRecorder) GradeRecorded(string, float64) { r.grades++ }
func (r *countingRecorder) TriggerFired(string)           { r.triggers++ }
func (r *countingRecorder) TriggerDeduplicated()          { r.deduped++ }
func (r *countingRecorder) VersionPromoted(string)        { r.promoted++ }
func (r *countingRecorder) VersionRolledBack(string)      { r.rolledBack++ }
func (r *countingRecorder) RequestRejected()              { r.rejected++ }
func (r *countingRecorder) CorruptRead(string)            { r.corrupt++ }

func newTestEngine(t *testing.T, s store.Store, opts ...Option) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	base := []Option{WithClock(clock.Now), WithIDGenerator(sequentialIDs())}
	return NewEngine(s, append(base, opts...)...), clock
}

func registerSkill(t *testing.T, e *Engine, skillID string) *types.SkillVersion {
	t.Helper()
	v, err := e.RegisterSkill(context.Background(), types.RegisterSkillInput{
		SkillID:            skillID,
		SystemInstruction:  testInstruction,
		UserPromptTemplate: "Review this resume for {{role}}.",
	})
	require.NoError(t, err)
	return v
}

func gradeFor(v *types.SkillVersion, overall float64, feedback string) types.GradeInput {
	return types.GradeInput{
		SkillID:        v.SkillID,
		SkillVersionID: v.ID,
		UserID:         "u1",
		ExecutionID:    "exec",
		OverallScore:   overall,
		Feedback:       feedback,
	}
}

// triggerRequest records enough poor grades to open a request.
func triggerRequest(t *testing.T, e *Engine, v *types.SkillVersion) *types.ImprovementRequest {
	t.Helper()
	var last *GradeResult
	for i := 0; i < e.Config().MinGradesForImprovement; i++ {
		res, err := e.RecordGradeDetailed(context.Background(), gradeFor(v, 3, "this is too long and verbose"))
		require.NoError(t, err)
		last = res
	}
	require.NotNil(t, last.Request)
	return last.Request
}

func activeVersions(t *testing.T, e *Engine, skillID string) []types.SkillVersion {
	t.Helper()
	versions, err := e.ListVersions(context.Background(), skillID)
	require.NoError(t, err)
	var active []types.SkillVersion
	for _, v := range versions {
		if v.IsActive {
			active = append(active, v)
		}
	}
	return active
}

func TestEngine_RegisterSkill(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())

	v := registerSkill(t, e, "s1")
	assert.Equal(t, 1, v.Version)
	assert.True(t, v.IsActive)
	assert.Equal(t, types.AuthorSystem, v.CreatedBy)
	assert.Empty(t, v.PreviousVersionID)
	assert.Equal(t, 10, v.Scores.RequiredGrades)
	assert.Equal(t, 3.5, v.Scores.ImprovementThreshold)

	_, err := e.RegisterSkill(ctx, types.RegisterSkillInput{SkillID: "s1", SystemInstruction: "again"})
	var exists *SkillExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "s1", exists.SkillID)

	_, err = e.RegisterSkill(ctx, types.RegisterSkillInput{SkillID: "s2"})
	var invalid *ValidationError
	assert.ErrorAs(t, err, &invalid)
}

func TestEngine_RecordGrade(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v := registerSkill(t, e, "s1")

	in := gradeFor(v, 4, "solid")
	in.DimensionScores = []types.DimensionGrade{{Dimension: types.DimensionClarity, Score: 5}}
	g, err := e.RecordGrade(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.False(t, g.GradedAt.IsZero())
	assert.Equal(t, 4.0, g.OverallScore)

	// scores roll up onto the graded version
	active, err := e.ActiveVersion(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, active.Scores.GradeCount)
	assert.Equal(t, 4.0, active.Scores.AverageOverallScore)
	require.Len(t, active.Scores.DimensionScores, 1)
	assert.Equal(t, types.DimensionClarity, active.Scores.DimensionScores[0].Dimension)
	require.NotNil(t, active.Scores.LastGradedAt)
	assert.True(t, active.Scores.LastGradedAt.Equal(g.GradedAt))
}

func TestEngine_RecordValidatedGrade(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v := registerSkill(t, e, "s1")

	_, err := e.RecordValidatedGrade(context.Background(), gradeFor(v, 9, ""))
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)

	grades, err := e.GetGradesForVersion(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Empty(t, grades, "rejected grade must not be stored")
}

func TestEngine_EndToEndTriggerUsesRuleOrder(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	e, _ := newTestEngine(t, store.NewMemoryStore(), WithRecorder(rec))
	v := registerSkill(t, e, "s1")

	for i := 0; i < 9; i++ {
		res, err := e.RecordGradeDetailed(ctx, gradeFor(v, 3, "this is too long and verbose"))
		require.NoError(t, err)
		assert.Empty(t, res.Trigger, "grade %d", i+1)
		assert.Nil(t, res.Request)
	}

	res, err := e.RecordGradeDetailed(ctx, gradeFor(v, 3, "this is too long and verbose"))
	require.NoError(t, err)
	assert.Equal(t, types.TriggerLowScore, res.Trigger)
	require.NotNil(t, res.Request)

	req := res.Request
	assert.Equal(t, types.StatusPending, req.Status)
	assert.Equal(t, v.ID, req.SkillVersionID)
	assert.Equal(t, 10, req.IssueAnalysis.SampleSize)
	assert.Equal(t, 3.0, req.IssueAnalysis.AverageScore)
	require.Len(t, req.IssueAnalysis.FeedbackThemes, 1)
	assert.Equal(t, types.ThemeTooLong, req.IssueAnalysis.FeedbackThemes[0].Theme)
	require.Len(t, req.ProposedChanges, 1)
	assert.Equal(t, types.ConfidenceHigh, req.ProposedChanges[0].Confidence)

	assert.Equal(t, 10, rec.grades)
	assert.Equal(t, 1, rec.triggers)
}

func TestEngine_PendingRequestIsDeduplicated(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	e, _ := newTestEngine(t, store.NewMemoryStore(), WithRecorder(rec))
	v := registerSkill(t, e, "s1")
	first := triggerRequest(t, e, v)

	res, err := e.RecordGradeDetailed(ctx, gradeFor(v, 2, "too long"))
	require.NoError(t, err)
	assert.Equal(t, types.TriggerLowScore, res.Trigger)
	assert.True(t, res.Deduplicated)
	assert.Equal(t, first.ID, res.Request.ID)

	requests, err := e.ListRequests(ctx, "s1", "")
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.Equal(t, 1, rec.deduped)
}

func TestEngine_DuplicatesWhenDedupeDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := types.DefaultImprovementConfig()
	cfg.DedupePending = false
	e, _ := newTestEngine(t, store.NewMemoryStore(), WithConfig(cfg))
	v := registerSkill(t, e, "s1")
	triggerRequest(t, e, v)

	res, err := e.RecordGradeDetailed(ctx, gradeFor(v, 2, ""))
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)

	requests, err := e.ListRequests(ctx, "s1", types.StatusPending)
	require.NoError(t, err)
	require.Len(t, requests, 2)
	// newest first
	assert.Equal(t, res.Request.ID, requests[0].ID)
}

func TestEngine_ApplyImprovements(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v1 := registerSkill(t, e, "s1")
	req := triggerRequest(t, e, v1)

	v2, err := e.ApplyImprovementsAs(ctx, req.ID, types.ReviewInput{ReviewedBy: "alice", Notes: "ok"})
	require.NoError(t, err)
	require.NotNil(t, v2)

	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.IsActive)
	assert.Equal(t, v1.ID, v2.PreviousVersionID)
	assert.Equal(t, types.AuthorAIImprovement, v2.CreatedBy)
	assert.Equal(t, "Improvement from low-score-threshold", v2.ChangeReason)
	assert.Equal(t, testInstruction+"\n\n"+prompts.MustGet(prompts.ThemesFile, "too-long-addition"), v2.SystemInstruction)
	// only system-instruction changes were proposed
	assert.Equal(t, v1.UserPromptTemplate, v2.UserPromptTemplate)
	assert.Equal(t, 0, v2.Scores.GradeCount)

	active := activeVersions(t, e, "s1")
	require.Len(t, active, 1)
	assert.Equal(t, v2.ID, active[0].ID)

	got, err := e.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusImplemented, got.Status)
	assert.Equal(t, v2.ID, got.NewVersionID)
	assert.Equal(t, "alice", got.ReviewedBy)
	assert.Equal(t, "ok", got.ReviewNotes)
	require.NotNil(t, got.ReviewedAt)

	again, err := e.ApplyImprovements(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, again, "implemented request is not pending")
}

func TestEngine_ApplyImprovements_LastChangePerFieldWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, _ := newTestEngine(t, s)
	v1 := registerSkill(t, e, "s1")

	require.NoError(t, s.ReplaceRequests(ctx, []types.ImprovementRequest{{
		ID:             "req-1",
		SkillID:        "s1",
		SkillVersionID: v1.ID,
		TriggeredAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		TriggerReason:  types.TriggerDimensionWeak,
		Status:         types.StatusPending,
		IssueAnalysis: types.IssueAnalysis{
			CommonIssues: []string{"Clarity scores are low", "Output is too long"},
		},
		ProposedChanges: []types.ProposedChange{
			{ChangeType: types.ChangeSystemInstruction, NewValue: "first", AppliedValue: "first instruction"},
			{ChangeType: types.ChangeUserPrompt, NewValue: "Summarize {{role}}."},
			{ChangeType: types.ChangeSystemInstruction, NewValue: "second", AppliedValue: "second instruction"},
		},
	}}))

	v2, err := e.ApplyImprovements(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, v2)

	assert.Equal(t, "second instruction", v2.SystemInstruction)
	assert.Equal(t, "Summarize {{role}}.", v2.UserPromptTemplate)
	assert.Equal(t, "Improvement from dimension-weakness: Clarity scores are low; Output is too long", v2.ChangeReason)
}

func TestEngine_ApplyAfterRollbackNumbersForward(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v1 := registerSkill(t, e, "s1")

	v2, err := e.ApplyImprovements(ctx, triggerRequest(t, e, v1).ID)
	require.NoError(t, err)
	require.NotNil(t, v2)
	restored, err := e.RollbackVersion(ctx, "s1", "regressed")
	require.NoError(t, err)
	require.NotNil(t, restored)

	v3, err := e.ApplyImprovements(ctx, triggerRequest(t, e, restored).ID)
	require.NoError(t, err)
	require.NotNil(t, v3)
	assert.Equal(t, 3, v3.Version)
	assert.Equal(t, v1.ID, v3.PreviousVersionID)

	versions, err := e.ListVersions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	seen := map[int]bool{}
	for i, v := range versions {
		assert.False(t, seen[v.Version], "version %d reused", v.Version)
		seen[v.Version] = true
		if i > 0 {
			assert.Greater(t, v.Version, versions[i-1].Version)
		}
	}
	active := activeVersions(t, e, "s1")
	require.Len(t, active, 1)
	assert.Equal(t, v3.ID, active[0].ID)
}

func TestEngine_ApplyImprovements_SoftFailures(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())

	v, err := e.ApplyImprovements(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	rb, err := e.RollbackVersion(ctx, "missing", "nope")
	require.NoError(t, err)
	assert.Nil(t, rb)

	req, err := e.RequestImprovement(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, req)

	rej, err := e.RejectImprovement(ctx, "missing", types.ReviewInput{})
	require.NoError(t, err)
	assert.Nil(t, rej)

	got, err := e.GetRequest(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEngine_VersionMonotonicity(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	registerSkill(t, e, "s1")

	const n = 4
	for i := 0; i < n; i++ {
		req, err := e.RequestImprovement(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, types.TriggerManual, req.TriggerReason)

		v, err := e.ApplyImprovements(ctx, req.ID)
		require.NoError(t, err)
		require.NotNil(t, v)
	}

	versions, err := e.ListVersions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, versions, n+1)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Version)
		if i > 0 {
			assert.Equal(t, versions[i-1].ID, v.PreviousVersionID)
		}
	}
	active := activeVersions(t, e, "s1")
	require.Len(t, active, 1)
	assert.Equal(t, n+1, active[0].Version)
}

func TestEngine_RollbackSymmetry(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	e, _ := newTestEngine(t, store.NewMemoryStore(), WithRecorder(rec))
	v1 := registerSkill(t, e, "s1")
	req := triggerRequest(t, e, v1)
	v2, err := e.ApplyImprovements(ctx, req.ID)
	require.NoError(t, err)

	restored, err := e.RollbackVersion(ctx, "s1", "scores dropped")
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, v1.ID, restored.ID)
	assert.True(t, restored.IsActive)
	assert.Equal(t, "Rolled back: scores dropped", restored.ChangeReason)
	assert.Equal(t, testInstruction, restored.SystemInstruction)

	versions, err := e.ListVersions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, versions, 2, "promoted version is kept")
	assert.Equal(t, v2.ID, versions[1].ID)
	assert.False(t, versions[1].IsActive)

	// request status is not touched by rollback
	got, err := e.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusImplemented, got.Status)

	none, err := e.RollbackVersion(ctx, "s1", "again")
	require.NoError(t, err)
	assert.Nil(t, none, "version 1 has no predecessor")
	assert.Equal(t, 1, rec.rolledBack)
}

func TestEngine_RejectImprovement(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v := registerSkill(t, e, "s1")
	req := triggerRequest(t, e, v)

	rejected, err := e.RejectImprovement(ctx, req.ID, types.ReviewInput{ReviewedBy: "bob", Notes: "not now"})
	require.NoError(t, err)
	require.NotNil(t, rejected)
	assert.Equal(t, types.StatusRejected, rejected.Status)
	assert.Equal(t, "bob", rejected.ReviewedBy)
	require.NotNil(t, rejected.ReviewedAt)

	applied, err := e.ApplyImprovements(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, applied)

	active := activeVersions(t, e, "s1")
	require.Len(t, active, 1)
	assert.Equal(t, v.ID, active[0].ID)

	// a rejected request no longer blocks new ones
	res, err := e.RecordGradeDetailed(ctx, gradeFor(v, 2, ""))
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)
	assert.NotEqual(t, req.ID, res.Request.ID)
}

func TestEngine_AutoImplement(t *testing.T) {
	ctx := context.Background()
	cfg := types.DefaultImprovementConfig()
	cfg.AutoImplement = true
	cfg.MinGradesForImprovement = 3
	e, _ := newTestEngine(t, store.NewMemoryStore(), WithConfig(cfg))
	v := registerSkill(t, e, "s1")

	var res *GradeResult
	for i := 0; i < 3; i++ {
		var err error
		res, err = e.RecordGradeDetailed(ctx, gradeFor(v, 2, ""))
		require.NoError(t, err)
	}
	require.NotNil(t, res.Promoted)
	assert.Equal(t, 2, res.Promoted.Version)

	got, err := e.GetRequest(ctx, res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusImplemented, got.Status)
	assert.Equal(t, "system", got.ReviewedBy)
}

func TestEngine_ReadsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v := registerSkill(t, e, "s1")
	for _, score := range []float64{2, 3, 4} {
		in := gradeFor(v, score, "too generic")
		in.DimensionScores = []types.DimensionGrade{{Dimension: types.DimensionActionability, Score: score}}
		_, err := e.RecordGrade(ctx, in)
		require.NoError(t, err)
	}

	first, err := e.GetGradesForVersion(ctx, "s1", v.ID)
	require.NoError(t, err)
	second, err := e.GetGradesForVersion(ctx, "s1", v.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("GetGradesForVersion() not stable (-first +second):\n%s", diff)
	}
	assert.Equal(t, CalculateAggregateScores(first), CalculateAggregateScores(second))
	if diff := cmp.Diff(AnalyzeIssues(first), AnalyzeIssues(second)); diff != "" {
		t.Errorf("AnalyzeIssues() not stable (-first +second):\n%s", diff)
	}

	other, err := e.GetGradesForVersion(ctx, "s1", "other-version")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestEngine_GenerateProposedChangesPreview(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	registerSkill(t, e, "s1")

	analysis := types.IssueAnalysis{WeakestDimensions: []types.QualityDimension{types.DimensionAccuracy}}
	changes, err := e.GenerateProposedChanges(ctx, "s1", analysis)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.True(t, strings.HasPrefix(changes[0].AppliedValue, testInstruction))

	requests, err := e.ListRequests(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, requests, "preview does not persist")

	unknown, err := e.GenerateProposedChanges(ctx, "missing", analysis)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestEngine_CorruptCollection(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := types.DefaultImprovementConfig()
	cfg.MinGradesForImprovement = 1
	rec := &countingRecorder{}
	e, _ := newTestEngine(t, s, WithConfig(cfg), WithRecorder(rec))
	v := registerSkill(t, e, "s1")
	require.NoError(t, s.PutRaw(store.KeyRequests, []byte("{not json")))

	// reads treat the collection as empty
	requests, err := e.ListRequests(ctx, "s1", "")
	require.NoError(t, err)
	assert.Empty(t, requests)
	h, err := e.GetImprovementHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, h.TotalImprovements)
	assert.GreaterOrEqual(t, rec.corrupt, 2)

	// writes refuse to replace it
	_, err = e.RecordGrade(ctx, gradeFor(v, 1, ""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCorrupt))
}

func TestEngine_RecordGrade_CorruptCollectionStoresNothing(t *testing.T) {
	for _, key := range []string{store.KeyVersions, store.KeyRequests} {
		t.Run(key, func(t *testing.T) {
			ctx := context.Background()
			s, err := store.OpenBadger(store.BadgerConfig{InMemory: true})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			rec := &countingRecorder{}
			e, _ := newTestEngine(t, s, WithRecorder(rec))
			v := registerSkill(t, e, "s1")
			require.NoError(t, s.PutRaw(key, []byte("{bad")))

			_, err = e.RecordGrade(ctx, gradeFor(v, 4, "fine"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, store.ErrCorrupt))

			grades, err := s.LoadGrades(ctx)
			require.NoError(t, err)
			assert.Empty(t, grades)
			assert.Equal(t, 0, rec.grades)
		})
	}
}

func TestEngine_ConcurrentApplyPromotesOnce(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemoryStore())
	v := registerSkill(t, e, "s1")
	req := triggerRequest(t, e, v)

	var wg sync.WaitGroup
	results := make([]*types.SkillVersion, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.ApplyImprovements(ctx, req.ID)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	promoted := 0
	for _, r := range results {
		if r != nil {
			promoted++
		}
	}
	assert.Equal(t, 1, promoted)

	versions, err := e.ListVersions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}
