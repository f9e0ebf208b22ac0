package improvement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/skill-improver/internal/store"
	"github.com/jonathan/skill-improver/internal/types"
)

// Recorder receives engine events for instrumentation.
type Recorder interface {
	GradeRecorded(skillID string, overall float64)
	TriggerFired(reason string)
	TriggerDeduplicated()
	VersionPromoted(skillID string)
	VersionRolledBack(skillID string)
	RequestRejected()
	CorruptRead(collection string)
}

type nopRecorder struct{}

func (nopRecorder) GradeRecorded(string, float64) {}
func (nopRecorder) TriggerFired(string)           {}
func (nopRecorder) TriggerDeduplicated()          {}
func (nopRecorder) VersionPromoted(string)        {}
func (nopRecorder) VersionRolledBack(string)      {}
func (nopRecorder) RequestRejected()              {}
func (nopRecorder) CorruptRead(string)            {}

// Engine runs the improvement cycle over a record store.
//
// Every mutating operation holds writeMu for its whole read-modify-write
// sequence. Store writes replace entire collections, so a lock per skill
// would still lose updates between skills.
type Engine struct {
	store    store.Store
	cfg      types.ImprovementConfig
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
	newID    func() string

	writeMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the improvement policy.
func WithConfig(cfg types.ImprovementConfig) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets the instrumentation sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides the time source. Useful for testing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides record id generation. Useful for testing.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// NewEngine creates an Engine with the default policy unless overridden.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		cfg:      types.DefaultImprovementConfig(),
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's improvement policy.
func (e *Engine) Config() types.ImprovementConfig {
	return e.cfg
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// GradeResult reports what recording a grade caused.
type GradeResult struct {
	Grade types.SkillGrade `json:"grade"`
	// Trigger is empty when no rule fired.
	Trigger types.TriggerReason `json:"trigger,omitempty"`
	// Request is the request the trigger created, or the pending one it was
	// folded into when Deduplicated is true.
	Request      *types.ImprovementRequest `json:"request,omitempty"`
	Deduplicated bool                      `json:"deduplicated,omitempty"`
	// Promoted is set when auto-implement applied the new request.
	Promoted *types.SkillVersion `json:"promoted,omitempty"`
}

// RecordGrade stores a grade and evaluates the improvement trigger for the
// graded version. The core does not validate the input.
func (e *Engine) RecordGrade(ctx context.Context, in types.GradeInput) (*types.SkillGrade, error) {
	res, err := e.RecordGradeDetailed(ctx, in)
	if err != nil {
		return nil, err
	}
	return &res.Grade, nil
}

// RecordValidatedGrade validates the input before recording it.
func (e *Engine) RecordValidatedGrade(ctx context.Context, in types.GradeInput) (*GradeResult, error) {
	if err := in.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	return e.RecordGradeDetailed(ctx, in)
}

// RecordGradeDetailed is RecordGrade that also reports the trigger outcome.
func (e *Engine) RecordGradeDetailed(ctx context.Context, in types.GradeInput) (*GradeResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	// Load everything this call may rewrite before the grade is stored.
	grades, err := e.gradesFor(ctx, in.SkillID, in.SkillVersionID)
	if err != nil {
		return nil, err
	}
	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	if _, err := e.store.LoadRequests(ctx); err != nil {
		return nil, fmt.Errorf("failed to load improvement requests: %w", err)
	}

	grade := in.ToGrade(e.newID(), e.timestamp())
	if err := e.store.AppendGrade(ctx, grade); err != nil {
		return nil, fmt.Errorf("failed to append grade: %w", err)
	}
	e.recorder.GradeRecorded(grade.SkillID, grade.OverallScore)
	e.logger.Debug().
		Str("skill_id", grade.SkillID).
		Str("version_id", grade.SkillVersionID).
		Float64("overall", grade.OverallScore).
		Msg("grade recorded")

	grades = append(grades, grade)
	if err := e.rollupVersionScores(ctx, versions, grade.SkillVersionID, grades); err != nil {
		return nil, err
	}

	res := &GradeResult{Grade: grade}
	reason, fired := EvaluateTrigger(grades, e.cfg)
	if !fired {
		return res, nil
	}
	res.Trigger = reason

	req, deduped, err := e.openRequestLocked(ctx, grade.SkillID, grade.SkillVersionID, reason, grades)
	if err != nil {
		return nil, err
	}
	res.Request = req
	res.Deduplicated = deduped

	if e.cfg.AutoImplement && !deduped {
		promoted, err := e.applyLocked(ctx, req.ID, types.ReviewInput{ReviewedBy: string(types.AuthorSystem), Notes: "auto-implemented"})
		if err != nil {
			return nil, err
		}
		res.Promoted = promoted
	}
	return res, nil
}

// GetGradesForVersion returns a skill's grades, limited to one version when
// versionID is non-empty.
func (e *Engine) GetGradesForVersion(ctx context.Context, skillID, versionID string) ([]types.SkillGrade, error) {
	grades, err := e.readGrades(ctx)
	if err != nil {
		return nil, err
	}
	return filterGrades(grades, skillID, versionID), nil
}

// RequestImprovement opens a manual-request improvement for the skill's
// active version regardless of grade count. Returns nil when the skill has
// no active version.
func (e *Engine) RequestImprovement(ctx context.Context, skillID string) (*types.ImprovementRequest, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	active := findActive(versions, skillID)
	if active == nil {
		return nil, nil
	}
	grades, err := e.gradesFor(ctx, skillID, active.ID)
	if err != nil {
		return nil, err
	}
	req, _, err := e.openRequestLocked(ctx, skillID, active.ID, types.TriggerManual, grades)
	return req, err
}

// GenerateProposedChanges previews the edits a diagnosis would produce
// against the skill's active version, without persisting anything.
func (e *Engine) GenerateProposedChanges(ctx context.Context, skillID string, analysis types.IssueAnalysis) ([]types.ProposedChange, error) {
	versions, err := e.readVersions(ctx)
	if err != nil {
		return nil, err
	}
	return GenerateProposedChanges(findActive(versions, skillID), analysis), nil
}

// ListRequests returns a skill's requests (all skills when skillID is
// empty), optionally filtered by status, newest first.
func (e *Engine) ListRequests(ctx context.Context, skillID string, status types.RequestStatus) ([]types.ImprovementRequest, error) {
	requests, err := e.readRequests(ctx)
	if err != nil {
		return nil, err
	}
	out := []types.ImprovementRequest{}
	for _, r := range requests {
		if skillID != "" && r.SkillID != skillID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out, nil
}

// GetRequest returns one request, or nil if it does not exist.
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*types.ImprovementRequest, error) {
	requests, err := e.readRequests(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexRequest(requests, requestID); i >= 0 {
		return &requests[i], nil
	}
	return nil, nil
}

// openRequestLocked persists a new pending request for the version, or
// returns the existing pending one when deduplication is on.
func (e *Engine) openRequestLocked(ctx context.Context, skillID, versionID string, reason types.TriggerReason, grades []types.SkillGrade) (*types.ImprovementRequest, bool, error) {
	requests, err := e.store.LoadRequests(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load improvement requests: %w", err)
	}

	if e.cfg.DedupePending {
		for i := range requests {
			r := &requests[i]
			if r.SkillID == skillID && r.SkillVersionID == versionID && r.Status == types.StatusPending {
				e.recorder.TriggerDeduplicated()
				e.logger.Debug().
					Str("skill_id", skillID).
					Str("request_id", r.ID).
					Str("trigger", string(reason)).
					Msg("trigger suppressed, request already pending")
				return r, true, nil
			}
		}
	}

	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load versions: %w", err)
	}

	analysis := AnalyzeIssues(grades)
	req := types.ImprovementRequest{
		ID:              e.newID(),
		SkillID:         skillID,
		SkillVersionID:  versionID,
		TriggeredAt:     e.timestamp(),
		TriggerReason:   reason,
		IssueAnalysis:   analysis,
		ProposedChanges: GenerateProposedChanges(findActive(versions, skillID), analysis),
		Status:          types.StatusPending,
	}
	requests = append(requests, req)
	if err := e.store.ReplaceRequests(ctx, requests); err != nil {
		return nil, false, fmt.Errorf("failed to save improvement request: %w", err)
	}

	e.recorder.TriggerFired(string(reason))
	e.logger.Info().
		Str("skill_id", skillID).
		Str("version_id", versionID).
		Str("request_id", req.ID).
		Str("trigger", string(reason)).
		Int("proposed_changes", len(req.ProposedChanges)).
		Msg("improvement request created")
	return &req, false, nil
}

// rollupVersionScores writes the aggregate of grades onto the graded version.
func (e *Engine) rollupVersionScores(ctx context.Context, versions []types.SkillVersion, versionID string, grades []types.SkillGrade) error {
	i := indexVersion(versions, versionID)
	if i < 0 {
		return nil
	}
	versions[i].Scores = rollupScores(versions[i].Scores, grades)
	if err := e.store.ReplaceVersions(ctx, versions); err != nil {
		return fmt.Errorf("failed to save version scores: %w", err)
	}
	return nil
}

// gradesFor loads grades for one version, failing on unreadable data.
func (e *Engine) gradesFor(ctx context.Context, skillID, versionID string) ([]types.SkillGrade, error) {
	grades, err := e.store.LoadGrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load grades: %w", err)
	}
	return filterGrades(grades, skillID, versionID), nil
}

// The read* helpers serve read-only paths: a corrupt collection is logged
// and treated as empty, other store errors are returned.

func (e *Engine) readGrades(ctx context.Context) ([]types.SkillGrade, error) {
	grades, err := e.store.LoadGrades(ctx)
	if err != nil {
		if err = e.tolerateCorrupt(store.KeyGrades, err); err != nil {
			return nil, err
		}
		return []types.SkillGrade{}, nil
	}
	return grades, nil
}

func (e *Engine) readVersions(ctx context.Context) ([]types.SkillVersion, error) {
	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		if err = e.tolerateCorrupt(store.KeyVersions, err); err != nil {
			return nil, err
		}
		return []types.SkillVersion{}, nil
	}
	return versions, nil
}

func (e *Engine) readRequests(ctx context.Context) ([]types.ImprovementRequest, error) {
	requests, err := e.store.LoadRequests(ctx)
	if err != nil {
		if err = e.tolerateCorrupt(store.KeyRequests, err); err != nil {
			return nil, err
		}
		return []types.ImprovementRequest{}, nil
	}
	return requests, nil
}

func (e *Engine) tolerateCorrupt(collection string, err error) error {
	if errors.Is(err, store.ErrCorrupt) {
		e.recorder.CorruptRead(collection)
		e.logger.Warn().Err(err).Str("collection", collection).Msg("unreadable collection treated as empty")
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", collection, err)
}

func filterGrades(grades []types.SkillGrade, skillID, versionID string) []types.SkillGrade {
	out := []types.SkillGrade{}
	for _, g := range grades {
		if g.SkillID == skillID && (versionID == "" || g.SkillVersionID == versionID) {
			out = append(out, g)
		}
	}
	return out
}

func findActive(versions []types.SkillVersion, skillID string) *types.SkillVersion {
	for i := range versions {
		if versions[i].SkillID == skillID && versions[i].IsActive {
			return &versions[i]
		}
	}
	return nil
}

func indexVersion(versions []types.SkillVersion, id string) int {
	for i := range versions {
		if versions[i].ID == id {
			return i
		}
	}
	return -1
}

func indexRequest(requests []types.ImprovementRequest, id string) int {
	for i := range requests {
		if requests[i].ID == id {
			return i
		}
	}
	return -1
}
