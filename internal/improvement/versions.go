package improvement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/skill-improver/internal/types"
)

// RegisterSkill creates version 1 of a new skill as its active version.
func (e *Engine) RegisterSkill(ctx context.Context, in types.RegisterSkillInput) (*types.SkillVersion, error) {
	if err := in.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	for i := range versions {
		if versions[i].SkillID == in.SkillID {
			return nil, &SkillExistsError{SkillID: in.SkillID}
		}
	}

	author := in.CreatedBy
	if author == "" {
		author = types.AuthorSystem
	}
	v := types.SkillVersion{
		ID:                 e.newID(),
		SkillID:            in.SkillID,
		Version:            1,
		SystemInstruction:  in.SystemInstruction,
		UserPromptTemplate: in.UserPromptTemplate,
		CreatedAt:          e.timestamp(),
		CreatedBy:          author,
		Scores:             types.NewVersionScores(e.cfg),
		IsActive:           true,
	}
	versions = append(versions, v)
	if err := e.store.ReplaceVersions(ctx, versions); err != nil {
		return nil, fmt.Errorf("failed to save version: %w", err)
	}

	e.logger.Info().Str("skill_id", v.SkillID).Str("version_id", v.ID).Msg("skill registered")
	return &v, nil
}

// ActiveVersion returns the skill's active version, or nil if it has none.
func (e *Engine) ActiveVersion(ctx context.Context, skillID string) (*types.SkillVersion, error) {
	versions, err := e.readVersions(ctx)
	if err != nil {
		return nil, err
	}
	return findActive(versions, skillID), nil
}

// ListVersions returns a skill's versions ordered by version number.
func (e *Engine) ListVersions(ctx context.Context, skillID string) ([]types.SkillVersion, error) {
	versions, err := e.readVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := []types.SkillVersion{}
	for _, v := range versions {
		if v.SkillID == skillID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ApplyImprovements promotes a pending request into a new active version.
// Returns nil when the request is unknown, not pending, or its skill has no
// active version.
func (e *Engine) ApplyImprovements(ctx context.Context, requestID string) (*types.SkillVersion, error) {
	return e.ApplyImprovementsAs(ctx, requestID, types.ReviewInput{})
}

// ApplyImprovementsAs is ApplyImprovements with reviewer metadata recorded
// on the request.
func (e *Engine) ApplyImprovementsAs(ctx context.Context, requestID string, review types.ReviewInput) (*types.SkillVersion, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.applyLocked(ctx, requestID, review)
}

func (e *Engine) applyLocked(ctx context.Context, requestID string, review types.ReviewInput) (*types.SkillVersion, error) {
	requests, err := e.store.LoadRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load improvement requests: %w", err)
	}
	ri := indexRequest(requests, requestID)
	if ri < 0 || requests[ri].Status != types.StatusPending {
		return nil, nil
	}
	req := &requests[ri]

	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	current := findActive(versions, req.SkillID)
	if current == nil {
		return nil, nil
	}

	// later changes to the same field win
	instruction := current.SystemInstruction
	template := current.UserPromptTemplate
	for i := range req.ProposedChanges {
		c := &req.ProposedChanges[i]
		switch c.ChangeType {
		case types.ChangeSystemInstruction:
			instruction = c.FullValue()
		case types.ChangeUserPrompt:
			template = c.FullValue()
		case types.ChangeInputField, types.ChangeConfig:
			// reserved; nothing generates these yet
		}
	}

	reason := fmt.Sprintf("Improvement from %s", req.TriggerReason)
	if len(req.IssueAnalysis.CommonIssues) > 0 {
		reason += ": " + strings.Join(req.IssueAnalysis.CommonIssues, "; ")
	}

	now := e.timestamp()
	next := types.SkillVersion{
		ID:      e.newID(),
		SkillID: req.SkillID,
		// after a rollback the active version is not the newest one
		Version:            latestVersion(versions, req.SkillID) + 1,
		SystemInstruction:  instruction,
		UserPromptTemplate: template,
		CreatedAt:          now,
		CreatedBy:          types.AuthorAIImprovement,
		ChangeReason:       reason,
		PreviousVersionID:  current.ID,
		Scores:             types.NewVersionScores(e.cfg),
		IsActive:           true,
	}
	current.IsActive = false
	versions = append(versions, next)
	if err := e.store.ReplaceVersions(ctx, versions); err != nil {
		return nil, fmt.Errorf("failed to save versions: %w", err)
	}

	if err := req.Advance(types.StatusApproved); err != nil {
		return nil, err
	}
	if err := req.Advance(types.StatusImplemented); err != nil {
		return nil, err
	}
	req.NewVersionID = next.ID
	req.ReviewedBy = review.ReviewedBy
	req.ReviewNotes = review.Notes
	req.ReviewedAt = &now
	if err := e.store.ReplaceRequests(ctx, requests); err != nil {
		return nil, fmt.Errorf("failed to save improvement request: %w", err)
	}

	e.recorder.VersionPromoted(next.SkillID)
	e.logger.Info().
		Str("skill_id", next.SkillID).
		Str("request_id", req.ID).
		Int("version", next.Version).
		Str("previous_version_id", current.ID).
		Msg("skill version promoted")
	return &next, nil
}

// RejectImprovement closes a pending request without changing any version.
// Returns nil when the request is unknown or not pending.
func (e *Engine) RejectImprovement(ctx context.Context, requestID string, review types.ReviewInput) (*types.ImprovementRequest, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	requests, err := e.store.LoadRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load improvement requests: %w", err)
	}
	ri := indexRequest(requests, requestID)
	if ri < 0 || requests[ri].Status != types.StatusPending {
		return nil, nil
	}
	req := &requests[ri]

	if err := req.Advance(types.StatusRejected); err != nil {
		return nil, err
	}
	now := e.timestamp()
	req.ReviewedBy = review.ReviewedBy
	req.ReviewNotes = review.Notes
	req.ReviewedAt = &now
	if err := e.store.ReplaceRequests(ctx, requests); err != nil {
		return nil, fmt.Errorf("failed to save improvement request: %w", err)
	}

	e.recorder.RequestRejected()
	e.logger.Info().Str("skill_id", req.SkillID).Str("request_id", req.ID).Msg("improvement request rejected")
	out := *req
	return &out, nil
}

// RollbackVersion reactivates the active version's immediate predecessor.
// Improvement request statuses are left untouched. Returns nil when there
// is no active version or it has no predecessor.
func (e *Engine) RollbackVersion(ctx context.Context, skillID, reason string) (*types.SkillVersion, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	versions, err := e.store.LoadVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions: %w", err)
	}
	active := findActive(versions, skillID)
	if active == nil || !active.HasPredecessor() {
		return nil, nil
	}
	pi := indexVersion(versions, active.PreviousVersionID)
	if pi < 0 {
		return nil, nil
	}
	previous := &versions[pi]

	active.IsActive = false
	previous.IsActive = true
	previous.ChangeReason = "Rolled back: " + reason
	if err := e.store.ReplaceVersions(ctx, versions); err != nil {
		return nil, fmt.Errorf("failed to save versions: %w", err)
	}

	e.recorder.VersionRolledBack(skillID)
	e.logger.Info().
		Str("skill_id", skillID).
		Int("from_version", active.Version).
		Int("to_version", previous.Version).
		Str("reason", reason).
		Msg("skill version rolled back")
	out := *previous
	return &out, nil
}

// latestVersion returns the highest version number the skill has used.
func latestVersion(versions []types.SkillVersion, skillID string) int {
	latest := 0
	for i := range versions {
		if versions[i].SkillID == skillID && versions[i].Version > latest {
			latest = versions[i].Version
		}
	}
	return latest
}
