package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jonathan/skill-improver/internal/improvement"
	"github.com/jonathan/skill-improver/internal/prompts"
	"github.com/jonathan/skill-improver/internal/types"
)

// varQueryPrefix marks prompt query parameters that fill {{placeholders}}.
const varQueryPrefix = "var."

// RollbackRequest is the body of POST /skills/{skill_id}/rollback
type RollbackRequest struct {
	Reason string `json:"reason"`
}

// AnalysisResponse is the read-only diagnosis preview for one skill version
type AnalysisResponse struct {
	SkillID         string                        `json:"skill_id"`
	VersionID       string                        `json:"version_id,omitempty"`
	Aggregate       improvement.AggregateScores   `json:"aggregate"`
	Issues          types.IssueAnalysis           `json:"issues"`
	Patterns        []improvement.FeedbackPattern `json:"patterns"`
	ProposedChanges []types.ProposedChange        `json:"proposed_changes"`
}

// decodeJSON decodes the request body into v. An empty body is accepted
// when optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// handleRegisterSkill creates version 1 of a skill
func (s *Server) handleRegisterSkill(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterSkillInput
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	version, err := s.engine.RegisterSkill(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, version)
}

// handleListVersions lists every version of a skill, oldest first
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	skillID := r.PathValue("skill_id")
	versions, err := s.engine.ListVersions(r.Context(), skillID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(versions) == 0 {
		s.writeError(w, r, &ErrNotFound{Resource: "skill", ID: skillID})
		return
	}
	s.jsonResponse(w, http.StatusOK, versions)
}

// handleGetPrompt resolves the prompt a skill execution should use.
// Query: fallback_system, fallback_user, and var.<name> placeholder values.
func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resolved := s.engine.EffectivePrompt(r.Context(), r.PathValue("skill_id"), improvement.FallbackPrompt{
		SystemInstruction: q.Get("fallback_system"),
		UserPrompt:        q.Get("fallback_user"),
	})

	values := map[string]any{}
	for key := range q {
		if name, ok := strings.CutPrefix(key, varQueryPrefix); ok {
			values[name] = q.Get(key)
		}
	}
	if len(values) > 0 {
		resolved.UserPrompt = prompts.Interpolate(resolved.UserPrompt, values)
	}
	s.jsonResponse(w, http.StatusOK, resolved)
}

// handleRecordGrade validates and records a grade for the skill
func (s *Server) handleRecordGrade(w http.ResponseWriter, r *http.Request) {
	skillID := r.PathValue("skill_id")

	var in types.GradeInput
	if err := decodeJSON(r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.SkillID == "" {
		in.SkillID = skillID
	}
	if in.SkillID != skillID {
		s.writeError(w, r, &ErrValidation{Field: "skill_id", Message: "does not match path"})
		return
	}

	res, err := s.engine.RecordValidatedGrade(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, res)
}

// handleListGrades lists a skill's grades, optionally for one version
func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := s.engine.GetGradesForVersion(r.Context(), r.PathValue("skill_id"), r.URL.Query().Get("version_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, grades)
}

// handleGetAnalysis previews aggregate scores, issues, patterns and the
// changes they would propose. Defaults to the active version.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	skillID := r.PathValue("skill_id")

	versionID := r.URL.Query().Get("version_id")
	if versionID == "" {
		active, err := s.engine.ActiveVersion(ctx, skillID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if active == nil {
			s.writeError(w, r, &ErrNotFound{Resource: "skill", ID: skillID})
			return
		}
		versionID = active.ID
	}

	grades, err := s.engine.GetGradesForVersion(ctx, skillID, versionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	issues := improvement.AnalyzeIssues(grades)
	changes, err := s.engine.GenerateProposedChanges(ctx, skillID, issues)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, AnalysisResponse{
		SkillID:         skillID,
		VersionID:       versionID,
		Aggregate:       improvement.CalculateAggregateScores(grades),
		Issues:          issues,
		Patterns:        improvement.DetectFeedbackPatterns(grades),
		ProposedChanges: changes,
	})
}

// handleRequestImprovement opens a manual improvement request
func (s *Server) handleRequestImprovement(w http.ResponseWriter, r *http.Request) {
	skillID := r.PathValue("skill_id")
	req, err := s.engine.RequestImprovement(r.Context(), skillID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req == nil {
		s.writeError(w, r, &ErrNotFound{Resource: "skill", ID: skillID})
		return
	}
	s.jsonResponse(w, http.StatusCreated, req)
}

// handleRollback reactivates the active version's predecessor
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	skillID := r.PathValue("skill_id")

	var body RollbackRequest
	if err := decodeJSON(r, &body, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Reason) == "" {
		s.writeError(w, r, &ErrValidation{Field: "reason", Message: "is required"})
		return
	}

	restored, err := s.engine.RollbackVersion(ctx, skillID, body.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if restored == nil {
		active, err := s.engine.ActiveVersion(ctx, skillID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if active == nil {
			s.writeError(w, r, &ErrNotFound{Resource: "skill", ID: skillID})
			return
		}
		s.writeError(w, r, &ErrConflict{Message: "active version has no predecessor to roll back to"})
		return
	}
	s.jsonResponse(w, http.StatusOK, restored)
}

// handleGetHistory returns the version lineage dashboard for a skill
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.GetImprovementHistory(r.Context(), r.PathValue("skill_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, history)
}
