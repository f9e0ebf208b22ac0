package server

import (
	"net/http"

	"github.com/jonathan/skill-improver/internal/types"
)

// handleListImprovements lists improvement requests, newest first.
// Query: skill_id, status.
func (s *Server) handleListImprovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := types.RequestStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		s.writeError(w, r, &ErrValidation{Field: "status", Message: "unknown status " + string(status)})
		return
	}

	requests, err := s.engine.ListRequests(r.Context(), q.Get("skill_id"), status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, requests)
}

// handleGetImprovement returns one improvement request
func (s *Server) handleGetImprovement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	req, err := s.engine.GetRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req == nil {
		s.writeError(w, r, &ErrNotFound{Resource: "improvement request", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, req)
}

// handleApplyImprovement promotes a pending request into a new version
func (s *Server) handleApplyImprovement(w http.ResponseWriter, r *http.Request) {
	review, ok := s.decodeReview(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	version, err := s.engine.ApplyImprovementsAs(r.Context(), id, review)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if version == nil {
		s.writeError(w, r, s.softFailure(r, id, "request is not pending or its skill has no active version"))
		return
	}
	s.jsonResponse(w, http.StatusCreated, version)
}

// handleRejectImprovement closes a pending request without a new version
func (s *Server) handleRejectImprovement(w http.ResponseWriter, r *http.Request) {
	review, ok := s.decodeReview(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	req, err := s.engine.RejectImprovement(r.Context(), id, review)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req == nil {
		s.writeError(w, r, s.softFailure(r, id, "request is not pending"))
		return
	}
	s.jsonResponse(w, http.StatusOK, req)
}

func (s *Server) decodeReview(w http.ResponseWriter, r *http.Request) (types.ReviewInput, bool) {
	var review types.ReviewInput
	if err := decodeJSON(r, &review, true); err != nil {
		s.writeError(w, r, err)
		return review, false
	}
	if err := review.Validate(); err != nil {
		s.writeError(w, r, &ErrValidation{Field: "body", Message: err.Error()})
		return review, false
	}
	return review, true
}

// softFailure turns an engine nil result into 404 when the request does not
// exist and 409 otherwise.
func (s *Server) softFailure(r *http.Request, id, conflict string) error {
	req, err := s.engine.GetRequest(r.Context(), id)
	if err != nil {
		return err
	}
	if req == nil {
		return &ErrNotFound{Resource: "improvement request", ID: id}
	}
	return &ErrConflict{Message: conflict}
}
