package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/logger"
)

type finalScoreRequest struct {
	FinalScore *float64 `json:"finalScore"`
}

func (s *Server) handleRubric(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scorer.Rubric())
}

// handleScore handles POST /candidates/{id}/score.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	score, err := s.scorer.ScoreCandidate(r.Context(), id)
	if err != nil {
		s.requestLogger(r).Warn("scoring failed", zap.Int64(logger.FieldCandidateID, id), zap.Error(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newScoreResponse(score))
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	score, err := s.scorer.GetScore(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newScoreResponse(score))
}

// handleFinalScore handles PUT /candidates/{id}/final-score.
func (s *Server) handleFinalScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req finalScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.FinalScore == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", errors.New("finalScore is required"))
		return
	}

	score, err := s.scorer.SetManualFinalScore(r.Context(), id, *req.FinalScore)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newScoreResponse(score))
}
