package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type riskResponse struct {
	Score  int      `json:"score"`
	Reason string   `json:"reason"`
	Flags  []string `json:"flags"`
}

type scoreResponse struct {
	CandidateID   int64             `json:"candidateId"`
	FinalScore    float64           `json:"finalScore"`
	Relevance     scoring.Dimension `json:"relevance"`
	Experience    scoring.Dimension `json:"experience"`
	Motivation    scoring.Dimension `json:"motivation"`
	Risk          riskResponse      `json:"risk"`
	RubricVersion string            `json:"rubricVersion"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type candidateDetail struct {
	candidates.Candidate
	Score *scoreResponse `json:"score"`
}

func newScoreResponse(p *scoring.PersistedScore) *scoreResponse {
	if p == nil {
		return nil
	}
	flags := p.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	return &scoreResponse{
		CandidateID:   p.CandidateID,
		FinalScore:    p.FinalScore,
		Relevance:     p.Relevance,
		Experience:    p.Experience,
		Motivation:    p.Motivation,
		Risk:          riskResponse{Score: p.Risk.Score, Reason: p.Risk.Reason, Flags: flags},
		RubricVersion: p.RubricVersion,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a use case error onto a status and error code.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scoring.ErrScoreNotFound):
		writeError(w, http.StatusNotFound, "score_not_found", err)
	case errors.Is(err, scoring.ErrCandidateNotFound), errors.Is(err, candidates.ErrNotFound):
		writeError(w, http.StatusNotFound, "candidate_not_found", err)
	case errors.Is(err, scoring.ErrValidation), errors.Is(err, candidates.ErrInvalidStage):
		writeError(w, http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, scoring.ErrEvaluation):
		writeError(w, http.StatusBadGateway, "evaluation_failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}
