package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/logger"
	"github.com/spigell/ats-scorer/internal/scoring"
)

type stageRequest struct {
	Stage string `json:"stage"`
}

// handleCandidate returns the candidate with its score, or a null score when
// it has not been scored yet.
func (s *Server) handleCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	c, err := s.candidates.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	detail := candidateDetail{Candidate: *c}
	score, err := s.scorer.GetScore(r.Context(), id)
	switch {
	case err == nil:
		detail.Score = newScoreResponse(score)
	case !errors.Is(err, scoring.ErrScoreNotFound):
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := s.candidates.UpdateStage(r.Context(), id, req.Stage); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.candidates.ListJobs(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobCandidates(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	list, err := s.candidates.ListByJob(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleJobScore scores every candidate of a job. Already scored candidates
// are skipped unless force=true.
func (s *Server) handleJobScore(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", err)
		return
	}

	force := false
	if v := r.URL.Query().Get("force"); v != "" {
		if force, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", errors.New("force must be a boolean"))
			return
		}
	}

	list, err := s.candidates.ListByJob(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}

	opts := s.bulk
	opts.SkipScored = !force
	report, err := s.scorer.ScoreMany(r.Context(), ids, opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.requestLogger(r).Info("job scored",
		zap.Int64(logger.FieldJobID, jobID),
		zap.Int("scored", len(report.Scored)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.candidates.Sync(r.Context())
	if err != nil {
		s.requestLogger(r).Error("sync failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "sync_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
