// Package httpapi serves the scoring and candidate API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"
)

// Scorer is the scoring use case surface the handlers need.
type Scorer interface {
	Rubric() scoring.RubricInfo
	ScoreCandidate(ctx context.Context, candidateID int64) (*scoring.PersistedScore, error)
	GetScore(ctx context.Context, candidateID int64) (*scoring.PersistedScore, error)
	SetManualFinalScore(ctx context.Context, candidateID int64, value float64) (*scoring.PersistedScore, error)
	ScoreMany(ctx context.Context, ids []int64, opts scoring.BulkOptions) (scoring.BulkReport, error)
}

// Candidates is the candidate use case surface the handlers need.
type Candidates interface {
	Get(ctx context.Context, id int64) (*candidates.Candidate, error)
	ListJobs(ctx context.Context) ([]candidates.Job, error)
	ListByJob(ctx context.Context, jobID int64) ([]candidates.Candidate, error)
	UpdateStage(ctx context.Context, id int64, stage string) error
	Sync(ctx context.Context) (candidates.SyncResult, error)
}

// Metrics records request measurements and serves the scrape endpoint.
type Metrics interface {
	RecordHTTPRequest(endpoint, method, status string, d time.Duration)
	Handler() http.Handler
}

type Server struct {
	scorer     Scorer
	candidates Candidates
	metrics    Metrics
	bulk       scoring.BulkOptions
	logger     *zap.Logger
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBulkOptions sets concurrency and rate limits of POST /jobs/{id}/score.
func WithBulkOptions(opts scoring.BulkOptions) Option {
	return func(s *Server) { s.bulk = opts }
}

func NewServer(scorer Scorer, cands Candidates, opts ...Option) *Server {
	s := &Server{
		scorer:     scorer,
		candidates: cands,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	s.handle(mux, "GET /healthz", "healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.handle(mux, "GET /scoring/rubric", "rubric", s.handleRubric)
	s.handle(mux, "POST /candidates/{id}/score", "score", s.handleScore)
	s.handle(mux, "GET /candidates/{id}/score", "get_score", s.handleGetScore)
	s.handle(mux, "PUT /candidates/{id}/final-score", "final_score", s.handleFinalScore)

	s.handle(mux, "GET /candidates/{id}", "candidate", s.handleCandidate)
	s.handle(mux, "PATCH /candidates/{id}/stage", "stage", s.handleStage)
	s.handle(mux, "GET /jobs", "jobs", s.handleJobs)
	s.handle(mux, "GET /jobs/{id}/candidates", "job_candidates", s.handleJobCandidates)
	s.handle(mux, "POST /jobs/{id}/score", "job_score", s.handleJobScore)
	s.handle(mux, "POST /admin/sync", "sync", s.handleSync)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern, endpoint string, h http.HandlerFunc) {
	mux.Handle(pattern, s.requestID(s.metricsMiddleware(h, endpoint)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
