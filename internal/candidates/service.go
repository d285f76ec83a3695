package candidates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/logger"
)

// Application is a candidate application as delivered by the job board.
// Answers is the form payload exactly as it was received.
type Application struct {
	ID            int64
	JobID         int64
	CandidateName string
	CVURL         string
	Answers       json.RawMessage
}

// Source pulls jobs and applications from the upstream job board.
type Source interface {
	FetchJobs(ctx context.Context) ([]Job, error)
	FetchApplications(ctx context.Context) ([]Application, error)
}

type SyncResult struct {
	Jobs         int `json:"jobs"`
	Applications int `json:"applications"`
}

type Service struct {
	store  Store
	source Source
	logger *zap.Logger
}

// NewService wires the candidate use cases. source may be nil when sync is
// not configured.
func NewService(store Store, source Source, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, source: source, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (*Candidate, error) {
	return s.store.GetForScoring(ctx, id)
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	return s.store.ListJobs(ctx)
}

func (s *Service) ListByJob(ctx context.Context, jobID int64) ([]Candidate, error) {
	return s.store.ListByJob(ctx, jobID)
}

// UpdateStage moves a candidate to another pipeline stage.
func (s *Service) UpdateStage(ctx context.Context, id int64, stage string) error {
	parsed, err := ParseStage(stage)
	if err != nil {
		return err
	}

	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking candidate %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	if err := s.store.UpdateStage(ctx, id, parsed); err != nil {
		return fmt.Errorf("updating stage of candidate %d: %w", id, err)
	}

	s.logger.Info("candidate stage updated", zap.Int64(logger.FieldCandidateID, id), zap.String("stage", string(parsed)))
	return nil
}

// Sync pulls jobs first and applications second so every application can
// reference a stored job.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if s.source == nil {
		return result, fmt.Errorf("job board source is not configured")
	}

	s.logger.Info("sync jobs")
	jobs, err := s.source.FetchJobs(ctx)
	if err != nil {
		return result, fmt.Errorf("fetching jobs: %w", err)
	}
	if err := s.store.UpsertJobs(ctx, jobs); err != nil {
		return result, fmt.Errorf("storing jobs: %w", err)
	}
	result.Jobs = len(jobs)
	s.logger.Info("sync jobs done", zap.Int("count", result.Jobs))

	s.logger.Info("sync applications")
	apps, err := s.source.FetchApplications(ctx)
	if err != nil {
		return result, fmt.Errorf("fetching applications: %w", err)
	}

	batch := make([]Candidate, 0, len(apps))
	for _, app := range apps {
		raw, err := wrapAnswers(app.Answers)
		if err != nil {
			return result, fmt.Errorf("encoding answers of application %d: %w", app.ID, err)
		}
		batch = append(batch, Candidate{
			ID:         app.ID,
			JobID:      app.JobID,
			Name:       app.CandidateName,
			CVURL:      app.CVURL,
			RawAnswers: raw,
			Stage:      StageInbox,
		})
	}

	if err := s.store.UpsertCandidates(ctx, batch); err != nil {
		return result, fmt.Errorf("storing applications: %w", err)
	}
	result.Applications = len(batch)
	s.logger.Info("sync applications done", zap.Int("count", result.Applications))

	return result, nil
}

// wrapAnswers stores answers in the {"answers": ...} layout without
// touching their content. Missing answers become an empty list.
func wrapAnswers(answers json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(answers)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("[]")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("answers are not valid json")
	}
	return json.Marshal(struct {
		Answers json.RawMessage `json:"answers"`
	}{Answers: trimmed})
}
