package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/logger"

	"go.uber.org/zap"
)

const (
	PlaceholderNoCV       = "(no CV provided)"
	PlaceholderUnreadable = "(CV could not be read)"
)

// CandidateStore is the part of the candidate repository the scorer needs.
// GetForScoring returns candidates.ErrNotFound for unknown ids.
type CandidateStore interface {
	GetForScoring(ctx context.Context, id int64) (*candidates.Candidate, error)
}

// ScoreStore persists the latest score per candidate.
type ScoreStore interface {
	// Save inserts or fully replaces the score of result.CandidateID.
	Save(ctx context.Context, result CandidateScore) (*PersistedScore, error)
	// Get returns ErrScoreNotFound when the candidate was never scored.
	Get(ctx context.Context, candidateID int64) (*PersistedScore, error)
	// UpdateFinalScore only adjusts an existing score and returns
	// ErrScoreNotFound otherwise.
	UpdateFinalScore(ctx context.Context, candidateID int64, value float64) (*PersistedScore, error)
}

type CVExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Evaluator returns the raw, untrusted model output for input.
type Evaluator interface {
	Evaluate(ctx context.Context, input EvaluationInput) (string, error)
}

// Notifier is told about every persisted score.
type Notifier interface {
	CandidateScored(ctx context.Context, score PersistedScore) error
}

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordScoring(outcome string, duration time.Duration)
	RecordCVExtraction(outcome string)
	RecordEvaluation(outcome string, duration time.Duration)
}

// Service runs the scoring pipeline.
type Service struct {
	candidates CandidateStore
	scores     ScoreStore
	cv         CVExtractor
	evaluator  Evaluator

	rubric   Rubric
	notifier Notifier
	recorder Recorder
	logger   *zap.Logger
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func WithRubric(r Rubric) Option {
	return func(s *Service) { s.rubric = r }
}

func NewService(candidates CandidateStore, scores ScoreStore, cv CVExtractor, evaluator Evaluator, opts ...Option) *Service {
	s := &Service{
		candidates: candidates,
		scores:     scores,
		cv:         cv,
		evaluator:  evaluator,
		rubric:     DefaultRubric(),
		recorder:   nopRecorder{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rubric exposes the active rubric.
func (s *Service) Rubric() RubricInfo {
	return s.rubric.Info()
}

// ScoreCandidate runs the whole pipeline for one candidate. Either a complete
// score is persisted and returned, or nothing is written.
func (s *Service) ScoreCandidate(ctx context.Context, candidateID int64) (*PersistedScore, error) {
	start := time.Now()

	score, err := s.scoreCandidate(ctx, candidateID)
	s.recorder.RecordScoring(outcomeOf(err), time.Since(start))
	return score, err
}

func (s *Service) scoreCandidate(ctx context.Context, candidateID int64) (*PersistedScore, error) {
	candidate, err := s.candidates.GetForScoring(ctx, candidateID)
	if err != nil {
		if errors.Is(err, candidates.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCandidateNotFound, candidateID)
		}
		return nil, fmt.Errorf("loading candidate %d: %w", candidateID, err)
	}

	log := logger.WithFields(s.logger, logger.CandidateFields(candidate.ID, candidate.JobID)...)

	input := EvaluationInput{
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
		JobID:         candidate.JobID,
		CVURL:         candidate.CVURL,
		RawAnswers:    candidate.RawAnswers,
		CVText:        s.extractCV(ctx, log, candidate.CVURL),
	}

	answers := ParseAnswers(candidate.RawAnswers)
	input.AnswersText = answers.Text()
	log.Debug("answers normalized", zap.Stringer("shape", answers.Shape), zap.Int("answers", len(answers.Items)))

	evalStart := time.Now()
	raw, err := s.evaluator.Evaluate(ctx, input)
	s.recorder.RecordEvaluation(outcomeOf(err), time.Since(evalStart))
	if err != nil {
		return nil, fmt.Errorf("%w: candidate %d: %w", ErrEvaluation, candidateID, err)
	}

	evaluation := CoerceEvaluation(raw)
	result := CandidateScore{
		CandidateID:   candidate.ID,
		Relevance:     evaluation.Relevance,
		Experience:    evaluation.Experience,
		Motivation:    evaluation.Motivation,
		Risk:          evaluation.Risk,
		RiskFlags:     evaluation.RiskFlags,
		FinalScore:    s.rubric.Compose(evaluation),
		RubricVersion: s.rubric.Version(),
	}

	saved, err := s.scores.Save(ctx, result)
	if err != nil {
		return nil, fmt.Errorf("saving score of candidate %d: %w", candidateID, err)
	}

	log.Info("candidate scored",
		zap.Float64("final_score", saved.FinalScore),
		zap.Int("risk_flags", len(saved.RiskFlags)),
		zap.String("rubric", saved.RubricVersion),
	)

	if s.notifier != nil {
		if err := s.notifier.CandidateScored(ctx, *saved); err != nil {
			log.Warn("publishing score notification", zap.Error(err))
		}
	}

	return saved, nil
}

// extractCV never fails; unreadable CVs become a placeholder.
func (s *Service) extractCV(ctx context.Context, log *zap.Logger, url string) string {
	if strings.TrimSpace(url) == "" {
		s.recorder.RecordCVExtraction("missing")
		return PlaceholderNoCV
	}

	text, err := s.cv.Extract(ctx, url)
	if err != nil {
		s.recorder.RecordCVExtraction("failed")
		log.Warn("cv could not be read, continuing without it", zap.String("cv_url", url), zap.Error(err))
		return PlaceholderUnreadable
	}
	if strings.TrimSpace(text) == "" {
		s.recorder.RecordCVExtraction("empty")
		log.Warn("cv has no extractable text", zap.String("cv_url", url))
		return PlaceholderUnreadable
	}

	s.recorder.RecordCVExtraction("ok")
	return text
}

// GetScore returns the persisted score of a candidate.
func (s *Service) GetScore(ctx context.Context, candidateID int64) (*PersistedScore, error) {
	return s.scores.Get(ctx, candidateID)
}

// SetManualFinalScore overrides the final score of an already scored
// candidate. value must lie within [0,5]; it is rounded to two decimals.
func (s *Service) SetManualFinalScore(ctx context.Context, candidateID int64, value float64) (*PersistedScore, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: final score must be a finite number", ErrValidation)
	}
	if value < MinFinalScore || value > MaxFinalScore {
		return nil, fmt.Errorf("%w: final score %v is outside [%d, %d]", ErrValidation, value, MinFinalScore, MaxFinalScore)
	}

	updated, err := s.scores.UpdateFinalScore(ctx, candidateID, round2(value))
	if err != nil {
		return nil, err
	}

	s.logger.Info("final score overridden",
		zap.Int64(logger.FieldCandidateID, candidateID),
		zap.Float64("final_score", updated.FinalScore),
	)
	return updated, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrCandidateNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordScoring(string, time.Duration)    {}
func (nopRecorder) RecordCVExtraction(string)              {}
func (nopRecorder) RecordEvaluation(string, time.Duration) {}
