// Package memory keeps jobs, candidates and scores in process memory.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"
)

// Store implements candidates.Store and scoring.ScoreStore.
// Score writes lock only the entry of the candidate being written.
type Store struct {
	mu         sync.RWMutex
	jobs       map[int64]candidates.Job
	candidates map[int64]candidates.Candidate

	scores sync.Map // int64 -> *scoreEntry

	now func() time.Time
}

type scoreEntry struct {
	mu    sync.Mutex
	score *scoring.PersistedScore
}

func New() *Store {
	return &Store{
		jobs:       make(map[int64]candidates.Job),
		candidates: make(map[int64]candidates.Candidate),
		now:        time.Now,
	}
}

func (s *Store) UpsertJobs(_ context.Context, jobs []candidates.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return nil
}

func (s *Store) ListJobs(_ context.Context) ([]candidates.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]candidates.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (s *Store) UpsertCandidates(_ context.Context, batch []candidates.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range batch {
		if _, ok := s.candidates[c.ID]; ok {
			continue
		}
		c.Stage = candidates.StageInbox
		c.RawAnswers = cloneRaw(c.RawAnswers)
		s.candidates[c.ID] = c
	}
	return nil
}

func (s *Store) GetForScoring(_ context.Context, id int64) (*candidates.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.candidates[id]
	if !ok {
		return nil, candidates.ErrNotFound
	}
	c.RawAnswers = cloneRaw(c.RawAnswers)
	return &c, nil
}

func (s *Store) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.candidates[id]
	return ok, nil
}

func (s *Store) ListByJob(_ context.Context, jobID int64) ([]candidates.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := []candidates.Candidate{}
	for _, c := range s.candidates {
		if c.JobID == jobID {
			c.RawAnswers = cloneRaw(c.RawAnswers)
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].ID < list[j].ID
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

func (s *Store) UpdateStage(_ context.Context, id int64, stage candidates.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.candidates[id]
	if !ok {
		return candidates.ErrNotFound
	}
	c.Stage = stage
	s.candidates[id] = c
	return nil
}

func (s *Store) entry(id int64) *scoreEntry {
	e, _ := s.scores.LoadOrStore(id, &scoreEntry{})
	return e.(*scoreEntry)
}

func (s *Store) Save(_ context.Context, result scoring.CandidateScore) (*scoring.PersistedScore, error) {
	e := s.entry(result.CandidateID)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now().UTC()
	createdAt := now
	if e.score != nil {
		createdAt = e.score.CreatedAt
	}

	result.RiskFlags = append([]string{}, result.RiskFlags...)
	e.score = &scoring.PersistedScore{CandidateScore: result, CreatedAt: createdAt, UpdatedAt: now}
	return copyScore(e.score), nil
}

func (s *Store) Get(_ context.Context, candidateID int64) (*scoring.PersistedScore, error) {
	v, ok := s.scores.Load(candidateID)
	if !ok {
		return nil, scoring.ErrScoreNotFound
	}
	e := v.(*scoreEntry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.score == nil {
		return nil, scoring.ErrScoreNotFound
	}
	return copyScore(e.score), nil
}

func (s *Store) UpdateFinalScore(_ context.Context, candidateID int64, value float64) (*scoring.PersistedScore, error) {
	v, ok := s.scores.Load(candidateID)
	if !ok {
		return nil, scoring.ErrScoreNotFound
	}
	e := v.(*scoreEntry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.score == nil {
		return nil, scoring.ErrScoreNotFound
	}
	e.score.FinalScore = value
	e.score.UpdatedAt = s.now().UTC()
	return copyScore(e.score), nil
}

func copyScore(src *scoring.PersistedScore) *scoring.PersistedScore {
	dst := *src
	dst.RiskFlags = append([]string{}, src.RiskFlags...)
	return &dst
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}
