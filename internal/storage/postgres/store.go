// Package postgres stores jobs, candidates and scores in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// Store implements candidates.Store and scoring.ScoreStore on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// Connect creates the pool, checks connectivity and applies migrations.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = 1
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{pool: pool, logger: logger, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("postgres connected", zap.String("host", poolCfg.ConnConfig.Host))
	return store, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := conn.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		s.logger.Debug("migration applied", zap.String("file", entry.Name()))
	}
	return nil
}

func (s *Store) UpsertJobs(ctx context.Context, jobs []candidates.Job) error {
	batch := &pgx.Batch{}
	for _, job := range jobs {
		batch.Queue(`INSERT INTO jobs (id, title, description) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description`,
			job.ID, job.Title, job.Description)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert jobs: %w", err)
	}
	return nil
}

func (s *Store) ListJobs(ctx context.Context) ([]candidates.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, description FROM jobs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []candidates.Job{}
	for rows.Next() {
		var job candidates.Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Description); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) UpsertCandidates(ctx context.Context, list []candidates.Candidate) error {
	batch := &pgx.Batch{}
	for _, c := range list {
		var raw any
		if len(c.RawAnswers) > 0 {
			raw = string(c.RawAnswers)
		}
		batch.Queue(`INSERT INTO candidates (id, job_id, name, cv_url, raw_answers, stage)
			VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			c.ID, c.JobID, c.Name, c.CVURL, raw, string(candidates.StageInbox))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert candidates: %w", err)
	}
	return nil
}

const candidateColumns = `id, job_id, name, cv_url, raw_answers, stage`

func (s *Store) GetForScoring(ctx context.Context, id int64) (*candidates.Candidate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, candidates.ErrNotFound
	}
	return c, err
}

func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM candidates WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *Store) ListByJob(ctx context.Context, jobID int64) ([]candidates.Candidate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE job_id = $1 ORDER BY name, id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []candidates.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

func (s *Store) UpdateStage(ctx context.Context, id int64, stage candidates.Stage) error {
	tag, err := s.pool.Exec(ctx, `UPDATE candidates SET stage = $1 WHERE id = $2`, string(stage), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return candidates.ErrNotFound
	}
	return nil
}

const scoreColumns = `candidate_id, relevance_score, relevance_reason, experience_score, experience_reason,
	motivation_score, motivation_reason, risk_score, risk_reason, risk_flags,
	final_score, rubric_version, created_at, updated_at`

func (s *Store) Save(ctx context.Context, r scoring.CandidateScore) (*scoring.PersistedScore, error) {
	flags := r.RiskFlags
	if flags == nil {
		flags = []string{}
	}
	now := s.now().UTC()

	row := s.pool.QueryRow(ctx, `INSERT INTO candidate_scores (`+scoreColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (candidate_id) DO UPDATE SET
			relevance_score = EXCLUDED.relevance_score,
			relevance_reason = EXCLUDED.relevance_reason,
			experience_score = EXCLUDED.experience_score,
			experience_reason = EXCLUDED.experience_reason,
			motivation_score = EXCLUDED.motivation_score,
			motivation_reason = EXCLUDED.motivation_reason,
			risk_score = EXCLUDED.risk_score,
			risk_reason = EXCLUDED.risk_reason,
			risk_flags = EXCLUDED.risk_flags,
			final_score = EXCLUDED.final_score,
			rubric_version = EXCLUDED.rubric_version,
			updated_at = EXCLUDED.updated_at
		RETURNING `+scoreColumns,
		r.CandidateID,
		r.Relevance.Score, r.Relevance.Reason,
		r.Experience.Score, r.Experience.Reason,
		r.Motivation.Score, r.Motivation.Reason,
		r.Risk.Score, r.Risk.Reason,
		flags, r.FinalScore, r.RubricVersion, now,
	)

	p, err := scanScore(row)
	if err != nil {
		return nil, fmt.Errorf("upsert score of candidate %d: %w", r.CandidateID, err)
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, candidateID int64) (*scoring.PersistedScore, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scoreColumns+` FROM candidate_scores WHERE candidate_id = $1`, candidateID)
	p, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scoring.ErrScoreNotFound
	}
	return p, err
}

func (s *Store) UpdateFinalScore(ctx context.Context, candidateID int64, value float64) (*scoring.PersistedScore, error) {
	row := s.pool.QueryRow(ctx, `UPDATE candidate_scores SET final_score = $1, updated_at = $2
		WHERE candidate_id = $3 RETURNING `+scoreColumns,
		value, s.now().UTC(), candidateID)
	p, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scoring.ErrScoreNotFound
	}
	return p, err
}

func scanScore(row pgx.Row) (*scoring.PersistedScore, error) {
	var p scoring.PersistedScore
	if err := row.Scan(
		&p.CandidateID,
		&p.Relevance.Score, &p.Relevance.Reason,
		&p.Experience.Score, &p.Experience.Reason,
		&p.Motivation.Score, &p.Motivation.Reason,
		&p.Risk.Score, &p.Risk.Reason,
		&p.RiskFlags, &p.FinalScore, &p.RubricVersion, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanCandidate(row pgx.Row) (*candidates.Candidate, error) {
	var (
		c     candidates.Candidate
		raw   []byte
		stage string
	)
	if err := row.Scan(&c.ID, &c.JobID, &c.Name, &c.CVURL, &raw, &stage); err != nil {
		return nil, err
	}
	if raw != nil {
		c.RawAnswers = json.RawMessage(raw)
	}
	c.Stage = candidates.Stage(stage)
	return &c, nil
}
