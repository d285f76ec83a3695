// Package sqlite is a single-file store for local runs and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          INTEGER PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS candidates (
	id          INTEGER PRIMARY KEY,
	job_id      INTEGER NOT NULL,
	name        TEXT NOT NULL,
	cv_url      TEXT NOT NULL DEFAULT '',
	raw_answers TEXT,
	stage       TEXT NOT NULL DEFAULT 'INBOX'
);

CREATE INDEX IF NOT EXISTS candidates_job_id_idx ON candidates (job_id);

CREATE TABLE IF NOT EXISTS candidate_scores (
	candidate_id      INTEGER PRIMARY KEY,
	relevance_score   INTEGER NOT NULL,
	relevance_reason  TEXT NOT NULL,
	experience_score  INTEGER NOT NULL,
	experience_reason TEXT NOT NULL,
	motivation_score  INTEGER NOT NULL,
	motivation_reason TEXT NOT NULL,
	risk_score        INTEGER NOT NULL,
	risk_reason       TEXT NOT NULL,
	risk_flags        TEXT NOT NULL DEFAULT '[]',
	final_score       REAL NOT NULL,
	rubric_version    TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);`

// Store implements candidates.Store and scoring.ScoreStore on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite: single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertJobs(ctx context.Context, jobs []candidates.Job) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, job := range jobs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO jobs (id, title, description) VALUES (?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET title = excluded.title, description = excluded.description`,
				job.ID, job.Title, job.Description,
			); err != nil {
				return fmt.Errorf("upsert job %d: %w", job.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) ListJobs(ctx context.Context) ([]candidates.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description FROM jobs ORDER BY id`)
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

func (s *Store) UpsertCandidates(ctx context.Context, batch []candidates.Candidate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range batch {
			if _, err := tx.ExecContext(ctx, `INSERT INTO candidates (id, job_id, name, cv_url, raw_answers, stage)
				VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
				c.ID, c.JobID, c.Name, c.CVURL, nullableRaw(c.RawAnswers), string(candidates.StageInbox),
			); err != nil {
				return fmt.Errorf("insert candidate %d: %w", c.ID, err)
			}
		}
		return nil
	})
}

const candidateColumns = `id, job_id, name, cv_url, raw_answers, stage`

func (s *Store) GetForScoring(ctx context.Context, id int64) (*candidates.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, candidates.ErrNotFound
	}
	return c, err
}

func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM candidates WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

func (s *Store) ListByJob(ctx context.Context, jobID int64) ([]candidates.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE job_id = ? ORDER BY name, id`, jobID)
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
	res, err := s.db.ExecContext(ctx, `UPDATE candidates SET stage = ? WHERE id = ?`, string(stage), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return candidates.ErrNotFound
	}
	return nil
}

func (s *Store) Save(ctx context.Context, r scoring.CandidateScore) (*scoring.PersistedScore, error) {
	flags, err := json.Marshal(nonNil(r.RiskFlags))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `INSERT INTO candidate_scores (
			candidate_id, relevance_score, relevance_reason, experience_score, experience_reason,
			motivation_score, motivation_reason, risk_score, risk_reason, risk_flags,
			final_score, rubric_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (candidate_id) DO UPDATE SET
			relevance_score = excluded.relevance_score,
			relevance_reason = excluded.relevance_reason,
			experience_score = excluded.experience_score,
			experience_reason = excluded.experience_reason,
			motivation_score = excluded.motivation_score,
			motivation_reason = excluded.motivation_reason,
			risk_score = excluded.risk_score,
			risk_reason = excluded.risk_reason,
			risk_flags = excluded.risk_flags,
			final_score = excluded.final_score,
			rubric_version = excluded.rubric_version,
			updated_at = excluded.updated_at`,
		r.CandidateID,
		r.Relevance.Score, r.Relevance.Reason,
		r.Experience.Score, r.Experience.Reason,
		r.Motivation.Score, r.Motivation.Reason,
		r.Risk.Score, r.Risk.Reason,
		string(flags), r.FinalScore, r.RubricVersion, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert score of candidate %d: %w", r.CandidateID, err)
	}

	return s.Get(ctx, r.CandidateID)
}

func (s *Store) Get(ctx context.Context, candidateID int64) (*scoring.PersistedScore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
			candidate_id, relevance_score, relevance_reason, experience_score, experience_reason,
			motivation_score, motivation_reason, risk_score, risk_reason, risk_flags,
			final_score, rubric_version, created_at, updated_at
		FROM candidate_scores WHERE candidate_id = ?`, candidateID)

	var (
		p                    scoring.PersistedScore
		flags                string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&p.CandidateID,
		&p.Relevance.Score, &p.Relevance.Reason,
		&p.Experience.Score, &p.Experience.Reason,
		&p.Motivation.Score, &p.Motivation.Reason,
		&p.Risk.Score, &p.Risk.Reason,
		&flags, &p.FinalScore, &p.RubricVersion, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scoring.ErrScoreNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(flags), &p.RiskFlags); err != nil {
		return nil, fmt.Errorf("decode risk flags of candidate %d: %w", candidateID, err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateFinalScore(ctx context.Context, candidateID int64, value float64) (*scoring.PersistedScore, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE candidate_scores SET final_score = ?, updated_at = ? WHERE candidate_id = ?`,
		value, s.now().UTC().Format(time.RFC3339Nano), candidateID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, scoring.ErrScoreNotFound
	}
	return s.Get(ctx, candidateID)
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*candidates.Candidate, error) {
	var (
		c     candidates.Candidate
		raw   sql.NullString
		stage string
	)
	if err := row.Scan(&c.ID, &c.JobID, &c.Name, &c.CVURL, &raw, &stage); err != nil {
		return nil, err
	}
	if raw.Valid {
		c.RawAnswers = json.RawMessage(raw.String)
	}
	c.Stage = candidates.Stage(stage)
	return &c, nil
}

func nullableRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nonNil(flags []string) []string {
	if flags == nil {
		return []string{}
	}
	return flags
}
