package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "ats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleScore(id int64, final float64) scoring.CandidateScore {
	return scoring.CandidateScore{
		CandidateID:   id,
		Relevance:     scoring.Dimension{Score: 5, Reason: "payments"},
		Experience:    scoring.Dimension{Score: 4, Reason: "ops lead"},
		Motivation:    scoring.Dimension{Score: 3, Reason: "generic"},
		Risk:          scoring.Dimension{Score: 2, Reason: "tenure"},
		RiskFlags:     []string{"job_hopping", "gap"},
		FinalScore:    final,
		RubricVersion: scoring.RubricVersion,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ats.db")

	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	_, err = first.Save(context.Background(), sampleScore(1, 4.1))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4.1, got.FinalScore)
}

func TestScoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }
	saved, err := store.Save(ctx, sampleScore(1, 4.1))
	require.NoError(t, err)
	assert.Equal(t, sampleScore(1, 4.1), saved.CandidateScore)

	second := first.Add(time.Hour)
	store.now = func() time.Time { return second }
	replacement := sampleScore(1, 2.2)
	replacement.RiskFlags = nil
	_, err = store.Save(ctx, replacement)
	require.NoError(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.2, got.FinalScore)
	assert.Empty(t, got.RiskFlags)
	assert.True(t, first.Equal(got.CreatedAt))
	assert.True(t, second.Equal(got.UpdatedAt))

	var rows int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidate_scores`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestUpdateFinalScore(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)

	_, err := store.UpdateFinalScore(ctx, 999, 4.2)
	require.ErrorIs(t, err, scoring.ErrScoreNotFound)
	_, err = store.Get(ctx, 999)
	require.ErrorIs(t, err, scoring.ErrScoreNotFound)

	_, err = store.Save(ctx, sampleScore(5, 3.3))
	require.NoError(t, err)

	updated, err := store.UpdateFinalScore(ctx, 5, 4.75)
	require.NoError(t, err)
	assert.Equal(t, 4.75, updated.FinalScore)
	assert.Equal(t, []string{"job_hopping", "gap"}, updated.RiskFlags)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)

	require.NoError(t, store.UpsertJobs(ctx, []candidates.Job{{ID: 2, Title: "Ops"}, {ID: 1, Title: "Risk"}}))
	require.NoError(t, store.UpsertJobs(ctx, []candidates.Job{{ID: 1, Title: "Risk analyst", Description: "fraud"}}))
	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, candidates.Job{ID: 1, Title: "Risk analyst", Description: "fraud"}, jobs[0])

	raw := json.RawMessage(`{"answers":[{"question":"Why?","answer":"Because"}]}`)
	require.NoError(t, store.UpsertCandidates(ctx, []candidates.Candidate{
		{ID: 10, JobID: 1, Name: "Zoe", CVURL: "https://cv.example/zoe.pdf", RawAnswers: raw},
		{ID: 11, JobID: 1, Name: "Ana"},
		{ID: 12, JobID: 2, Name: "Luis"},
	}))
	require.NoError(t, store.UpdateStage(ctx, 10, candidates.StageInterview))
	require.NoError(t, store.UpsertCandidates(ctx, []candidates.Candidate{{ID: 10, JobID: 1, Name: "Changed"}}))

	c, err := store.GetForScoring(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Zoe", c.Name)
	assert.Equal(t, "https://cv.example/zoe.pdf", c.CVURL)
	assert.Equal(t, candidates.StageInterview, c.Stage)
	assert.JSONEq(t, string(raw), string(c.RawAnswers))

	list, err := store.ListByJob(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Nil(t, list[0].RawAnswers)

	_, err = store.GetForScoring(ctx, 404)
	require.ErrorIs(t, err, candidates.ErrNotFound)

	exists, err := store.Exists(ctx, 12)
	require.NoError(t, err)
	assert.True(t, exists)

	require.ErrorIs(t, store.UpdateStage(ctx, 404, candidates.StageNo), candidates.ErrNotFound)
}
