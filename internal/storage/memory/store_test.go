package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScore(id int64, final float64) scoring.CandidateScore {
	return scoring.CandidateScore{
		CandidateID:   id,
		Relevance:     scoring.Dimension{Score: 5, Reason: "payments"},
		Experience:    scoring.Dimension{Score: 4, Reason: "ops lead"},
		Motivation:    scoring.Dimension{Score: 3, Reason: "generic"},
		Risk:          scoring.Dimension{Score: 2, Reason: "tenure"},
		RiskFlags:     []string{"job_hopping"},
		FinalScore:    final,
		RubricVersion: scoring.RubricVersion,
	}
}

func TestScoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	want := sampleScore(1, 4.1)
	saved, err := store.Save(ctx, want)
	require.NoError(t, err)
	assert.Equal(t, want, saved.CandidateScore)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got.CandidateScore)
	assert.False(t, got.CreatedAt.IsZero())

	got.RiskFlags[0] = "mutated"
	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "job_hopping", again.RiskFlags[0])
}

func TestScoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := New()

	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return first }
	_, err := store.Save(ctx, sampleScore(1, 4.1))
	require.NoError(t, err)

	second := first.Add(time.Hour)
	store.now = func() time.Time { return second }
	replacement := sampleScore(1, 2.2)
	replacement.RiskFlags = nil
	replacement.Relevance = scoring.Dimension{Score: 1, Reason: "unrelated"}
	_, err = store.Save(ctx, replacement)
	require.NoError(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.2, got.FinalScore)
	assert.Equal(t, "unrelated", got.Relevance.Reason)
	assert.Empty(t, got.RiskFlags)
	assert.Equal(t, first, got.CreatedAt)
	assert.Equal(t, second, got.UpdatedAt)

	count := 0
	store.scores.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count)
}

func TestUpdateFinalScore(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.UpdateFinalScore(ctx, 999, 4.2)
	require.ErrorIs(t, err, scoring.ErrScoreNotFound)

	_, err = store.Get(ctx, 999)
	require.ErrorIs(t, err, scoring.ErrScoreNotFound, "override must not create a score")

	_, err = store.Save(ctx, sampleScore(5, 3.3))
	require.NoError(t, err)

	updated, err := store.UpdateFinalScore(ctx, 5, 4.75)
	require.NoError(t, err)
	assert.Equal(t, 4.75, updated.FinalScore)
	assert.Equal(t, 5, updated.Relevance.Score)
}

func TestConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	store := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := store.Save(ctx, sampleScore(1, float64(i%5)))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := store.Save(ctx, sampleScore(int64(100+i), 1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count := 0
	store.scores.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 51, count)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.FinalScore, 0.0)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.UpsertJobs(ctx, []candidates.Job{{ID: 2, Title: "Ops"}, {ID: 1, Title: "Risk"}}))
	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(1), jobs[0].ID)

	raw := json.RawMessage(`{"answers":[]}`)
	require.NoError(t, store.UpsertCandidates(ctx, []candidates.Candidate{
		{ID: 10, JobID: 1, Name: "Zoe", RawAnswers: raw},
		{ID: 11, JobID: 1, Name: "Ana"},
		{ID: 12, JobID: 2, Name: "Luis"},
	}))

	require.NoError(t, store.UpdateStage(ctx, 10, candidates.StageShortlist))

	// A second sync must not reset the stage or overwrite the candidate.
	require.NoError(t, store.UpsertCandidates(ctx, []candidates.Candidate{{ID: 10, JobID: 1, Name: "Changed"}}))

	c, err := store.GetForScoring(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Zoe", c.Name)
	assert.Equal(t, candidates.StageShortlist, c.Stage)
	assert.JSONEq(t, string(raw), string(c.RawAnswers))

	list, err := store.ListByJob(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Equal(t, candidates.StageInbox, list[0].Stage)

	_, err = store.GetForScoring(ctx, 404)
	require.ErrorIs(t, err, candidates.ErrNotFound)

	exists, err := store.Exists(ctx, 404)
	require.NoError(t, err)
	assert.False(t, exists)

	require.ErrorIs(t, store.UpdateStage(ctx, 404, candidates.StageNo), candidates.ErrNotFound)
}
