package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"
	"github.com/spigell/ats-scorer/internal/storage/memory"
)

func scored(id int64, name string, final float64) Row {
	return Row{
		Candidate: candidates.Candidate{ID: id, JobID: 1, Name: name, Stage: candidates.StageInbox},
		Score: &scoring.PersistedScore{
			CandidateScore: scoring.CandidateScore{
				CandidateID:   id,
				Relevance:     scoring.Dimension{Score: 4},
				Experience:    scoring.Dimension{Score: 4},
				Motivation:    scoring.Dimension{Score: 3},
				Risk:          scoring.Dimension{Score: 2},
				RiskFlags:     []string{"gap", "job_hopping"},
				FinalScore:    final,
				RubricVersion: scoring.RubricVersion,
			},
			UpdatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		},
	}
}

func TestRank(t *testing.T) {
	rows := []Row{
		{Candidate: candidates.Candidate{ID: 4, Name: "Dana"}},
		scored(1, "Bruno", 3.3),
		scored(2, "Ana", 4.1),
		scored(3, "Aaron", 3.3),
	}

	Rank(rows)

	var names []string
	for _, r := range rows {
		names = append(names, r.Candidate.Name)
	}
	assert.Equal(t, []string{"Ana", "Aaron", "Bruno", "Dana"}, names)
}

func TestWriteXLSX(t *testing.T) {
	rows := []Row{
		{Candidate: candidates.Candidate{ID: 12, Name: "Unscored", Stage: candidates.StageMaybe}},
		scored(10, "Low", 2.2),
		scored(11, "High", 4.1),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, candidates.Job{ID: 1, Title: "Risk analyst"}, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "Rank", got[0][0])
	assert.Equal(t, "Scored At", got[0][11])

	assert.Equal(t, []string{"1", "11", "High", "INBOX", "4.1"}, got[1][:5])
	assert.Equal(t, "gap, job_hopping", got[1][9])
	assert.Equal(t, "2025-06-01 09:30:00", got[1][11])
	assert.Equal(t, "Low", got[2][2])
	assert.Equal(t, []string{"3", "12", "Unscored", "MAYBE", "not scored"}, got[3])

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "Job 1: Risk analyst", props.Title)

	// The caller's slice keeps its order.
	assert.Equal(t, int64(12), rows[0].Candidate.ID)
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.UpsertCandidates(ctx, []candidates.Candidate{
		{ID: 1, JobID: 7, Name: "Ana"},
		{ID: 2, JobID: 7, Name: "Bruno"},
		{ID: 3, JobID: 8, Name: "Other job"},
	}))
	_, err := store.Save(ctx, scored(2, "Bruno", 3.3).Score.CandidateScore)
	require.NoError(t, err)

	rows, err := Collect(ctx, store, scoreReader{store}, 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[0].Score)
	require.NotNil(t, rows[1].Score)
	assert.Equal(t, 3.3, rows[1].Score.FinalScore)
}

type scoreReader struct{ store *memory.Store }

func (r scoreReader) GetScore(ctx context.Context, id int64) (*scoring.PersistedScore, error) {
	return r.store.Get(ctx, id)
}
