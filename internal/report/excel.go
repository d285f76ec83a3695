// Package report exports ranked candidates of a job to a spreadsheet.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/scoring"
)

const SheetName = "Ranked Candidates"

var header = []any{
	"Rank", "Candidate ID", "Name", "Stage", "Final Score",
	"Relevance", "Experience", "Motivation", "Risk", "Risk Flags", "Rubric", "Scored At",
}

// Row is one candidate of the report. Score is nil for unscored candidates.
type Row struct {
	Candidate candidates.Candidate
	Score     *scoring.PersistedScore
}

type CandidateLister interface {
	ListByJob(ctx context.Context, jobID int64) ([]candidates.Candidate, error)
}

type ScoreReader interface {
	GetScore(ctx context.Context, candidateID int64) (*scoring.PersistedScore, error)
}

// Collect loads the candidates of a job together with their scores.
func Collect(ctx context.Context, lister CandidateLister, scores ScoreReader, jobID int64) ([]Row, error) {
	list, err := lister.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list candidates of job %d: %w", jobID, err)
	}

	rows := make([]Row, 0, len(list))
	for _, c := range list {
		score, err := scores.GetScore(ctx, c.ID)
		if err != nil && !errors.Is(err, scoring.ErrScoreNotFound) {
			return nil, fmt.Errorf("read score of candidate %d: %w", c.ID, err)
		}
		rows = append(rows, Row{Candidate: c, Score: score})
	}
	return rows, nil
}

// Rank orders rows by final score, highest first. Unscored candidates go last,
// ties are broken by name.
func Rank(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.Score == nil) != (b.Score == nil) {
			return a.Score != nil
		}
		if a.Score != nil && a.Score.FinalScore != b.Score.FinalScore {
			return a.Score.FinalScore > b.Score.FinalScore
		}
		return a.Candidate.Name < b.Candidate.Name
	})
}

// WriteXLSX ranks rows and writes them as a workbook to w.
func WriteXLSX(w io.Writer, job candidates.Job, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	f.SetColWidth(SheetName, "C", "C", 28)
	f.SetColWidth(SheetName, "J", "J", 36)
	f.SetColWidth(SheetName, "L", "L", 20)

	ranked := append([]Row(nil), rows...)
	Rank(ranked)

	for i, row := range ranked {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rowValues(i+1, row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write candidate %d: %w", row.Candidate.ID, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Job %d: %s", job.ID, job.Title),
		Creator: "ats-scorer",
	}); err != nil {
		return err
	}

	return f.Write(w)
}

func rowValues(rank int, row Row) []any {
	c := row.Candidate
	values := []any{rank, c.ID, c.Name, string(c.Stage)}

	s := row.Score
	if s == nil {
		return append(values, "not scored")
	}

	return append(values,
		s.FinalScore,
		s.Relevance.Score,
		s.Experience.Score,
		s.Motivation.Score,
		s.Risk.Score,
		strings.Join(s.RiskFlags, ", "),
		s.RubricVersion,
		s.UpdatedAt.UTC().Format(time.DateTime),
	)
}
