// Package candidates holds the job and candidate model the scorer reads from,
// hiring-stage transitions and the job-board sync use case.
package candidates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("candidate not found")
	ErrInvalidStage = errors.New("invalid stage")
)

// Stage is a hiring pipeline column.
type Stage string

const (
	StageInbox     Stage = "INBOX"
	StageShortlist Stage = "SHORTLIST"
	StageMaybe     Stage = "MAYBE"
	StageNo        Stage = "NO"
	StageInterview Stage = "INTERVIEW"
	StageOffer     Stage = "OFFER"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageInbox, StageShortlist, StageMaybe, StageNo, StageInterview, StageOffer}

// ParseStage accepts a stage name in any letter case.
func ParseStage(s string) (Stage, error) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(s)))
	for _, stage := range Stages {
		if stage == candidate {
			return stage, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

type Job struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Candidate is one application to a job. RawAnswers is kept as received and
// only interpreted by the scorer.
type Candidate struct {
	ID         int64           `json:"id"`
	JobID      int64           `json:"jobId"`
	Name       string          `json:"candidateName"`
	CVURL      string          `json:"cvUrl"`
	RawAnswers json.RawMessage `json:"rawAnswers,omitempty"`
	Stage      Stage           `json:"stage"`
}

// Store persists jobs and candidates.
type Store interface {
	UpsertJobs(ctx context.Context, jobs []Job) error
	ListJobs(ctx context.Context) ([]Job, error)

	// UpsertCandidates inserts candidates that do not exist yet with the INBOX
	// stage. Existing candidates are left untouched.
	UpsertCandidates(ctx context.Context, candidates []Candidate) error
	// GetForScoring returns ErrNotFound for an unknown id.
	GetForScoring(ctx context.Context, id int64) (*Candidate, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ListByJob(ctx context.Context, jobID int64) ([]Candidate, error)
	UpdateStage(ctx context.Context, id int64, stage Stage) error
}
