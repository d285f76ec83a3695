// Package scoring turns a candidate application into a bounded, persisted fit
// score: answers are normalized, the CV is read, a language model evaluates
// both, its untrusted output is coerced and a rubric composes the final score.
package scoring

import (
	"encoding/json"
	"time"
)

// Dimension is one scored axis of an evaluation. Score is always within
// [MinDimensionScore, MaxDimensionScore] and Reason is never empty once coerced.
type Dimension struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Evaluation is the coerced model verdict.
type Evaluation struct {
	Relevance  Dimension `json:"relevance"`
	Experience Dimension `json:"experience"`
	Motivation Dimension `json:"motivation"`
	Risk       Dimension `json:"risk"`
	RiskFlags  []string  `json:"riskFlags"`
}

// EvaluationInput is built once per scoring run and handed to the evaluator.
type EvaluationInput struct {
	CandidateID   int64
	CandidateName string
	JobID         int64
	CVURL         string
	RawAnswers    json.RawMessage

	// CVText is the extracted CV or a placeholder when it could not be read.
	CVText string
	// AnswersText is the normalized answers block, possibly empty.
	AnswersText string
}

// CandidateScore is the composed result for one candidate.
type CandidateScore struct {
	CandidateID   int64     `json:"candidateId"`
	Relevance     Dimension `json:"relevance"`
	Experience    Dimension `json:"experience"`
	Motivation    Dimension `json:"motivation"`
	Risk          Dimension `json:"risk"`
	RiskFlags     []string  `json:"riskFlags"`
	FinalScore    float64   `json:"finalScore"`
	RubricVersion string    `json:"rubricVersion"`
}

// PersistedScore is a CandidateScore as stored. CreatedAt is kept from the
// first save, UpdatedAt moves on every write.
type PersistedScore struct {
	CandidateScore
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
