package scoring

import "errors"

var (
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrScoreNotFound     = errors.New("score not found")
	// ErrEvaluation wraps failures of the model call. Callers may retry the
	// whole scoring run.
	ErrEvaluation = errors.New("candidate evaluation failed")
	ErrValidation = errors.New("validation failed")
)
