package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Field keys shared by the scoring pipeline, the HTTP layer and the CLI.
const (
	FieldProvider    = "ai_provider"
	FieldModel       = "ai_model"
	FieldCandidateID = "candidate_id"
	FieldJobID       = "job_id"
	FieldRequestID   = "request_id"
)

type stringField struct {
	key   string
	value string
}

// nonEmpty trims keys and values and drops pairs where either is blank.
func nonEmpty(fields ...stringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.key)
		value := strings.TrimSpace(field.value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields scopes log to one candidate, job or request. A nil logger
// becomes a no-op logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// EvaluatorFields names the LLM backend that produced a score. Blank values
// are left out.
func EvaluatorFields(provider, model string) []zap.Field {
	return nonEmpty(
		stringField{key: FieldProvider, value: provider},
		stringField{key: FieldModel, value: model},
	)
}

// WithEvaluator tags every entry of log with the evaluator backend.
func WithEvaluator(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, EvaluatorFields(provider, model)...)
}

// CandidateFields identifies the application being scored. Candidates synced
// without a job keep only their own id.
func CandidateFields(candidateID, jobID int64) []zap.Field {
	fields := []zap.Field{zap.Int64(FieldCandidateID, candidateID)}
	if jobID > 0 {
		fields = append(fields, zap.Int64(FieldJobID, jobID))
	}
	return fields
}
