// Package ai builds the candidate scoring prompt and sends it to a language
// model. The response is returned untouched; callers must coerce it.
package ai

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/ats-scorer/internal/logger"
	"github.com/spigell/ats-scorer/internal/scoring"
	"github.com/spigell/ats-scorer/internal/utils"

	"go.uber.org/zap"
)

// ErrMissingConfiguration is returned when a provider is built without its
// credentials or model.
var ErrMissingConfiguration = errors.New("missing ai configuration")

const (
	// DefaultMaxCVChars caps the CV text placed in the prompt.
	DefaultMaxCVChars   = 20000
	defaultMaxLogLength = 200

	noAnswers   = "(no answers)"
	cvTruncated = "\n[CV truncated]"
)

// SystemInstruction is sent alongside every scoring prompt.
const SystemInstruction = "You are assisting a hiring manager by scoring job candidates. " +
	"Return ONLY valid JSON matching the requested keys. No markdown, no commentary."

//go:embed prompt.md
var promptTemplate string

// Generator sends a prompt to a model and returns its text.
type Generator interface {
	GenerateContent(ctx context.Context, systemInstruction, prompt string) (string, error)
	Provider() string
	Model() string
}

// Evaluator implements scoring.Evaluator on top of a Generator.
type Evaluator struct {
	generator  Generator
	logger     *zap.Logger
	maxCVChars int
	maxLogLen  int
}

type Option func(*Evaluator)

// WithMaxCVChars overrides DefaultMaxCVChars.
func WithMaxCVChars(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxCVChars = n
		}
	}
}

// WithMaxLogLength bounds prompt and response previews in debug logs.
func WithMaxLogLength(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxLogLen = n
		}
	}
}

func NewEvaluator(generator Generator, log *zap.Logger, opts ...Option) (*Evaluator, error) {
	if generator == nil {
		return nil, ErrMissingConfiguration
	}

	e := &Evaluator{
		generator:  generator,
		logger:     logger.WithEvaluator(log, generator.Provider(), generator.Model()),
		maxCVChars: DefaultMaxCVChars,
		maxLogLen:  defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Evaluate returns the raw model output for input. A single attempt is made.
func (e *Evaluator) Evaluate(ctx context.Context, input scoring.EvaluationInput) (string, error) {
	prompt := e.BuildPrompt(input)

	log := logger.WithFields(e.logger, logger.CandidateFields(input.CandidateID, input.JobID)...)
	log.Debug("generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, SystemInstruction, prompt)
	if err != nil {
		return "", err
	}

	log.Debug("generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return raw, nil
}

// BuildPrompt renders the scoring prompt. The output depends only on input.
func (e *Evaluator) BuildPrompt(input scoring.EvaluationInput) string {
	cvText := strings.TrimSpace(input.CVText)
	if cvText == "" {
		cvText = scoring.PlaceholderNoCV
	}
	if cut, truncated := utils.TruncateRunes(cvText, e.maxCVChars); truncated {
		cvText = cut + cvTruncated
	}

	answers := strings.TrimSpace(input.AnswersText)
	if answers == "" {
		answers = noAnswers
	}

	cvURL := strings.TrimSpace(input.CVURL)
	if cvURL == "" {
		cvURL = "(none)"
	}

	// A single pass keeps placeholders that appear inside candidate text intact.
	replacer := strings.NewReplacer(
		"{{CANDIDATE_NAME}}", strings.TrimSpace(input.CandidateName),
		"{{CANDIDATE_ID}}", strconv.FormatInt(input.CandidateID, 10),
		"{{JOB_ID}}", strconv.FormatInt(input.JobID, 10),
		"{{CV_URL}}", cvURL,
		"{{CV_TEXT}}", cvText,
		"{{ANSWERS}}", answers,
	)

	return strings.TrimSpace(replacer.Replace(promptTemplate))
}
