package scoring

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	MinDimensionScore = 1
	MaxDimensionScore = 5
	// MaxRiskFlags caps the flags kept from a model response.
	MaxRiskFlags = 20

	DefaultReason = "No reason provided"

	defaultNeutralScore = 3
	defaultRiskScore    = 1
)

// DefaultEvaluation is the result used when the model output is unusable.
func DefaultEvaluation() Evaluation {
	return Evaluation{
		Relevance:  Dimension{Score: defaultNeutralScore, Reason: DefaultReason},
		Experience: Dimension{Score: defaultNeutralScore, Reason: DefaultReason},
		Motivation: Dimension{Score: defaultNeutralScore, Reason: DefaultReason},
		Risk:       Dimension{Score: defaultRiskScore, Reason: DefaultReason},
		RiskFlags:  []string{},
	}
}

// CoerceEvaluation converts raw model text into a fully populated Evaluation.
// It never fails: every missing or malformed field falls back to its default.
func CoerceEvaluation(raw string) Evaluation {
	data, ok := ParseModelOutput(raw).(map[string]any)
	if !ok {
		return DefaultEvaluation()
	}

	return Evaluation{
		Relevance:  coerceDimension(data["relevance"], defaultNeutralScore),
		Experience: coerceDimension(data["experience"], defaultNeutralScore),
		Motivation: coerceDimension(data["motivation"], defaultNeutralScore),
		Risk:       coerceDimension(data["risk"], defaultRiskScore),
		RiskFlags:  coerceFlags(data["riskFlags"]),
	}
}

// ParseModelOutput decodes raw as JSON. When that fails it retries on the
// span between the first '{' and the last '}'. It returns nil if both fail.
func ParseModelOutput(raw string) any {
	if v, ok := decodeJSON(raw); ok {
		return v
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}

	if v, ok := decodeJSON(raw[start : end+1]); ok {
		return v
	}
	return nil
}

// decodeJSON keeps numbers as json.Number so out-of-range literals degrade to
// a default instead of failing the whole document.
func decodeJSON(text string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return v, true
}

func coerceDimension(v any, defaultScore int) Dimension {
	record, _ := v.(map[string]any)

	score := defaultScore
	if f, ok := coerceFloat(record["score"]); ok {
		score = clampScore(f)
	}

	reason := DefaultReason
	if s, ok := record["reason"].(string); ok && strings.TrimSpace(s) != "" {
		reason = strings.TrimSpace(s)
	}

	return Dimension{Score: score, Reason: reason}
}

// coerceFloat accepts JSON numbers and numeric strings. Non-finite values are
// rejected.
func coerceFloat(v any) (float64, bool) {
	var (
		f   float64
		err error
	)

	switch val := v.(type) {
	case json.Number:
		f, err = strconv.ParseFloat(val.String(), 64)
	case float64:
		f = val
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(trimmed, 64)
	default:
		return 0, false
	}

	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampScore(f float64) int {
	rounded := math.Round(f)
	if rounded < MinDimensionScore {
		return MinDimensionScore
	}
	if rounded > MaxDimensionScore {
		return MaxDimensionScore
	}
	return int(rounded)
}

func coerceFlags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}

	flags := make([]string, 0, min(len(list), MaxRiskFlags))
	for _, item := range list {
		if len(flags) == MaxRiskFlags {
			break
		}
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			flags = append(flags, s)
		}
	}
	return flags
}
