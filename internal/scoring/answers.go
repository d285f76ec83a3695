package scoring

import (
	"bytes"
	"encoding/json"
	"strings"
)

// AnswersShape tags which layout a raw answers payload used.
type AnswersShape int

const (
	// ShapeOther covers null, scalars, malformed JSON and objects without an
	// "answers" list.
	ShapeOther AnswersShape = iota
	// ShapeWrapped is {"answers": [{question, value}, ...]}.
	ShapeWrapped
	// ShapeBare is [{question, value}, ...].
	ShapeBare
)

func (s AnswersShape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeBare:
		return "bare"
	default:
		return "other"
	}
}

// QA is one retained question/answer pair.
type QA struct {
	Question string
	Value    string
}

// ParsedAnswers is the resolved form of a raw answers payload. Items is empty
// for ShapeOther.
type ParsedAnswers struct {
	Shape AnswersShape
	Items []QA
}

const (
	missingQuestion = "(no question)"
	missingAnswer   = "(empty)"
)

// ParseAnswers resolves the payload layout once. It never fails: anything it
// does not recognize is ShapeOther.
func ParseAnswers(raw json.RawMessage) ParsedAnswers {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ParsedAnswers{Shape: ShapeOther}
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return ParsedAnswers{Shape: ShapeOther}
	}

	switch v := value.(type) {
	case map[string]any:
		list, ok := v["answers"].([]any)
		if !ok {
			return ParsedAnswers{Shape: ShapeOther}
		}
		return ParsedAnswers{Shape: ShapeWrapped, Items: collectQA(list)}
	case []any:
		return ParsedAnswers{Shape: ShapeBare, Items: collectQA(v)}
	default:
		return ParsedAnswers{Shape: ShapeOther}
	}
}

func collectQA(list []any) []QA {
	items := make([]QA, 0, len(list))
	for _, element := range list {
		record, ok := element.(map[string]any)
		if !ok {
			continue
		}

		question := stringOrEmpty(record["question"])
		value := stringOrEmpty(record["value"])
		if question == "" && value == "" {
			continue
		}

		items = append(items, QA{Question: question, Value: value})
	}
	return items
}

func stringOrEmpty(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Text renders the retained answers as "Q:"/"A:" blocks separated by blank lines.
func (p ParsedAnswers) Text() string {
	if len(p.Items) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(p.Items))
	for _, item := range p.Items {
		question := item.Question
		if question == "" {
			question = missingQuestion
		}
		value := item.Value
		if value == "" {
			value = missingAnswer
		}
		blocks = append(blocks, "Q: "+question+"\nA: "+value)
	}

	return strings.Join(blocks, "\n\n")
}

// NormalizeAnswers is ParseAnswers followed by Text.
func NormalizeAnswers(raw json.RawMessage) string {
	return ParseAnswers(raw).Text()
}
