package scoring

import "math"

const (
	RubricVersion = "v2.0-inverted-risk"
	rubricNotes   = "Weights calibrated for fintech operations profiles. Applied to 1-5 dimension scores; risk is inverted (6 - risk) so low risk raises the final score."

	MinFinalScore = 0
	MaxFinalScore = 5
)

// Weights are the per-dimension multipliers of a rubric.
type Weights struct {
	Relevance  float64
	Experience float64
	Motivation float64
	Risk       float64
}

// Rubric composes four dimension scores into a final score. Risk is measured
// 1 (low) to 5 (high) and enters the sum inverted.
type Rubric struct {
	version string
	weights Weights
	notes   string
}

// RubricInfo is the read-only view of a rubric.
type RubricInfo struct {
	Version string             `json:"version"`
	Weights map[string]float64 `json:"weights"`
	Notes   string             `json:"notes"`
}

// DefaultRubric returns the active rubric.
func DefaultRubric() Rubric {
	return Rubric{
		version: RubricVersion,
		weights: Weights{
			Relevance:  0.35,
			Experience: 0.25,
			Motivation: 0.25,
			Risk:       0.15,
		},
		notes: rubricNotes,
	}
}

func (r Rubric) Version() string { return r.version }

// Compose returns the weighted score clamped to [0,5] and rounded to two decimals.
func (r Rubric) Compose(e Evaluation) float64 {
	w := r.weights
	riskInversion := float64(MaxDimensionScore + 1 - e.Risk.Score)

	final := w.Relevance*float64(e.Relevance.Score) +
		w.Experience*float64(e.Experience.Score) +
		w.Motivation*float64(e.Motivation.Score) +
		w.Risk*riskInversion

	return round2(clamp(final, MinFinalScore, MaxFinalScore))
}

// Info returns a copy, so callers cannot change the active weights.
func (r Rubric) Info() RubricInfo {
	return RubricInfo{
		Version: r.version,
		Weights: map[string]float64{
			"relevance":  r.weights.Relevance,
			"experience": r.weights.Experience,
			"motivation": r.weights.Motivation,
			"risk":       r.weights.Risk,
		},
		Notes: r.notes,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
