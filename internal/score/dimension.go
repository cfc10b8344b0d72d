// Package score defines the rubric dimensions, the deterministic scoring
// engine, and the deterministic/LLM blend.
package score

import (
	"math"

	"github.com/lemon07r/truescore/internal/config"
)

// Dimension is one rubric axis, scored 0-10.
type Dimension string

const (
	Correctness Dimension = "correctness"
	EdgeCases   Dimension = "edge_cases"
	Complexity  Dimension = "complexity"
	Style       Dimension = "style"
	Clarity     Dimension = "clarity"
)

// Dimensions lists every rubric dimension in canonical order.
var Dimensions = []Dimension{Correctness, EdgeCases, Complexity, Style, Clarity}

// Vector holds one score per rubric dimension.
type Vector struct {
	Correctness float64 `json:"correctness"`
	EdgeCases   float64 `json:"edge_cases"`
	Complexity  float64 `json:"complexity"`
	Style       float64 `json:"style"`
	Clarity     float64 `json:"clarity"`
}

// Value returns the score for one dimension.
func (v Vector) Value(d Dimension) float64 {
	switch d {
	case Correctness:
		return v.Correctness
	case EdgeCases:
		return v.EdgeCases
	case Complexity:
		return v.Complexity
	case Style:
		return v.Style
	case Clarity:
		return v.Clarity
	}
	return 0
}

// Set assigns the score for one dimension.
func (v *Vector) Set(d Dimension, value float64) {
	switch d {
	case Correctness:
		v.Correctness = value
	case EdgeCases:
		v.EdgeCases = value
	case Complexity:
		v.Complexity = value
	case Style:
		v.Style = value
	case Clarity:
		v.Clarity = value
	}
}

// Overall computes the weighted aggregate of the vector, rounded to two
// decimals.
func (v Vector) Overall(w config.Weights) float64 {
	total := v.Correctness*w.Correctness +
		v.EdgeCases*w.EdgeCases +
		v.Complexity*w.Complexity +
		v.Style*w.Style +
		v.Clarity*w.Clarity
	return round2(total)
}

// Clamp bounds a raw score to the rubric range [0, 10].
func Clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
