package score

import (
	"strings"

	"github.com/lemon07r/truescore/internal/evidence"
)

// Deterministic computes the rule-based score vector from an evidence bundle.
// It is a pure function: the same bundle always yields the same vector, with
// no wall-clock, randomness, or external input.
func Deterministic(b *evidence.Bundle) Vector {
	verdict := b.Verdict()

	var v Vector
	if verdict.TimedOut || verdict.CapabilityViolation {
		// A submission that never ran to completion earns nothing for
		// correctness or edge handling, whatever the partial results say.
		v.Correctness = 0
		v.EdgeCases = 0
	} else {
		v.Correctness = round2(b.PassRate() * 10)
		v.EdgeCases = edgeCaseScore(b)
	}

	v.Complexity = complexityScore(b)
	v.Style = styleScore(b)
	v.Clarity = clarityScore(b)
	return v
}

// edgeCaseScore prefers direct evidence (edge-tagged cases); without any it
// falls back to banding the overall pass rate.
func edgeCaseScore(b *evidence.Bundle) float64 {
	if b.EdgeTotal > 0 {
		return round2(10 * float64(b.EdgePassed) / float64(b.EdgeTotal))
	}

	pr := b.PassRate()
	switch {
	case pr >= 1:
		return 10
	case pr >= 0.8:
		return round2(7 + (pr-0.8)*15)
	case pr >= 0.5:
		return round2(4 + (pr-0.5)*10)
	default:
		return round2(pr * 8)
	}
}

// complexityScore bands the observed loop nesting against the declared
// expected complexity. The nesting depth is a heuristic, so scores move in
// coarse steps rather than pretending at precision.
func complexityScore(b *evidence.Bundle) float64 {
	expected := b.ExpectedComplexity
	depth := b.Metrics.MaxLoopNesting

	score := 10.0
	switch {
	case strings.Contains(expected, "O(n)") || strings.Contains(expected, "O(V+E)"):
		switch {
		case depth >= 3:
			score = 2
		case depth >= 2:
			score = 5
		case depth == 1:
			score = 9
		}
	case strings.Contains(expected, "O(n^2)"):
		switch {
		case depth >= 3:
			score = 4
		case depth >= 2:
			score = 8
		}
	}

	if b.Metrics.Recursive && !b.Metrics.Memoized && strings.Contains(expected, "O(n)") {
		if score > 6 {
			score = 6
		}
	}

	return round2(score)
}

// styleScore bands the linter finding density and deducts for naming and
// line-length signals.
func styleScore(b *evidence.Bundle) float64 {
	lines := b.Metrics.Lines
	if lines == 0 {
		return 5
	}

	density := float64(len(b.Findings)) / float64(lines)
	var base float64
	switch {
	case len(b.Findings) == 0:
		base = 10
	case density < 0.05:
		base = 9
	case density < 0.1:
		base = 8
	case density < 0.2:
		base = 6
	case density < 0.3:
		base = 4
	case density < 0.5:
		base = 2
	default:
		base = 1
	}

	deduction := float64(b.Metrics.SingleCharNames) * 0.3
	longPenalty := float64(b.Metrics.LongLines) * 0.3
	if longPenalty > 2.0 {
		longPenalty = 2.0
	}
	deduction += longPenalty

	return round2(Clamp(base - deduction))
}

// clarityScore starts from a fixed base and adjusts for length, naming, and
// documentation signals.
func clarityScore(b *evidence.Bundle) float64 {
	m := b.Metrics
	score := 8.0

	switch {
	case m.Lines > 50:
		score -= 2
	case m.Lines > 30:
		score -= 1
	}

	if m.FunctionCount > 0 {
		if float64(m.ShortNameFunctions)/float64(m.FunctionCount) > 0.5 {
			score -= 2
		}
	}

	if m.HasDocstring {
		score++
	}
	if m.CommentLines > 0 && m.Lines > 10 {
		score += 0.5
	}

	return round2(Clamp(score))
}
