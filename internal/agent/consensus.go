package agent

import (
	"fmt"
	"math"
	"sort"

	"github.com/lemon07r/truescore/internal/score"
)

// Merge combines agent judgments into a consensus. A dimension scored by
// several agents takes their mean; a spread wider than spreadThreshold adds
// an uncertainty flag. A dimension no agent scored stays unavailable rather
// than defaulting to zero.
func Merge(judgments []Judgment, spreadThreshold float64) *Consensus {
	c := &Consensus{
		Dimensions: make(map[score.Dimension]DimensionConsensus, len(score.Dimensions)),
		Judgments:  judgments,
	}

	for _, dim := range score.Dimensions {
		var values []float64
		var agents []string
		for _, j := range judgments {
			if v, ok := j.Scores[dim]; ok {
				values = append(values, v)
				agents = append(agents, j.Agent)
			}
		}

		if len(values) == 0 {
			c.Dimensions[dim] = DimensionConsensus{}
			continue
		}

		c.Dimensions[dim] = DimensionConsensus{
			Value:     round2(mean(values)),
			Agents:    agents,
			Available: true,
		}

		if spread := maxSpread(values); len(values) > 1 && spread > spreadThreshold {
			c.UncertaintyFlags = append(c.UncertaintyFlags,
				fmt.Sprintf("agents disagree on %s: spread %.1f across %v", dim, spread, agents))
		}
	}

	var confidences []float64
	for _, j := range judgments {
		confidences = append(confidences, j.Confidence)
		c.Issues = append(c.Issues, j.Issues...)
		c.Suggestions = append(c.Suggestions, j.Suggestions...)
		c.Citations = append(c.Citations, j.Citations...)
		c.UncertaintyFlags = append(c.UncertaintyFlags, j.UncertaintyFlags...)
	}
	if len(confidences) > 0 {
		c.Confidence = round2(mean(confidences))
	}

	c.Issues = dedupe(c.Issues)
	c.Suggestions = dedupe(c.Suggestions)
	c.Citations = dedupe(c.Citations)

	return c
}

// Vector materializes the consensus as a score vector, substituting fallback
// values for unavailable dimensions. The returned substitutions record which
// dimensions were filled in, for result provenance.
func (c *Consensus) Vector(fallback score.Vector) (score.Vector, []string) {
	var v score.Vector
	var substituted []string

	for _, dim := range score.Dimensions {
		dc := c.Dimensions[dim]
		if dc.Available {
			v.Set(dim, dc.Value)
		} else {
			v.Set(dim, fallback.Value(dim))
			substituted = append(substituted, string(dim))
		}
	}

	return v, substituted
}

func mean(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

func maxSpread(values []float64) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// dedupe removes duplicates while keeping first-seen order stable across
// runs (judgment order is fixed by the caller).
func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	var out []string
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortedFlags returns the uncertainty flags in deterministic order.
func (c *Consensus) SortedFlags() []string {
	flags := append([]string(nil), c.UncertaintyFlags...)
	sort.Strings(flags)
	return flags
}
