// Package agent implements the LLM judgment layer: specialized judges that
// score the rubric dimensions they own from the evidence bundle, and the
// consensus merge that combines their verdicts.
package agent

import (
	"github.com/lemon07r/truescore/internal/score"
)

// Judgment is one agent's verdict over the dimensions it owns. Scores are
// clamped to [0,10] and confidence to [0,1] at parse time.
type Judgment struct {
	Agent            string                      `json:"agent"`
	Model            string                      `json:"model"`
	Scores           map[score.Dimension]float64 `json:"scores"`
	Reasoning        string                      `json:"reasoning"`
	Issues           []string                    `json:"issues,omitempty"`
	Suggestions      []string                    `json:"suggestions,omitempty"`
	Citations        []string                    `json:"citations,omitempty"`
	Confidence       float64                     `json:"confidence"`
	UncertaintyFlags []string                    `json:"uncertainty_flags,omitempty"`
}

// DimensionConsensus is the merged verdict for one rubric dimension.
type DimensionConsensus struct {
	Value     float64  `json:"value"`
	Agents    []string `json:"agents"`
	Available bool     `json:"available"`
}

// Consensus is the merged multi-agent verdict. A dimension no agent scored
// is marked unavailable, which is distinct from a score of zero.
type Consensus struct {
	Dimensions       map[score.Dimension]DimensionConsensus `json:"dimensions"`
	Issues           []string                               `json:"issues,omitempty"`
	Suggestions      []string                               `json:"suggestions,omitempty"`
	Citations        []string                               `json:"citations,omitempty"`
	UncertaintyFlags []string                               `json:"uncertainty_flags,omitempty"`
	Confidence       float64                                `json:"confidence"`
	Judgments        []Judgment                             `json:"judgments"`
}

// Available reports whether at least one dimension carries an agent verdict.
func (c *Consensus) Available() bool {
	for _, dc := range c.Dimensions {
		if dc.Available {
			return true
		}
	}
	return false
}
