// Package audit cross-checks LLM consensus claims against the evidence
// bundle. Every rule has a stable identifier so flags are comparable across
// runs and across result files.
package audit

import (
	"fmt"

	"github.com/lemon07r/truescore/internal/agent"
	"github.com/lemon07r/truescore/internal/config"
	"github.com/lemon07r/truescore/internal/evidence"
	"github.com/lemon07r/truescore/internal/score"
)

// Flag is one detected contradiction between a claim and the evidence.
type Flag struct {
	Rule      string `json:"rule"`
	Dimension string `json:"dimension,omitempty"`
	Reason    string `json:"reason"`
}

// Rule identifiers. Stable: renaming one invalidates historical results.
const (
	RuleCorrectnessVsPassRate  = "correctness-vs-pass-rate"
	RuleStyleVsFindings        = "style-vs-findings"
	RuleConfidenceVsCitations  = "confidence-vs-citations"
	RuleScoreDespiteTimeout    = "score-despite-timeout"
	RuleScoreDespiteViolation  = "score-despite-violation"
	RuleUndervaluedCorrectness = "undervalued-correctness"
	RuleSilentFailures         = "silent-failures"
)

// Audit checks the consensus against the bundle and returns every flag that
// fired, in rule order. Rules over a dimension no agent scored are skipped:
// there is no claim to contradict.
func Audit(c *agent.Consensus, b *evidence.Bundle, cfg config.AuditConfig) []Flag {
	var flags []Flag

	correctness, correctnessScored := claimed(c, score.Correctness)
	edge, edgeScored := claimed(c, score.EdgeCases)
	style, styleScored := claimed(c, score.Style)

	pr := b.PassRate()
	verdict := b.Verdict()

	if correctnessScored && correctness >= cfg.HighCorrectness && pr <= cfg.LowPassRate {
		flags = append(flags, Flag{
			Rule:      RuleCorrectnessVsPassRate,
			Dimension: string(score.Correctness),
			Reason:    fmt.Sprintf("correctness %.1f claimed but pass rate is %.2f", correctness, pr),
		})
	}

	if styleScored && style >= cfg.HighStyle && len(b.Findings) > cfg.MaxFindings {
		flags = append(flags, Flag{
			Rule:      RuleStyleVsFindings,
			Dimension: string(score.Style),
			Reason:    fmt.Sprintf("style %.1f claimed against %d linter findings", style, len(b.Findings)),
		})
	}

	if len(c.Judgments) > 0 && c.Confidence >= cfg.HighConfidence && len(c.Citations) < cfg.MinCitations {
		flags = append(flags, Flag{
			Rule:   RuleConfidenceVsCitations,
			Reason: fmt.Sprintf("confidence %.2f with only %d citations", c.Confidence, len(c.Citations)),
		})
	}

	if verdict.TimedOut {
		if correctnessScored && correctness > 0 || edgeScored && edge > 0 {
			flags = append(flags, Flag{
				Rule:   RuleScoreDespiteTimeout,
				Reason: "execution timed out but correctness or edge-case credit was given",
			})
		}
	}

	if verdict.CapabilityViolation {
		if correctnessScored && correctness > 0 || edgeScored && edge > 0 {
			flags = append(flags, Flag{
				Rule:   RuleScoreDespiteViolation,
				Reason: fmt.Sprintf("capability violation (%s) but correctness or edge-case credit was given", verdict.Capability),
			})
		}
	}

	if correctnessScored && correctness <= 3 && pr >= 0.9 && !verdict.TimedOut && !verdict.CapabilityViolation {
		flags = append(flags, Flag{
			Rule:      RuleUndervaluedCorrectness,
			Dimension: string(score.Correctness),
			Reason:    fmt.Sprintf("correctness %.1f claimed but pass rate is %.2f", correctness, pr),
		})
	}

	if len(c.Judgments) > 0 && len(c.Issues) == 0 && b.Suite.Failed > 0 {
		flags = append(flags, Flag{
			Rule:   RuleSilentFailures,
			Reason: fmt.Sprintf("%d test cases failed but no issues were reported", b.Suite.Failed),
		})
	}

	return flags
}

// claimed returns the consensus value for a dimension and whether any agent
// actually scored it.
func claimed(c *agent.Consensus, d score.Dimension) (float64, bool) {
	dc, ok := c.Dimensions[d]
	if !ok || !dc.Available {
		return 0, false
	}
	return dc.Value, true
}
