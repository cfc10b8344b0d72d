// Package evidence assembles the immutable grounding record for one
// evaluation. The bundle is the sole value handed to the deterministic
// rubric engine and to the LLM agents: everything a score or a judgment
// claims must be traceable to a field here.
package evidence

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/lemon07r/truescore/internal/analysis"
	"github.com/lemon07r/truescore/internal/problem"
	"github.com/lemon07r/truescore/internal/sandbox"
	"github.com/lemon07r/truescore/internal/testrun"
)

// Bundle is the immutable grounding record. Given the same submission and
// test suite it is byte-for-byte reproducible: wall-clock timing is carried
// for reporting but excluded from the fingerprint and from every
// score-affecting field.
type Bundle struct {
	ProblemID          string                 `json:"problem_id"`
	SubmissionID       string                 `json:"submission_id"`
	EntryPoint         string                 `json:"entry_point"`
	ExpectedComplexity string                 `json:"expected_complexity,omitempty"`
	Suite              testrun.SuiteResult    `json:"suite"`
	EdgeTotal          int                    `json:"edge_total"`
	EdgePassed         int                    `json:"edge_passed"`
	Findings           []analysis.Finding     `json:"findings"`
	LinterWarning      string                 `json:"linter_warning,omitempty"`
	Metrics            analysis.SourceMetrics `json:"metrics"`
}

// Build assembles a bundle from the outputs of the earlier stages.
func Build(p *problem.Problem, submissionID string, suite *testrun.SuiteResult, findings []analysis.Finding, linterWarning string, metrics analysis.SourceMetrics) *Bundle {
	b := &Bundle{
		ProblemID:          p.ID,
		SubmissionID:       submissionID,
		EntryPoint:         p.EntryPoint,
		ExpectedComplexity: p.Complexity,
		Suite:              *suite,
		Findings:           findings,
		LinterWarning:      linterWarning,
		Metrics:            metrics,
	}

	for _, c := range suite.Cases {
		if c.Edge {
			b.EdgeTotal++
			if c.Passed() {
				b.EdgePassed++
			}
		}
	}

	return b
}

// PassRate is the suite pass rate over the declared test count.
func (b *Bundle) PassRate() float64 { return b.Suite.PassRate }

// Verdict is the sandbox verdict for the submission run.
func (b *Bundle) Verdict() sandbox.Verdict { return b.Suite.Verdict }

// FailedCases returns the cases that did not pass, for prompt payloads.
func (b *Bundle) FailedCases() []testrun.CaseResult {
	var failed []testrun.CaseResult
	for _, c := range b.Suite.Cases {
		if !c.Passed() {
			failed = append(failed, c)
		}
	}
	return failed
}

// Citations returns the stable evidence identifiers agents may cite:
// one per test case, per finding rule, plus verdict and metric references.
func (b *Bundle) Citations() []string {
	refs := make([]string, 0, len(b.Suite.Cases)+len(b.Findings)+4)
	for _, c := range b.Suite.Cases {
		refs = append(refs, "test:"+c.Name)
	}
	for _, f := range b.Findings {
		refs = append(refs, "lint:"+f.Rule)
	}
	refs = append(refs, "verdict:timeout", "verdict:capability", "metric:loop_nesting", "metric:structure")
	return refs
}

// Fingerprint returns a blake3 content hash of the bundle's canonical form,
// with all elapsed-time fields zeroed so timing noise never changes the
// fingerprint.
func (b *Bundle) Fingerprint() (string, error) {
	canon := *b
	canon.Suite.Elapsed = 0
	canon.Suite.Cases = make([]testrun.CaseResult, len(b.Suite.Cases))
	copy(canon.Suite.Cases, b.Suite.Cases)
	for i := range canon.Suite.Cases {
		canon.Suite.Cases[i].Elapsed = 0
	}

	data, err := json.Marshal(&canon)
	if err != nil {
		return "", fmt.Errorf("marshaling bundle: %w", err)
	}

	h := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(h[:]), nil
}
