// Package pipeline orchestrates the full evaluation flow: sandboxed test
// execution, static analysis, evidence assembly, deterministic scoring, the
// agent panel, auditing, and the final blend.
package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/lemon07r/truescore/internal/audit"
	"github.com/lemon07r/truescore/internal/score"
	"github.com/lemon07r/truescore/internal/testrun"
)

// Result is the complete, self-describing record of one evaluation. Every
// number in it can be traced back to the evidence fingerprint and the
// recorded weights.
type Result struct {
	ID                  string        `json:"id"`
	ProblemID           string        `json:"problem_id"`
	SubmissionID        string        `json:"submission_id"`
	EvidenceFingerprint string        `json:"evidence_fingerprint"`
	Suite               SuiteSummary  `json:"suite"`
	Deterministic       score.Vector  `json:"deterministic"`
	DeterministicScore  float64       `json:"deterministic_score"`
	LLM                 *score.Vector `json:"llm,omitempty"`
	LLMScore            float64       `json:"llm_score"`
	LLMAvailable        bool          `json:"llm_available"`
	SubstitutedDims     []string      `json:"substituted_dims,omitempty"` // Dimensions filled from the deterministic vector
	ModelsUsed          []string      `json:"models_used,omitempty"`
	Confidence          float64       `json:"confidence,omitempty"`
	Flags               []audit.Flag  `json:"flags,omitempty"`
	UncertaintyFlags    []string      `json:"uncertainty_flags,omitempty"`
	Issues              []string      `json:"issues,omitempty"`
	Suggestions         []string      `json:"suggestions,omitempty"`
	Citations           []string      `json:"citations,omitempty"`
	DetWeight           float64       `json:"det_weight"`
	LLMWeight           float64       `json:"llm_weight"`
	BlendReason         string        `json:"blend_reason,omitempty"`
	FinalScore          float64       `json:"final_score"`
	Warnings            []string      `json:"warnings,omitempty"`
	EvaluatedAt         time.Time     `json:"evaluated_at"`
	Elapsed             time.Duration `json:"elapsed_ns"`
	Integrity           string        `json:"integrity,omitempty"`
}

// SuiteSummary is the test-suite portion of a result, kept small enough to
// read at a glance.
type SuiteSummary struct {
	Total               int     `json:"total"`
	Passed              int     `json:"passed"`
	Failed              int     `json:"failed"`
	Errors              int     `json:"errors"`
	PassRate            float64 `json:"pass_rate"`
	EdgeTotal           int     `json:"edge_total"`
	EdgePassed          int     `json:"edge_passed"`
	TimedOut            bool    `json:"timed_out,omitempty"`
	CapabilityViolation bool    `json:"capability_violation,omitempty"`
	Capability          string  `json:"capability,omitempty"`
	Findings            int     `json:"findings"`
}

func summarize(suite *testrun.SuiteResult, edgeTotal, edgePassed, findings int) SuiteSummary {
	return SuiteSummary{
		Total:               suite.Total,
		Passed:              suite.Passed,
		Failed:              suite.Failed,
		Errors:              suite.Errors,
		PassRate:            suite.PassRate,
		EdgeTotal:           edgeTotal,
		EdgePassed:          edgePassed,
		TimedOut:            suite.Verdict.TimedOut,
		CapabilityViolation: suite.Verdict.CapabilityViolation,
		Capability:          suite.Verdict.Capability,
		Findings:            findings,
	}
}

// computeIntegrity hashes the result with the integrity field cleared, so
// the stored hash covers everything else.
func (r *Result) computeIntegrity() (string, error) {
	clone := *r
	clone.Integrity = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	h := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(h[:]), nil
}

// Seal fills in the integrity hash. Call after the result is complete.
func (r *Result) Seal() error {
	sum, err := r.computeIntegrity()
	if err != nil {
		return err
	}
	r.Integrity = sum
	return nil
}

// VerifyIntegrity reports whether the stored hash still matches the content.
func (r *Result) VerifyIntegrity() (bool, error) {
	if r.Integrity == "" {
		return false, nil
	}
	sum, err := r.computeIntegrity()
	if err != nil {
		return false, err
	}
	return sum == r.Integrity, nil
}

// Filename returns the canonical result file name for this evaluation.
func (r *Result) Filename() string {
	return fmt.Sprintf("%s__%s.json", r.ProblemID, r.SubmissionID)
}

// Save seals and writes the result under dir, creating it if needed.
func (r *Result) Save(dir string) (string, error) {
	if err := r.Seal(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}

	path := filepath.Join(dir, r.Filename())
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing result: %w", err)
	}
	return path, nil
}

// LoadResult reads one stored result file.
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing result %s: %w", path, err)
	}
	return &r, nil
}

// LoadResults reads every result file under dir, sorted by file name.
func LoadResults(dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading results dir: %w", err)
	}

	var results []*Result
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		r, err := LoadResult(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
