package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/lemon07r/truescore/internal/analysis"
	"github.com/lemon07r/truescore/internal/evidence"
	"github.com/lemon07r/truescore/internal/problem"
	"github.com/lemon07r/truescore/internal/score"
)

// DefaultTolerance is the score drift allowed before a sample is marked
// inconsistent. Deterministic scores round to two decimals, so anything
// under half a hundredth is noise-free equality.
const DefaultTolerance = 0.005

// SampleCheck is the consistency verdict for one re-evaluated result.
type SampleCheck struct {
	ProblemID       string  `json:"problem_id"`
	SubmissionID    string  `json:"submission_id"`
	StoredDet       float64 `json:"stored_det"`
	RecomputedDet   float64 `json:"recomputed_det"`
	DetDiff         float64 `json:"det_diff"`
	StoredFinal     float64 `json:"stored_final"`
	RecomputedFinal float64 `json:"recomputed_final"`
	FinalDiff       float64 `json:"final_diff"`
	FingerprintOK   bool    `json:"fingerprint_ok"`
	IntegrityOK     bool    `json:"integrity_ok"`
	Consistent      bool    `json:"consistent"`
	Error           string  `json:"error,omitempty"`
}

// CheckReport aggregates the sample checks.
type CheckReport struct {
	Samples []SampleCheck `json:"samples"`
	Checked int           `json:"checked"`
	Passed  int           `json:"passed"`
	Pass    bool          `json:"pass"`
}

// Checker re-runs the deterministic path for a sample of stored results and
// verifies the scores reproduce. The LLM path is never re-run: stored LLM
// scores are taken as-is and only the deterministic contribution is
// recomputed.
type Checker struct {
	pipeline  *Pipeline
	loader    *problem.Loader
	tolerance float64
	logger    *slog.Logger
}

// NewChecker creates a consistency checker. tolerance <= 0 selects
// DefaultTolerance.
func NewChecker(pl *Pipeline, loader *problem.Loader, tolerance float64, logger *slog.Logger) *Checker {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{pipeline: pl, loader: loader, tolerance: tolerance, logger: logger}
}

// Check re-evaluates up to sampleSize stored results. The sample is chosen
// deterministically: results sorted by problem then submission, first N.
func (c *Checker) Check(ctx context.Context, results []*Result, sampleSize int) (*CheckReport, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results to check")
	}

	sorted := append([]*Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProblemID != sorted[j].ProblemID {
			return sorted[i].ProblemID < sorted[j].ProblemID
		}
		return sorted[i].SubmissionID < sorted[j].SubmissionID
	})
	if sampleSize > 0 && sampleSize < len(sorted) {
		sorted = sorted[:sampleSize]
	}

	report := &CheckReport{Checked: len(sorted)}
	for _, stored := range sorted {
		sample := c.checkOne(ctx, stored)
		report.Samples = append(report.Samples, sample)
		if sample.Consistent {
			report.Passed++
		} else {
			c.logger.Warn("inconsistent sample",
				"problem", sample.ProblemID,
				"submission", sample.SubmissionID,
				"det_diff", sample.DetDiff,
				"final_diff", sample.FinalDiff,
				"error", sample.Error,
			)
		}
	}
	report.Pass = report.Passed == report.Checked

	return report, nil
}

// checkOne re-runs the deterministic path for one stored result.
func (c *Checker) checkOne(ctx context.Context, stored *Result) SampleCheck {
	sample := SampleCheck{
		ProblemID:    stored.ProblemID,
		SubmissionID: stored.SubmissionID,
		StoredDet:    stored.DeterministicScore,
		StoredFinal:  stored.FinalScore,
	}

	intact, err := stored.VerifyIntegrity()
	if err != nil {
		sample.Error = err.Error()
		return sample
	}
	sample.IntegrityOK = intact

	p, err := c.loader.Load(stored.ProblemID)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}
	source, err := c.loader.ReadSubmission(p, stored.SubmissionID)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}

	suite, err := c.pipeline.runner.RunSuite(ctx, source, p)
	if err != nil {
		sample.Error = err.Error()
		return sample
	}
	findings, lintWarning := c.pipeline.linter.Lint(ctx, source)
	metrics := analysis.ComputeMetrics(source)

	bundle := evidence.Build(p, stored.SubmissionID, suite, findings, lintWarning, metrics)
	if fp, err := bundle.Fingerprint(); err == nil {
		sample.FingerprintOK = fp == stored.EvidenceFingerprint
	}

	det := score.Deterministic(bundle)
	sample.RecomputedDet = det.Overall(c.pipeline.cfg.Scoring.Weights)
	sample.DetDiff = math.Abs(sample.RecomputedDet - sample.StoredDet)

	// The final score recomposes from the stored weights and the stored LLM
	// score; only the deterministic contribution is fresh.
	sample.RecomputedFinal = math.Round((stored.DetWeight*sample.RecomputedDet+stored.LLMWeight*stored.LLMScore)*100) / 100
	sample.FinalDiff = math.Abs(sample.RecomputedFinal - sample.StoredFinal)

	sample.Consistent = intact &&
		sample.DetDiff <= c.tolerance &&
		sample.FinalDiff <= c.tolerance

	return sample
}
