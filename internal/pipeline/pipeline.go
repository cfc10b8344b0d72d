package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemon07r/truescore/internal/agent"
	"github.com/lemon07r/truescore/internal/analysis"
	"github.com/lemon07r/truescore/internal/audit"
	"github.com/lemon07r/truescore/internal/config"
	"github.com/lemon07r/truescore/internal/evidence"
	"github.com/lemon07r/truescore/internal/problem"
	"github.com/lemon07r/truescore/internal/score"
	"github.com/lemon07r/truescore/internal/testrun"
)

// SuiteRunner is the test execution surface the pipeline needs.
type SuiteRunner interface {
	RunSuite(ctx context.Context, source string, p *problem.Problem) (*testrun.SuiteResult, error)
}

// SourceLinter is the static-analysis surface the pipeline needs.
type SourceLinter interface {
	Lint(ctx context.Context, source string) (findings []analysis.Finding, warning string)
}

// Pipeline runs evaluations end to end. Judges may be empty, in which case
// every evaluation is deterministic-only.
type Pipeline struct {
	cfg    *config.Config
	runner SuiteRunner
	linter SourceLinter
	judges []*agent.Judge
	logger *slog.Logger
}

// New assembles a pipeline. A nil logger falls back to slog.Default.
func New(cfg *config.Config, runner SuiteRunner, linter SourceLinter, judges []*agent.Judge, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, runner: runner, linter: linter, judges: judges, logger: logger}
}

// Evaluate scores one submission against one problem.
func (pl *Pipeline) Evaluate(ctx context.Context, p *problem.Problem, submissionID, source string) (*Result, error) {
	started := time.Now()

	suite, err := pl.runner.RunSuite(ctx, source, p)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s/%s: %w", p.ID, submissionID, err)
	}

	findings, lintWarning := pl.linter.Lint(ctx, source)
	metrics := analysis.ComputeMetrics(source)

	bundle := evidence.Build(p, submissionID, suite, findings, lintWarning, metrics)
	fingerprint, err := bundle.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprinting evidence: %w", err)
	}

	det := score.Deterministic(bundle)
	detScore := det.Overall(pl.cfg.Scoring.Weights)

	res := &Result{
		ID:                  uuid.NewString(),
		ProblemID:           p.ID,
		SubmissionID:        submissionID,
		EvidenceFingerprint: fingerprint,
		Suite:               summarize(suite, bundle.EdgeTotal, bundle.EdgePassed, len(findings)),
		Deterministic:       det,
		DeterministicScore:  detScore,
		EvaluatedAt:         time.Now().UTC(),
	}
	if lintWarning != "" {
		res.Warnings = append(res.Warnings, lintWarning)
	}

	var consensus *agent.Consensus
	if len(pl.judges) > 0 {
		consensus = pl.judge(ctx, bundle, source)
	}

	llmAvailable := consensus != nil && consensus.Available()
	var llmScore float64
	var flags []audit.Flag

	if llmAvailable {
		llmVec, substituted := consensus.Vector(det)
		llmScore = llmVec.Overall(pl.cfg.Scoring.Weights)
		flags = audit.Audit(consensus, bundle, pl.cfg.Audit)

		res.LLM = &llmVec
		res.LLMScore = llmScore
		res.SubstitutedDims = substituted
		res.Confidence = consensus.Confidence
		res.Issues = consensus.Issues
		res.Suggestions = consensus.Suggestions
		res.Citations = consensus.Citations
		res.UncertaintyFlags = consensus.SortedFlags()
		res.Flags = flags
		for _, j := range consensus.Judgments {
			res.ModelsUsed = appendUnique(res.ModelsUsed, j.Model)
		}
	}
	res.LLMAvailable = llmAvailable

	blend := score.Blend(detScore, llmScore, llmAvailable, len(flags) > 0, score.BlendConfig{
		LLMWeight:   pl.cfg.Scoring.LLMWeight,
		FlagPenalty: pl.cfg.Scoring.FlagPenalty,
	})
	res.DetWeight = blend.DetWeight
	res.LLMWeight = blend.LLMWeight
	res.BlendReason = blend.Reason
	res.FinalScore = blend.Final
	res.Elapsed = time.Since(started)

	pl.logger.Info("evaluated",
		"problem", p.ID,
		"submission", submissionID,
		"pass_rate", suite.PassRate,
		"det", detScore,
		"final", res.FinalScore,
		"flags", len(flags),
	)

	return res, nil
}

// judge runs the agent panel concurrently over the finished bundle. Agents
// see the comment-stripped source only. A failed judge drops out; the
// consensus is over whoever answered.
func (pl *Pipeline) judge(ctx context.Context, bundle *evidence.Bundle, source string) *agent.Consensus {
	excerpt := analysis.StripComments(source)

	judgments := make([]*agent.Judgment, len(pl.judges))
	var wg sync.WaitGroup
	for i, j := range pl.judges {
		wg.Add(1)
		go func(i int, j *agent.Judge) {
			defer wg.Done()
			verdict, err := j.Evaluate(ctx, bundle, excerpt)
			if err != nil {
				pl.logger.Warn("judge failed", "agent", j.Name(), "error", err)
				return
			}
			judgments[i] = verdict
		}(i, j)
	}
	wg.Wait()

	var accepted []agent.Judgment
	for _, j := range judgments {
		if j != nil {
			accepted = append(accepted, *j)
		}
	}

	return agent.Merge(accepted, pl.cfg.Consensus.SpreadThreshold)
}

// Job names one evaluation of the batch.
type Job struct {
	Problem      *problem.Problem
	SubmissionID string
	Source       string
}

// BatchResult pairs one job with its outcome.
type BatchResult struct {
	Job    Job
	Result *Result
	Err    error
}

// EvaluateAll runs jobs through a bounded worker pool and returns outcomes
// in deterministic order (problem then submission), whatever order workers
// finished in.
func (pl *Pipeline) EvaluateAll(ctx context.Context, jobs []Job, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan int)
	results := make([]BatchResult, len(jobs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range queue {
				job := jobs[idx]
				res, err := pl.Evaluate(ctx, job.Problem, job.SubmissionID, job.Source)
				results[idx] = BatchResult{Job: job, Result: res, Err: err}
			}
		}()
	}

	for idx := range jobs {
		select {
		case <-ctx.Done():
			results[idx] = BatchResult{Job: jobs[idx], Err: ctx.Err()}
		case queue <- idx:
		}
	}
	close(queue)
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Job.Problem.ID != results[j].Job.Problem.ID {
			return results[i].Job.Problem.ID < results[j].Job.Problem.ID
		}
		return results[i].Job.SubmissionID < results[j].Job.SubmissionID
	})

	return results
}

func appendUnique(items []string, s string) []string {
	if s == "" {
		return items
	}
	for _, existing := range items {
		if existing == s {
			return items
		}
	}
	return append(items, s)
}
