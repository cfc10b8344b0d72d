// Package testrun executes a problem's fixed test suite against a submission
// inside the sandbox and aggregates per-case outcomes into a suite result.
package testrun

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lemon07r/truescore/internal/problem"
	"github.com/lemon07r/truescore/internal/sandbox"
)

// Outcome classifies one test case result.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeError Outcome = "error"
)

// CaseResult is the execution evidence for one (submission, test case) pair.
// Produced once, never mutated afterward.
type CaseResult struct {
	Name    string        `json:"name"`
	Edge    bool          `json:"edge,omitempty"`
	Outcome Outcome       `json:"outcome"`
	Message string        `json:"message,omitempty"`
	Stdout  string        `json:"stdout,omitempty"`
	Stderr  string        `json:"stderr,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Passed reports whether the case passed.
func (c CaseResult) Passed() bool { return c.Outcome == OutcomePass }

// SuiteResult aggregates all case results plus the sandbox verdict for one
// submission run.
type SuiteResult struct {
	Cases    []CaseResult    `json:"cases"`
	Total    int             `json:"total"`
	Passed   int             `json:"passed"`
	Failed   int             `json:"failed"`
	Errors   int             `json:"errors"`
	PassRate float64         `json:"pass_rate"`
	Verdict  sandbox.Verdict `json:"verdict"`
	Elapsed  time.Duration   `json:"elapsed_ns"`
}

// Invoker is the sandbox surface the runner needs. *sandbox.Executor
// satisfies it; tests substitute fakes.
type Invoker interface {
	Scan(source string) []sandbox.Violation
	Run(ctx context.Context, source, entryPoint string, args []any, timeout time.Duration) (*sandbox.Invocation, error)
}

// Runner runs test suites with per-case timeouts and an overall budget.
type Runner struct {
	invoker     Invoker
	caseTimeout time.Duration
	budget      time.Duration
	logger      *slog.Logger
}

// NewRunner creates a test runner. caseTimeout bounds each invocation;
// budget bounds the whole suite.
func NewRunner(invoker Invoker, caseTimeout, budget time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{invoker: invoker, caseTimeout: caseTimeout, budget: budget, logger: logger}
}

// RunSuite executes every declared test case as an independent invocation of
// the sandboxed entry point. Tests run only if the capability scan passes;
// a runtime capability violation terminates the suite immediately. A case
// timeout marks the sandbox verdict timed out, and once the overall budget is
// exhausted all untried cases are recorded as failed-by-timeout. Errors count
// as failures in the pass rate, never excluded.
func (r *Runner) RunSuite(ctx context.Context, source string, p *problem.Problem) (*SuiteResult, error) {
	suite := &SuiteResult{Total: len(p.Cases)}

	if violations := r.invoker.Scan(source); len(violations) > 0 {
		suite.Verdict.CapabilityViolation = true
		suite.Verdict.Capability = violations[0].Capability
		for _, tc := range p.Cases {
			suite.Cases = append(suite.Cases, CaseResult{
				Name:    tc.Name,
				Edge:    tc.Edge,
				Outcome: OutcomeError,
				Message: fmt.Sprintf("not executed: %s", violations[0].Detail),
			})
		}
		r.finish(suite)
		return suite, nil
	}

	started := time.Now()
	deadline := started.Add(r.budget)
	aborted := "" // Non-empty once remaining cases must be filled in unrun.

	for _, tc := range p.Cases {
		if aborted != "" {
			suite.Cases = append(suite.Cases, CaseResult{
				Name:    tc.Name,
				Edge:    tc.Edge,
				Outcome: OutcomeFail,
				Message: aborted,
			})
			continue
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			suite.Verdict.TimedOut = true
			aborted = fmt.Sprintf("failed by timeout: suite budget %s exhausted", r.budget)
			suite.Cases = append(suite.Cases, CaseResult{
				Name:    tc.Name,
				Edge:    tc.Edge,
				Outcome: OutcomeFail,
				Message: aborted,
			})
			continue
		}

		timeout := r.caseTimeout
		if remaining < timeout {
			timeout = remaining
		}

		inv, err := r.invoker.Run(ctx, source, p.EntryPoint, tc.Args, timeout)
		if err != nil {
			return nil, fmt.Errorf("running case %s: %w", tc.Name, err)
		}

		suite.Cases = append(suite.Cases, r.caseResult(tc, inv))

		if inv.TimedOut {
			suite.Verdict.TimedOut = true
		}
		if inv.CapabilityViolation {
			// Fail fast: a submission probing capabilities does not get
			// further invocations.
			suite.Verdict.CapabilityViolation = true
			suite.Verdict.Capability = inv.Capability
			aborted = fmt.Sprintf("not executed: capability violation %s", inv.Capability)
		}
		if inv.ExitStatus != 0 {
			suite.Verdict.ExitStatus = inv.ExitStatus
		}
	}

	suite.Elapsed = time.Since(started)
	r.finish(suite)
	return suite, nil
}

// caseResult maps one invocation onto a case outcome.
func (r *Runner) caseResult(tc problem.TestCase, inv *sandbox.Invocation) CaseResult {
	res := CaseResult{
		Name:    tc.Name,
		Edge:    tc.Edge,
		Stdout:  truncate(inv.Stdout, 1000),
		Stderr:  truncate(inv.Stderr, 1000),
		Elapsed: inv.Elapsed,
	}

	switch {
	case inv.TimedOut:
		res.Outcome = OutcomeFail
		res.Message = inv.Error
	case inv.CapabilityViolation:
		res.Outcome = OutcomeError
		res.Message = fmt.Sprintf("capability violation: %s", inv.Capability)
	case !inv.OK:
		res.Outcome = OutcomeError
		res.Message = inv.Error
	default:
		ok, detail := Match(tc, inv.Result)
		if ok {
			res.Outcome = OutcomePass
		} else {
			res.Outcome = OutcomeFail
			res.Message = detail
		}
	}

	return res
}

// finish computes the aggregate counters. Pass rate is over exactly the
// declared test count.
func (r *Runner) finish(suite *SuiteResult) {
	for _, c := range suite.Cases {
		switch c.Outcome {
		case OutcomePass:
			suite.Passed++
		case OutcomeFail:
			suite.Failed++
		case OutcomeError:
			suite.Errors++
		}
	}
	if suite.Total > 0 {
		suite.PassRate = round4(float64(suite.Passed) / float64(suite.Total))
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
