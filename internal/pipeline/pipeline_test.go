package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lemon07r/truescore/internal/agent"
	"github.com/lemon07r/truescore/internal/analysis"
	"github.com/lemon07r/truescore/internal/config"
	"github.com/lemon07r/truescore/internal/llm"
	"github.com/lemon07r/truescore/internal/problem"
	"github.com/lemon07r/truescore/internal/testrun"
)

// fakeRunner returns a fixed suite result regardless of source.
type fakeRunner struct {
	passed, total int
}

func (f *fakeRunner) RunSuite(ctx context.Context, source string, p *problem.Problem) (*testrun.SuiteResult, error) {
	suite := &testrun.SuiteResult{Total: f.total, Passed: f.passed, Failed: f.total - f.passed}
	for i := 0; i < f.total; i++ {
		outcome := testrun.OutcomePass
		if i >= f.passed {
			outcome = testrun.OutcomeFail
		}
		suite.Cases = append(suite.Cases, testrun.CaseResult{
			Name:    fmt.Sprintf("case_%d", i),
			Outcome: outcome,
		})
	}
	if f.total > 0 {
		suite.PassRate = float64(f.passed) / float64(f.total)
	}
	return suite, nil
}

// fakeLinter returns no findings.
type fakeLinter struct{}

func (fakeLinter) Lint(ctx context.Context, source string) ([]analysis.Finding, string) {
	return nil, ""
}

// panelQuerier answers every judge with the same five-dimension verdict.
type panelQuerier struct {
	correctness float64
}

func (q *panelQuerier) Query(ctx context.Context, system, user string, parse llm.ParseFunc) (string, error) {
	resp := fmt.Sprintf(`{
		"scores": {"correctness": %v, "edge_cases": 7, "complexity": 8, "style": 8, "clarity": 7},
		"reasoning": "grounded in the suite results",
		"issues": ["minor naming"],
		"citations": ["test:case_0", "metric:structure"],
		"confidence": 0.7
	}`, q.correctness)
	if err := parse(resp); err != nil {
		return "", err
	}
	return "panel-model", nil
}

func testConfig() *config.Config {
	cfg := config.Default
	return &cfg
}

func testProblem() *problem.Problem {
	return &problem.Problem{ID: "two-sum", EntryPoint: "two_sum", Complexity: "O(n)",
		Cases: []problem.TestCase{{Name: "case_0", Args: []any{1}, Expected: 1}}}
}

func judgesFor(q agent.Querier) []*agent.Judge {
	return []*agent.Judge{
		agent.NewTestDesigner(q, nil),
		agent.NewCodeReviewer(q, nil),
		agent.NewComplexityAnalyst(q, nil),
	}
}

const submissionSource = `def two_sum(nums):
    """Lookup based solution."""
    seen = {}
    for idx, value in enumerate(nums):
        seen[value] = idx
    return seen
`

func TestEvaluateDeterministicOnly(t *testing.T) {
	t.Parallel()

	pl := New(testConfig(), &fakeRunner{passed: 10, total: 10}, fakeLinter{}, nil, nil)

	res, err := pl.Evaluate(context.Background(), testProblem(), "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if res.LLMAvailable {
		t.Error("LLMAvailable = true without judges")
	}
	if res.FinalScore != res.DeterministicScore {
		t.Errorf("FinalScore = %v, want deterministic %v", res.FinalScore, res.DeterministicScore)
	}
	if res.DetWeight != 1 || res.LLMWeight != 0 {
		t.Errorf("weights = %v/%v, want 1/0", res.DetWeight, res.LLMWeight)
	}
	if res.BlendReason == "" {
		t.Error("fallback must record a blend reason")
	}
	if res.EvidenceFingerprint == "" || res.ID == "" {
		t.Error("missing provenance fields")
	}
}

func TestEvaluateWithJudgePanel(t *testing.T) {
	t.Parallel()

	pl := New(testConfig(), &fakeRunner{passed: 10, total: 10}, fakeLinter{},
		judgesFor(&panelQuerier{correctness: 9}), nil)

	res, err := pl.Evaluate(context.Background(), testProblem(), "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if !res.LLMAvailable {
		t.Fatal("LLMAvailable = false with a full panel")
	}
	if res.DetWeight != 0.6 || res.LLMWeight != 0.4 {
		t.Errorf("weights = %v/%v, want 0.6/0.4", res.DetWeight, res.LLMWeight)
	}
	if len(res.Flags) != 0 {
		t.Errorf("flags = %+v, want none against a clean run", res.Flags)
	}
	if len(res.ModelsUsed) != 1 || res.ModelsUsed[0] != "panel-model" {
		t.Errorf("ModelsUsed = %v", res.ModelsUsed)
	}
	if len(res.SubstitutedDims) != 0 {
		t.Errorf("SubstitutedDims = %v, want none with full coverage", res.SubstitutedDims)
	}
}

func TestEvaluateFlaggedClaimReducesLLMWeight(t *testing.T) {
	t.Parallel()

	// The panel claims correctness 9 while only 3 of 10 cases pass.
	pl := New(testConfig(), &fakeRunner{passed: 3, total: 10}, fakeLinter{},
		judgesFor(&panelQuerier{correctness: 9}), nil)

	res, err := pl.Evaluate(context.Background(), testProblem(), "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(res.Flags) == 0 {
		t.Fatal("expected an audit flag for the contradicted correctness claim")
	}
	if res.LLMWeight != 0.2 {
		t.Errorf("LLMWeight = %v, want penalized 0.2", res.LLMWeight)
	}
	if res.BlendReason == "" {
		t.Error("penalized blend must record its reason")
	}
}

func TestEvaluateAllPreservesDeterministicOrder(t *testing.T) {
	t.Parallel()

	pl := New(testConfig(), &fakeRunner{passed: 1, total: 1}, fakeLinter{}, nil, nil)

	var jobs []Job
	for _, sub := range []string{"carol", "alice", "bob"} {
		jobs = append(jobs, Job{Problem: testProblem(), SubmissionID: sub, Source: submissionSource})
	}

	outcomes := pl.EvaluateAll(context.Background(), jobs, 3)

	want := []string{"alice", "bob", "carol"}
	for i, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("job %d failed: %v", i, out.Err)
		}
		if out.Job.SubmissionID != want[i] {
			t.Errorf("outcome %d = %s, want %s", i, out.Job.SubmissionID, want[i])
		}
	}
}

func TestResultSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	pl := New(testConfig(), &fakeRunner{passed: 1, total: 1}, fakeLinter{}, nil, nil)
	res, err := pl.Evaluate(context.Background(), testProblem(), "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	dir := t.TempDir()
	path, err := res.Save(dir)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadResult(path)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}

	ok, err := loaded.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if !ok {
		t.Error("integrity check failed on an untouched result")
	}
	if loaded.FinalScore != res.FinalScore {
		t.Errorf("FinalScore = %v, want %v", loaded.FinalScore, res.FinalScore)
	}
}

func TestResultIntegrityDetectsTampering(t *testing.T) {
	t.Parallel()

	pl := New(testConfig(), &fakeRunner{passed: 1, total: 1}, fakeLinter{}, nil, nil)
	res, err := pl.Evaluate(context.Background(), testProblem(), "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if err := res.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	res.FinalScore = 10

	ok, err := res.VerifyIntegrity()
	if err != nil {
		t.Fatalf("VerifyIntegrity: %v", err)
	}
	if ok {
		t.Error("integrity check passed on a tampered result")
	}
}

func TestCheckerConsistentSample(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTestProblem(t, base)
	ldr := problem.NewLoader(base)

	pl := New(testConfig(), &fakeRunner{passed: 1, total: 1}, fakeLinter{}, nil, nil)
	p, err := ldr.Load("two-sum")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	res, err := pl.Evaluate(context.Background(), p, "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if err := res.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	checker := NewChecker(pl, ldr, 0, nil)
	report, err := checker.Check(context.Background(), []*Result{res}, 0)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if !report.Pass {
		t.Fatalf("report = %+v, want pass", report.Samples[0])
	}
	s := report.Samples[0]
	if s.DetDiff != 0 || s.FinalDiff != 0 {
		t.Errorf("diffs = %v/%v, want zero", s.DetDiff, s.FinalDiff)
	}
	if !s.FingerprintOK {
		t.Error("evidence fingerprint did not reproduce")
	}
}

func TestCheckerDetectsDrift(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTestProblem(t, base)
	ldr := problem.NewLoader(base)

	pl := New(testConfig(), &fakeRunner{passed: 1, total: 1}, fakeLinter{}, nil, nil)
	p, err := ldr.Load("two-sum")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	res, err := pl.Evaluate(context.Background(), p, "alice", submissionSource)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// Simulate a stored score that no longer matches the evidence.
	res.DeterministicScore += 2
	res.FinalScore += 2
	if err := res.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}

	checker := NewChecker(pl, ldr, 0, nil)
	report, err := checker.Check(context.Background(), []*Result{res}, 0)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if report.Pass {
		t.Error("checker passed a drifted result")
	}
}

func TestCheckerDeterministicSampling(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeTestProblem(t, base)
	ldr := problem.NewLoader(base)
	pl := New(testConfig(), &fakeRunner{passed: 1, total: 1}, fakeLinter{}, nil, nil)

	var results []*Result
	for _, sub := range []string{"zoe", "alice", "bob"} {
		results = append(results, &Result{ProblemID: "two-sum", SubmissionID: sub})
	}

	checker := NewChecker(pl, ldr, 0, nil)
	report, err := checker.Check(context.Background(), results, 2)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if report.Checked != 2 {
		t.Fatalf("Checked = %d, want 2", report.Checked)
	}
	if report.Samples[0].SubmissionID != "alice" || report.Samples[1].SubmissionID != "bob" {
		t.Errorf("sample order = %s, %s; want alice, bob",
			report.Samples[0].SubmissionID, report.Samples[1].SubmissionID)
	}
}

func writeTestProblem(t *testing.T, base string) {
	t.Helper()

	dir := filepath.Join(base, "two-sum")
	if err := os.MkdirAll(filepath.Join(dir, "submissions"), 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := "id: two-sum\nentry_point: two_sum\ncomplexity: O(n)\ncases:\n  - name: case_0\n    args: [1]\n    expected: 1\n"
	if err := os.WriteFile(filepath.Join(dir, "problem.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "submissions", "alice.py"), []byte(submissionSource), 0o644); err != nil {
		t.Fatal(err)
	}
}
