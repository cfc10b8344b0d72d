package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/lemon07r/truescore/internal/analysis"
	"github.com/lemon07r/truescore/internal/evidence"
	"github.com/lemon07r/truescore/internal/llm"
	"github.com/lemon07r/truescore/internal/score"
	"github.com/lemon07r/truescore/internal/testrun"
)

// fakeQuerier feeds a canned response through the judge's parser the way the
// router would.
type fakeQuerier struct {
	response string
	lastUser string
}

func (f *fakeQuerier) Query(ctx context.Context, system, user string, parse llm.ParseFunc) (string, error) {
	f.lastUser = user
	if err := parse(f.response); err != nil {
		return "", err
	}
	return "fake-model", nil
}

func testBundle() *evidence.Bundle {
	return &evidence.Bundle{
		ProblemID:  "two-sum",
		EntryPoint: "two_sum",
		Suite: testrun.SuiteResult{
			Cases: []testrun.CaseResult{
				{Name: "basic", Outcome: testrun.OutcomePass},
				{Name: "empty", Edge: true, Outcome: testrun.OutcomeFail, Message: "expected [], got None"},
			},
			Total: 2, Passed: 1, Failed: 1, PassRate: 0.5,
		},
		EdgeTotal: 1,
		Findings:  []analysis.Finding{{Rule: "E501", Message: "line too long", Line: 3}},
		Metrics:   analysis.SourceMetrics{Lines: 12, FunctionCount: 1},
	}
}

func TestJudgeEvaluateParsesOwnedDimensions(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{response: `{
		"scores": {"correctness": 5, "edge_cases": 3},
		"reasoning": "half the suite fails [test:empty]",
		"issues": ["empty input returns None"],
		"citations": ["test:empty", "test:basic"],
		"confidence": 0.7
	}`}
	j := NewTestDesigner(q, nil)

	judgment, err := j.Evaluate(context.Background(), testBundle(), "def two_sum(): pass")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if judgment.Agent != "test-designer" || judgment.Model != "fake-model" {
		t.Errorf("provenance = %s/%s", judgment.Agent, judgment.Model)
	}
	if judgment.Scores[score.Correctness] != 5 || judgment.Scores[score.EdgeCases] != 3 {
		t.Errorf("scores = %v", judgment.Scores)
	}
	if judgment.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", judgment.Confidence)
	}
}

func TestJudgeEvaluateRejectsMissingDimension(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{response: `{"scores": {"correctness": 5}, "confidence": 0.9}`}
	j := NewTestDesigner(q, nil)

	if _, err := j.Evaluate(context.Background(), testBundle(), "src"); err == nil {
		t.Fatal("expected an error when an owned dimension is missing")
	}
}

func TestJudgeEvaluateClampsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{response: `{
		"scores": {"correctness": 14, "edge_cases": -2},
		"confidence": 1.7
	}`}
	j := NewTestDesigner(q, nil)

	judgment, err := j.Evaluate(context.Background(), testBundle(), "src")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if judgment.Scores[score.Correctness] != 10 {
		t.Errorf("Correctness = %v, want clamped 10", judgment.Scores[score.Correctness])
	}
	if judgment.Scores[score.EdgeCases] != 0 {
		t.Errorf("EdgeCases = %v, want clamped 0", judgment.Scores[score.EdgeCases])
	}
	if judgment.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped 1", judgment.Confidence)
	}
}

func TestJudgeEvaluateAcceptsFencedJSON(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{response: "```json\n{\"scores\": {\"complexity\": 8}, \"confidence\": 0.6}\n```"}
	j := NewComplexityAnalyst(q, nil)

	judgment, err := j.Evaluate(context.Background(), testBundle(), "src")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if judgment.Scores[score.Complexity] != 8 {
		t.Errorf("Complexity = %v, want 8", judgment.Scores[score.Complexity])
	}
}

func TestJudgePromptCarriesEvidenceIdentifiers(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{response: `{"scores": {"correctness": 5, "edge_cases": 5}, "confidence": 0.5}`}
	j := NewTestDesigner(q, nil)

	if _, err := j.Evaluate(context.Background(), testBundle(), "def two_sum(): pass"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	for _, want := range []string{"test:basic", "test:empty", "pass rate 0.50"} {
		if !strings.Contains(q.lastUser, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestMergeAveragesSharedDimensions(t *testing.T) {
	t.Parallel()

	judgments := []Judgment{
		{Agent: "a", Scores: map[score.Dimension]float64{score.Correctness: 8}, Confidence: 0.8},
		{Agent: "b", Scores: map[score.Dimension]float64{score.Correctness: 6}, Confidence: 0.6},
	}

	c := Merge(judgments, 3.0)

	dc := c.Dimensions[score.Correctness]
	if !dc.Available || dc.Value != 7 {
		t.Errorf("correctness consensus = %+v, want mean 7", dc)
	}
	if len(dc.Agents) != 2 {
		t.Errorf("Agents = %v, want both", dc.Agents)
	}
	if c.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", c.Confidence)
	}
	if len(c.UncertaintyFlags) != 0 {
		t.Errorf("unexpected uncertainty flags: %v", c.UncertaintyFlags)
	}
}

func TestMergeWideSpreadFlagsUncertainty(t *testing.T) {
	t.Parallel()

	judgments := []Judgment{
		{Agent: "a", Scores: map[score.Dimension]float64{score.Style: 9}},
		{Agent: "b", Scores: map[score.Dimension]float64{score.Style: 4}},
	}

	c := Merge(judgments, 2.0)

	if len(c.UncertaintyFlags) != 1 {
		t.Fatalf("UncertaintyFlags = %v, want exactly one spread flag", c.UncertaintyFlags)
	}
	if !strings.Contains(c.UncertaintyFlags[0], "style") {
		t.Errorf("flag %q does not name the dimension", c.UncertaintyFlags[0])
	}
}

func TestMergeUnscoredDimensionStaysUnavailable(t *testing.T) {
	t.Parallel()

	judgments := []Judgment{
		{Agent: "a", Scores: map[score.Dimension]float64{score.Correctness: 8}},
	}

	c := Merge(judgments, 2.0)

	if c.Dimensions[score.Style].Available {
		t.Error("style should be unavailable with no judgment covering it")
	}
	if !c.Available() {
		t.Error("consensus with one scored dimension should be available")
	}
}

func TestMergeEmptyIsUnavailable(t *testing.T) {
	t.Parallel()

	c := Merge(nil, 2.0)
	if c.Available() {
		t.Error("empty consensus should be unavailable")
	}
}

func TestMergeDeduplicatesCarriedLists(t *testing.T) {
	t.Parallel()

	judgments := []Judgment{
		{Agent: "a", Scores: map[score.Dimension]float64{score.Correctness: 8}, Issues: []string{"off by one"}, Citations: []string{"test:basic"}},
		{Agent: "b", Scores: map[score.Dimension]float64{score.Style: 7}, Issues: []string{"off by one"}, Citations: []string{"test:basic", "lint:E501"}},
	}

	c := Merge(judgments, 2.0)

	if len(c.Issues) != 1 {
		t.Errorf("Issues = %v, want deduplicated single entry", c.Issues)
	}
	if len(c.Citations) != 2 {
		t.Errorf("Citations = %v, want two unique entries", c.Citations)
	}
}

func TestConsensusVectorSubstitutesUnavailable(t *testing.T) {
	t.Parallel()

	c := Merge([]Judgment{
		{Agent: "a", Scores: map[score.Dimension]float64{score.Correctness: 6}},
	}, 2.0)

	fallback := score.Vector{Correctness: 9, EdgeCases: 8, Complexity: 7, Style: 6, Clarity: 5}
	v, substituted := c.Vector(fallback)

	if v.Correctness != 6 {
		t.Errorf("Correctness = %v, want agent value 6", v.Correctness)
	}
	if v.EdgeCases != 8 || v.Clarity != 5 {
		t.Errorf("substituted values wrong: %+v", v)
	}
	if len(substituted) != 4 {
		t.Errorf("substituted = %v, want the four uncovered dimensions", substituted)
	}
}
