package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lemon07r/truescore/internal/evidence"
	"github.com/lemon07r/truescore/internal/llm"
	"github.com/lemon07r/truescore/internal/score"
)

// Profile defines one judge: its name, the dimensions it owns, and how it
// renders its prompt. Ownership is configuration, not a type property, so
// overlapping panels merge without special cases.
type Profile struct {
	Name   string
	Owns   []score.Dimension
	prompt func(b *evidence.Bundle, excerpt string) string
}

// Querier is the router surface a judge needs.
type Querier interface {
	Query(ctx context.Context, system, user string, parse llm.ParseFunc) (string, error)
}

// Judge scores its owned dimensions through the model router.
type Judge struct {
	profile Profile
	router  Querier
	logger  *slog.Logger
}

// NewTestDesigner judges correctness and edge-case coverage.
func NewTestDesigner(router Querier, logger *slog.Logger) *Judge {
	return newJudge(Profile{
		Name:   "test-designer",
		Owns:   []score.Dimension{score.Correctness, score.EdgeCases},
		prompt: testDesignerPrompt,
	}, router, logger)
}

// NewCodeReviewer judges style and clarity.
func NewCodeReviewer(router Querier, logger *slog.Logger) *Judge {
	return newJudge(Profile{
		Name:   "code-reviewer",
		Owns:   []score.Dimension{score.Style, score.Clarity},
		prompt: codeReviewerPrompt,
	}, router, logger)
}

// NewComplexityAnalyst judges algorithmic complexity.
func NewComplexityAnalyst(router Querier, logger *slog.Logger) *Judge {
	return newJudge(Profile{
		Name:   "complexity-analyst",
		Owns:   []score.Dimension{score.Complexity},
		prompt: complexityAnalystPrompt,
	}, router, logger)
}

func newJudge(p Profile, router Querier, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{profile: p, router: router, logger: logger}
}

// Name returns the judge's profile name.
func (j *Judge) Name() string { return j.profile.Name }

// Owns returns the dimensions this judge scores.
func (j *Judge) Owns() []score.Dimension { return j.profile.Owns }

// rawJudgment mirrors the JSON contract the judges are prompted to emit.
type rawJudgment struct {
	Scores           map[string]float64 `json:"scores"`
	Reasoning        string             `json:"reasoning"`
	Issues           []string           `json:"issues"`
	Suggestions      []string           `json:"suggestions"`
	Citations        []string           `json:"citations"`
	Confidence       float64            `json:"confidence"`
	UncertaintyFlags []string           `json:"uncertainty_flags"`
}

// Evaluate runs the judge over a bundle. The excerpt is the comment-stripped
// submission source. A nil error guarantees a judgment covering every owned
// dimension, clamped to range.
func (j *Judge) Evaluate(ctx context.Context, b *evidence.Bundle, excerpt string) (*Judgment, error) {
	user := j.profile.prompt(b, excerpt)

	var judgment *Judgment
	model, err := j.router.Query(ctx, systemPrompt, user, func(raw string) error {
		parsed, perr := j.parse(raw)
		if perr != nil {
			return perr
		}
		judgment = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("judge %s: %w", j.profile.Name, err)
	}

	judgment.Agent = j.profile.Name
	judgment.Model = model
	j.logger.Debug("judgment accepted", "agent", j.profile.Name, "model", model, "confidence", judgment.Confidence)
	return judgment, nil
}

// parse validates one model response against the judgment contract: JSON
// decodes, every owned dimension present, values in range after clamping.
func (j *Judge) parse(raw string) (*Judgment, error) {
	payload, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var decoded rawJudgment
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("decoding judgment: %w", err)
	}

	scores := make(map[score.Dimension]float64, len(j.profile.Owns))
	for _, dim := range j.profile.Owns {
		v, ok := decoded.Scores[string(dim)]
		if !ok {
			return nil, fmt.Errorf("missing score for %s", dim)
		}
		scores[dim] = score.Clamp(v)
	}

	conf := decoded.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return &Judgment{
		Scores:           scores,
		Reasoning:        decoded.Reasoning,
		Issues:           decoded.Issues,
		Suggestions:      decoded.Suggestions,
		Citations:        decoded.Citations,
		Confidence:       conf,
		UncertaintyFlags: decoded.UncertaintyFlags,
	}, nil
}
