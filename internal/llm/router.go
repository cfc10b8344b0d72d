package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUnavailable reports that every configured model failed every permitted
// attempt. Callers degrade to the deterministic path on this error.
var ErrUnavailable = errors.New("llm: all models unavailable")

// ParseFunc validates and consumes one raw model response. A non-nil error
// marks the response malformed, which earns exactly one re-ask of the same
// model before moving on.
type ParseFunc func(raw string) error

// Router walks an ordered model list. For each model it makes a bounded
// number of transport attempts with exponential backoff; a response that
// arrives but fails to parse gets a single re-ask, then the router moves to
// the next model.
type Router struct {
	provider       Provider
	models         []string
	attempts       int
	initialBackoff time.Duration
	logger         *slog.Logger

	// Sampling parameters applied to every request.
	MaxTokens   int
	Temperature float64
}

// NewRouter creates a router over the given provider and fallback chain.
func NewRouter(provider Provider, models []string, attempts int, initialBackoff time.Duration, logger *slog.Logger) *Router {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		provider:       provider,
		models:         models,
		attempts:       attempts,
		initialBackoff: initialBackoff,
		logger:         logger,
	}
}

// Query runs one prompt through the fallback chain and returns the model
// that produced the accepted response. ErrUnavailable means the chain is
// exhausted.
func (r *Router) Query(ctx context.Context, system, user string, parse ParseFunc) (string, error) {
	var lastErr error

	for _, model := range r.models {
		raw, err := r.complete(ctx, model, system, user)
		if err != nil {
			lastErr = err
			r.logger.Warn("model transport failed", "model", model, "error", err)
			continue
		}

		parseErr := parse(raw)
		if parseErr == nil {
			return model, nil
		}
		r.logger.Warn("model response malformed, re-asking once", "model", model, "error", parseErr)

		// One corrective re-ask: the same prompt plus the parse failure.
		retryUser := user + "\n\nYour previous response could not be parsed: " +
			parseErr.Error() + "\nRespond with ONLY the JSON object, no prose."
		raw, err = r.complete(ctx, model, system, retryUser)
		if err != nil {
			lastErr = err
			continue
		}
		if parseErr = parse(raw); parseErr == nil {
			return model, nil
		}
		lastErr = fmt.Errorf("model %s: malformed after re-ask: %w", model, parseErr)
		r.logger.Warn("model response malformed after re-ask, falling back", "model", model)
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}
	return "", ErrUnavailable
}

// complete makes up to r.attempts transport attempts against one model.
func (r *Router) complete(ctx context.Context, model, system, user string) (string, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(r.initialBackoff),
		), uint64(r.attempts-1)),
		ctx,
	)

	var raw string
	op := func() error {
		var err error
		raw, err = r.provider.Complete(ctx, Request{
			Model:       model,
			System:      system,
			User:        user,
			MaxTokens:   r.MaxTokens,
			Temperature: r.Temperature,
		})
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return raw, nil
}

// ExtractJSON pulls the first JSON object out of a model response. Models
// wrap JSON in prose or code fences often enough that this lives here rather
// than in every parser.
func ExtractJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}

	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		rest := trimmed[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end]), nil
		}
	}
	if idx := strings.Index(trimmed, "```"); idx >= 0 {
		rest := trimmed[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			candidate := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate, nil
			}
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return trimmed[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object in response")
}
