package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// scriptedProvider returns canned responses per model, in call order.
type scriptedProvider struct {
	responses map[string][]string
	errs      map[string]error
	calls     []string
}

func (p *scriptedProvider) Complete(ctx context.Context, req Request) (string, error) {
	p.calls = append(p.calls, req.Model)
	if err, ok := p.errs[req.Model]; ok {
		return "", err
	}
	queue := p.responses[req.Model]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted response for %s", req.Model)
	}
	resp := queue[0]
	p.responses[req.Model] = queue[1:]
	return resp, nil
}

func acceptJSON(raw string) error {
	if _, err := ExtractJSON(raw); err != nil {
		return err
	}
	return nil
}

func TestQueryFirstModelSucceeds(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: map[string][]string{
		"model-a": {`{"ok": true}`},
	}}
	r := NewRouter(provider, []string{"model-a", "model-b"}, 1, time.Millisecond, nil)

	model, err := r.Query(context.Background(), "sys", "user", acceptJSON)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if model != "model-a" {
		t.Errorf("model = %q, want model-a", model)
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider called %d times, want 1", len(provider.calls))
	}
}

func TestQueryMalformedResponseGetsOneReAsk(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: map[string][]string{
		"model-a": {"no json here", `{"ok": true}`},
	}}
	r := NewRouter(provider, []string{"model-a"}, 1, time.Millisecond, nil)

	model, err := r.Query(context.Background(), "sys", "user", acceptJSON)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if model != "model-a" {
		t.Errorf("model = %q, want model-a after re-ask", model)
	}
	if len(provider.calls) != 2 {
		t.Errorf("provider called %d times, want 2 (original + one re-ask)", len(provider.calls))
	}
}

func TestQueryMalformedTwiceFallsToNextModel(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: map[string][]string{
		"model-a": {"garbage", "still garbage"},
		"model-b": {`{"ok": true}`},
	}}
	r := NewRouter(provider, []string{"model-a", "model-b"}, 1, time.Millisecond, nil)

	model, err := r.Query(context.Background(), "sys", "user", acceptJSON)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if model != "model-b" {
		t.Errorf("model = %q, want fallback model-b", model)
	}
}

func TestQueryTransportErrorSkipsToNextModel(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{
		responses: map[string][]string{"model-b": {`{"ok": true}`}},
		errs:      map[string]error{"model-a": errors.New("connection refused")},
	}
	r := NewRouter(provider, []string{"model-a", "model-b"}, 1, time.Millisecond, nil)

	model, err := r.Query(context.Background(), "sys", "user", acceptJSON)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if model != "model-b" {
		t.Errorf("model = %q, want model-b", model)
	}
}

func TestQueryExhaustedChainIsUnavailable(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{errs: map[string]error{
		"model-a": errors.New("down"),
		"model-b": errors.New("down"),
	}}
	r := NewRouter(provider, []string{"model-a", "model-b"}, 1, time.Millisecond, nil)

	_, err := r.Query(context.Background(), "sys", "user", acceptJSON)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestQueryRetriesTransportFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	provider := providerFunc(func(ctx context.Context, req Request) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("flaky")
		}
		return `{"ok": true}`, nil
	})
	r := NewRouter(provider, []string{"model-a"}, 3, time.Millisecond, nil)

	if _, err := r.Query(context.Background(), "sys", "user", acceptJSON); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

type providerFunc func(ctx context.Context, req Request) (string, error)

func (f providerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"leading whitespace", "\n  {\"a\": 1}", `{"a": 1}`, false},
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"embedded in prose", `The answer is {"a": 1} as requested.`, `{"a": 1}`, false},
		{"no object at all", "I cannot help with that.", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractJSON(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractJSON = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON = %q, want %q", got, tt.want)
			}
		})
	}
}
