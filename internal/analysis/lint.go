// Package analysis provides the static-analysis stage: an external linter
// adapter, a loop-nesting complexity heuristic, and structural source
// metrics. All outputs feed the evidence bundle as structured findings,
// never raw text diffs.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// Finding is one linter diagnostic with a stable rule identifier.
type Finding struct {
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
}

// Linter runs an external linter (ruff by default) over submission source.
// The linter is a replaceable collaborator: any failure of the tool itself
// yields zero findings plus a warning, never a pipeline failure.
type Linter struct {
	command string
	args    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewLinter creates a linter adapter.
func NewLinter(command string, args []string, timeout time.Duration, logger *slog.Logger) *Linter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linter{command: command, args: args, timeout: timeout, logger: logger}
}

// ruffFinding mirrors one entry of ruff's JSON output.
type ruffFinding struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location struct {
		Row    int `json:"row"`
		Column int `json:"column"`
	} `json:"location"`
}

// Lint runs the linter on the given source. The returned warning is non-empty
// when the tool itself failed; findings are then empty and the caller records
// the warning on the evidence bundle.
func (l *Linter) Lint(ctx context.Context, source string) (findings []Finding, warning string) {
	tmp, err := os.MkdirTemp("", "truescore-lint-*")
	if err != nil {
		return nil, fmt.Sprintf("linter scratch dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	path := filepath.Join(tmp, "submission.py")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return nil, fmt.Sprintf("writing linter input: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	args := append(append([]string{}, l.args...), path)
	cmd := exec.CommandContext(runCtx, l.command, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	// Ruff exits non-zero when findings exist; only a missing binary or
	// timeout is a tool failure.
	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		l.logger.Warn("linter timed out", "command", l.command, "timeout", l.timeout)
		return nil, fmt.Sprintf("linter timed out after %s", l.timeout)
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			l.logger.Warn("linter unavailable", "command", l.command, "error", runErr)
			return nil, fmt.Sprintf("linter unavailable: %v", runErr)
		}
	}

	raw := bytes.TrimSpace(stdout.Bytes())
	if len(raw) == 0 {
		return nil, ""
	}

	var decoded []ruffFinding
	if err := json.Unmarshal(raw, &decoded); err != nil {
		l.logger.Warn("linter output not decodable", "command", l.command, "error", err)
		return nil, "linter produced undecodable output"
	}

	for _, f := range decoded {
		rule := f.Code
		if rule == "" {
			rule = "unknown"
		}
		findings = append(findings, Finding{
			Rule:     rule,
			Message:  f.Message,
			Line:     f.Location.Row,
			Column:   f.Location.Column,
			Severity: "warning",
		})
	}

	// Stable ordering keeps the evidence bundle reproducible regardless of
	// tool-side ordering quirks.
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		if findings[i].Column != findings[j].Column {
			return findings[i].Column < findings[j].Column
		}
		return findings[i].Rule < findings[j].Rule
	})

	return findings, ""
}
