// Package sandbox executes untrusted submission code in a restricted,
// timeout-bounded subprocess. Isolation is capability- and timeout-based:
// a static scan rejects blocked imports and builtins before anything runs,
// a runtime shim enforces the same allow-list during execution, and a hard
// wall-clock deadline kills the whole process group. Submissions are
// adversarial by assumption, so cancellation is a forced kill, never
// cooperative.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Verdict summarizes sandbox-level outcomes for one submission run.
type Verdict struct {
	TimedOut            bool   `json:"timed_out"`
	CapabilityViolation bool   `json:"capability_violation"`
	Capability          string `json:"capability,omitempty"` // First violated capability
	ExitStatus          int    `json:"exit_status"`
}

// Invocation is the raw outcome of one sandboxed entry-point call.
type Invocation struct {
	Stdout              string
	Stderr              string
	ExitStatus          int
	Elapsed             time.Duration
	TimedOut            bool
	CapabilityViolation bool
	Capability          string

	// Decoded shim result. OK means the entry point returned a value.
	OK     bool
	Result any
	Error  string
}

// Executor runs submission entry points inside the sandbox.
type Executor struct {
	python      string
	safeImports []string
	logger      *slog.Logger
}

// NewExecutor creates an executor using the given Python interpreter and
// import allow-list.
func NewExecutor(python string, safeImports []string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{python: python, safeImports: safeImports, logger: logger}
}

// Scan performs the pre-execution capability check. A non-empty result means
// the submission must not be executed at all (fail-fast, not fail-open).
func (e *Executor) Scan(source string) []Violation {
	return Scan(source, e.safeImports)
}

// Run invokes the submission's entry point once with the given arguments
// under a hard wall-clock timeout. Execution faults (submission errors,
// timeout, capability violations) are captured on the Invocation, never
// returned as a Go error; the error return covers only harness-side
// failures such as an unwritable scratch directory.
func (e *Executor) Run(ctx context.Context, source, entryPoint string, args []any, timeout time.Duration) (*Invocation, error) {
	scratch, err := os.MkdirTemp("", "truescore-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	subPath := filepath.Join(scratch, "submission.py")
	if err := os.WriteFile(subPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("writing submission: %w", err)
	}
	shimPath := filepath.Join(scratch, "shim.py")
	if err := os.WriteFile(shimPath, []byte(shimSource), 0o644); err != nil {
		return nil, fmt.Errorf("writing shim: %w", err)
	}

	safeJSON, err := json.Marshal(e.safeImports)
	if err != nil {
		return nil, fmt.Errorf("encoding safe imports: %w", err)
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.python, shimPath, subPath, entryPoint, string(safeJSON), string(argsJSON))
	cmd.Dir = scratch
	// Scrub the environment: the submission gets no inherited secrets.
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + scratch,
		"PYTHONDONTWRITEBYTECODE=1",
	}
	setupProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	inv := &Invocation{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: elapsed,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		inv.TimedOut = true
		inv.Error = fmt.Sprintf("execution timed out after %s", timeout)
		e.logger.Debug("sandbox run timed out", "entry", entryPoint, "timeout", timeout)
		return inv, nil
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			inv.ExitStatus = exitErr.ExitCode()
		} else {
			// Interpreter missing or not startable is a harness fault.
			return nil, fmt.Errorf("starting sandbox process: %w", runErr)
		}
	}

	e.decodeResult(inv)
	return inv, nil
}

// decodeResult parses the shim's structured payload out of stdout.
func (e *Executor) decodeResult(inv *Invocation) {
	idx := strings.LastIndex(inv.Stdout, resultMarker)
	if idx < 0 {
		if inv.Error == "" {
			msg := strings.TrimSpace(inv.Stderr)
			if msg == "" {
				msg = "sandbox produced no result"
			}
			if len(msg) > 500 {
				msg = msg[:500]
			}
			inv.Error = msg
		}
		return
	}

	payload := strings.TrimSpace(inv.Stdout[idx+len(resultMarker):])
	// Keep only what the submission printed before the marker.
	inv.Stdout = inv.Stdout[:idx]

	var decoded struct {
		OK         bool   `json:"ok"`
		Result     any    `json:"result"`
		Error      string `json:"error"`
		Capability string `json:"capability"`
	}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		inv.Error = "sandbox result was not decodable"
		return
	}

	inv.OK = decoded.OK
	inv.Result = decoded.Result
	inv.Error = decoded.Error
	if decoded.Capability != "" {
		inv.CapabilityViolation = true
		inv.Capability = decoded.Capability
	}
}
