package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

// requirePython skips tests on machines without a Python interpreter.
func requirePython(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available, skipping sandbox execution test")
	}
	return path
}

func TestRunReturnsEntryPointResult(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	e := NewExecutor(python, safeImports, nil)
	source := "def add(a, b):\n    return a + b\n"

	inv, err := e.Run(context.Background(), source, "add", []any{2, 3}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !inv.OK {
		t.Fatalf("OK = false, error %q, stderr %q", inv.Error, inv.Stderr)
	}
	if got, ok := inv.Result.(float64); !ok || got != 5 {
		t.Errorf("Result = %v, want 5", inv.Result)
	}
}

func TestRunCapturesSubmissionError(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	e := NewExecutor(python, safeImports, nil)
	source := "def boom(x):\n    return 1 // x\n"

	inv, err := e.Run(context.Background(), source, "boom", []any{0}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if inv.OK {
		t.Fatal("OK = true, want captured exception")
	}
	if inv.Error == "" {
		t.Error("expected the exception message on the invocation")
	}
}

func TestRunKillsOnTimeout(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	e := NewExecutor(python, safeImports, nil)
	source := "def spin(n):\n    while True:\n        pass\n"

	started := time.Now()
	inv, err := e.Run(context.Background(), source, "spin", []any{1}, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !inv.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("kill took %s, the process group was not terminated promptly", elapsed)
	}
}

func TestRunBlocksRuntimeImport(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	e := NewExecutor(python, safeImports, nil)
	// The static scan cannot see through getattr-style indirection, but the
	// shim's import guard fires at runtime.
	source := "def sneak(x):\n    mod = __import__('o' + 's')\n    return mod.getcwd()\n"

	inv, err := e.Run(context.Background(), source, "sneak", []any{1}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if inv.OK {
		t.Fatal("OK = true, want capability violation")
	}
}

func TestRunMissingEntryPoint(t *testing.T) {
	t.Parallel()
	python := requirePython(t)

	e := NewExecutor(python, safeImports, nil)
	inv, err := e.Run(context.Background(), "x = 1\n", "solve", []any{1}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if inv.OK {
		t.Fatal("OK = true for a submission without the entry point")
	}
	if inv.Error == "" {
		t.Error("expected an error naming the missing entry point")
	}
}

func TestRunMissingInterpreterIsHarnessError(t *testing.T) {
	t.Parallel()

	e := NewExecutor("definitely-not-a-python-binary", safeImports, nil)
	if _, err := e.Run(context.Background(), "def f(x):\n    return x\n", "f", []any{1}, time.Second); err == nil {
		t.Fatal("expected a harness-side error for a missing interpreter")
	}
}
