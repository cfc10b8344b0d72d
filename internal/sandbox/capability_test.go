package sandbox

import "testing"

var safeImports = []string{"math", "collections", "itertools", "functools"}

func TestScanAllowsSafeCode(t *testing.T) {
	t.Parallel()

	source := `import math
from collections import defaultdict

def solve(n):
    return math.sqrt(n)
`
	if v := Scan(source, safeImports); len(v) != 0 {
		t.Errorf("Scan flagged safe code: %+v", v)
	}
}

func TestScanBlockedImports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		source     string
		capability string
	}{
		{"plain import", "import os", "import:os"},
		{"from import", "from subprocess import run", "import:subprocess"},
		{"dotted import", "import os.path", "import:os"},
		{"indented import", "def f():\n    import socket", "import:socket"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Scan(tt.source, safeImports)
			if len(v) != 1 {
				t.Fatalf("Scan returned %d violations, want 1: %+v", len(v), v)
			}
			if v[0].Capability != tt.capability {
				t.Errorf("Capability = %q, want %q", v[0].Capability, tt.capability)
			}
		})
	}
}

func TestScanBlockedBuiltins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		source     string
		capability string
	}{
		{"eval", "x = eval('1+1')", "builtin:eval"},
		{"exec", "exec('pass')", "builtin:exec"},
		{"open", "f = open('/etc/passwd')", "builtin:open"},
		{"dunder import", "__import__('os')", "builtin:__import__"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := Scan(tt.source, safeImports)
			if len(v) == 0 {
				t.Fatal("Scan found no violations")
			}
			if v[0].Capability != tt.capability {
				t.Errorf("Capability = %q, want %q", v[0].Capability, tt.capability)
			}
		})
	}
}

func TestScanBlockedAttributeCalls(t *testing.T) {
	t.Parallel()

	v := Scan("x.system('ls')", safeImports)
	if len(v) != 1 || v[0].Capability != "call:system" {
		t.Errorf("Scan = %+v, want call:system", v)
	}
}

func TestScanIgnoresComments(t *testing.T) {
	t.Parallel()

	source := "# import os would be blocked\nx = 1"
	if v := Scan(source, safeImports); len(v) != 0 {
		t.Errorf("Scan flagged a comment: %+v", v)
	}
}
