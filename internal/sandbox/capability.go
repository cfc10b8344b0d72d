package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// Violation records one capability the submission attempted to use outside
// its allow-list.
type Violation struct {
	Capability string `json:"capability"` // e.g. "import:os", "builtin:eval"
	Detail     string `json:"detail"`
}

// Builtins a submission may never call. The runtime shim replaces these with
// guards; the static scan catches them before any code runs.
var blockedBuiltins = []string{
	"exec", "eval", "compile", "__import__", "open", "input",
	"breakpoint", "exit", "quit",
}

// Attribute calls that reach process or shell capabilities.
var blockedAttributes = []string{
	"system", "popen", "spawn", "spawnl", "spawnv", "fork", "execv", "execve",
}

var (
	importRe     = regexp.MustCompile(`^\s*import\s+([A-Za-z_][\w.]*)`)
	fromImportRe = regexp.MustCompile(`^\s*from\s+([A-Za-z_][\w.]*)\s+import\b`)
	builtinRe    = regexp.MustCompile(`\b(` + strings.Join(blockedBuiltins, "|") + `)\s*\(`)
	attributeRe  = regexp.MustCompile(`\.(` + strings.Join(blockedAttributes, "|") + `)\s*\(`)
)

// Scan performs the static capability check on submission source. It is a
// lexical scan, not a parse: comments are ignored, and any import outside the
// safe set or any blocked builtin/attribute call is a violation. The runtime
// shim enforces the same rules again during execution.
func Scan(source string, safeImports []string) []Violation {
	safe := make(map[string]bool, len(safeImports))
	for _, m := range safeImports {
		safe[m] = true
	}

	var violations []Violation
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := importRe.FindStringSubmatch(line); m != nil {
			root := strings.SplitN(m[1], ".", 2)[0]
			if !safe[root] {
				violations = append(violations, Violation{
					Capability: "import:" + root,
					Detail:     fmt.Sprintf("blocked import: %s", m[1]),
				})
			}
			continue
		}
		if m := fromImportRe.FindStringSubmatch(line); m != nil {
			root := strings.SplitN(m[1], ".", 2)[0]
			if !safe[root] {
				violations = append(violations, Violation{
					Capability: "import:" + root,
					Detail:     fmt.Sprintf("blocked import from: %s", m[1]),
				})
			}
			continue
		}

		for _, m := range builtinRe.FindAllStringSubmatch(trimmed, -1) {
			violations = append(violations, Violation{
				Capability: "builtin:" + m[1],
				Detail:     fmt.Sprintf("blocked builtin call: %s", m[1]),
			})
		}
		for _, m := range attributeRe.FindAllStringSubmatch(trimmed, -1) {
			violations = append(violations, Violation{
				Capability: "call:" + m[1],
				Detail:     fmt.Sprintf("blocked method call: %s", m[1]),
			})
		}
	}

	return violations
}
