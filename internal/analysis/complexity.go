package analysis

import (
	"regexp"
	"strings"
)

var (
	loopRe = regexp.MustCompile(`^(for|while)\b`)
	defRe  = regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)\s*\(`)
)

// MaxLoopNesting returns the maximum loop-nesting depth in Python source,
// derived from indentation. This is a heuristic proxy for asymptotic
// complexity, not a proof: it misreads unconventional indentation and cannot
// see data-dependent iteration counts.
func MaxLoopNesting(source string) int {
	type frame struct {
		indent int
		loop   bool
	}

	var stack []frame
	maxDepth := 0

	for _, raw := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := indentWidth(raw)

		// Close any block at the same or deeper indentation.
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}

		if loopRe.MatchString(trimmed) {
			stack = append(stack, frame{indent: indent, loop: true})
			depth := 0
			for _, f := range stack {
				if f.loop {
					depth++
				}
			}
			if depth > maxDepth {
				maxDepth = depth
			}
		}
	}

	return maxDepth
}

// HasRecursion reports whether any function defined in the source calls
// itself or another locally defined function by name.
func HasRecursion(source string) bool {
	stripped := StripComments(source)

	names := make(map[string]bool)
	for _, m := range defRe.FindAllStringSubmatch(stripped, -1) {
		names[m[1]] = true
	}
	if len(names) == 0 {
		return false
	}

	for _, raw := range strings.Split(stripped, "\n") {
		trimmed := strings.TrimSpace(raw)
		if defRe.MatchString(raw) {
			continue
		}
		for name := range names {
			if strings.Contains(trimmed, name+"(") {
				return true
			}
		}
	}
	return false
}

// HasMemoization reports whether the source shows any memoization signal.
func HasMemoization(source string) bool {
	for _, marker := range []string{"memo", "cache", "lru_cache", "@cache"} {
		if strings.Contains(source, marker) {
			return true
		}
	}
	return false
}

// indentWidth counts leading whitespace, tabs as 8 columns.
func indentWidth(line string) int {
	width := 0
	for _, ch := range line {
		switch ch {
		case ' ':
			width++
		case '\t':
			width += 8
		default:
			return width
		}
	}
	return width
}
