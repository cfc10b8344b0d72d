package analysis

import (
	"regexp"
	"strings"
)

// SourceMetrics are structural signals derived from submission source. They
// are the only evidence backing the clarity dimension (and part of style),
// which is why they travel on the evidence bundle: the rubric engine stays a
// pure function of the bundle, and the auditor can see that clarity has no
// execution evidence behind it.
type SourceMetrics struct {
	Lines              int  `json:"lines"`
	CommentLines       int  `json:"comment_lines"`
	LongLines          int  `json:"long_lines"` // Lines over 100 characters
	HasDocstring       bool `json:"has_docstring"`
	FunctionCount      int  `json:"function_count"`
	ShortNameFunctions int  `json:"short_name_functions"` // Function names of 1-2 characters
	SingleCharNames    int  `json:"single_char_names"`    // Uses of unidiomatic single-letter names
	MaxLoopNesting     int  `json:"max_loop_nesting"`
	Recursive          bool `json:"recursive"`
	Memoized           bool `json:"memoized"`
}

// Single-letter names conventionally acceptable in tight scopes.
var acceptableShortNames = map[string]bool{
	"i": true, "j": true, "k": true, "n": true, "x": true, "y": true,
	"v": true, "e": true, "f": true, "s": true, "t": true, "q": true,
	"_": true,
}

var identRe = regexp.MustCompile(`\b[A-Za-z_]\b`)

// ComputeMetrics derives all structural metrics from source in one pass
// per signal. Deterministic by construction.
func ComputeMetrics(source string) SourceMetrics {
	trimmed := strings.TrimSpace(source)
	lines := strings.Split(trimmed, "\n")

	m := SourceMetrics{
		Lines:          len(lines),
		HasDocstring:   strings.Contains(source, `"""`) || strings.Contains(source, "'''"),
		MaxLoopNesting: MaxLoopNesting(source),
		Recursive:      HasRecursion(source),
		Memoized:       HasMemoization(source),
	}
	if trimmed == "" {
		m.Lines = 0
		return m
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			m.CommentLines++
		}
		if len(line) > 100 {
			m.LongLines++
		}
	}

	stripped := StripComments(source)
	for _, match := range defRe.FindAllStringSubmatch(stripped, -1) {
		m.FunctionCount++
		if len(match[1]) <= 2 {
			m.ShortNameFunctions++
		}
	}

	for _, ident := range identRe.FindAllString(stripped, -1) {
		if !acceptableShortNames[ident] {
			m.SingleCharNames++
		}
	}

	return m
}
