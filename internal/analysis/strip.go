package analysis

import "strings"

// StripComments removes comments and docstrings from Python source. The
// stripped text is what LLM agents see: comments are an injection vector for
// prompt manipulation, so they never reach a prompt.
func StripComments(source string) string {
	lines := strings.Split(source, "\n")
	var cleaned []string

	inDocstring := false
	var docstringDelim string

	for _, line := range lines {
		stripped := strings.TrimSpace(line)

		if inDocstring {
			if strings.Contains(stripped, docstringDelim) {
				inDocstring = false
			}
			continue
		}

		if strings.HasPrefix(stripped, `"""`) || strings.HasPrefix(stripped, "'''") {
			docstringDelim = stripped[:3]
			if strings.Count(stripped, docstringDelim) >= 2 {
				continue // Single-line docstring
			}
			inDocstring = true
			continue
		}

		if strings.Contains(line, "#") {
			if pos := commentStart(line); pos >= 0 {
				line = strings.TrimRight(line[:pos], " \t")
				if strings.TrimSpace(line) == "" {
					continue
				}
			}
		}

		cleaned = append(cleaned, line)
	}

	return strings.Join(cleaned, "\n")
}

// commentStart returns the index of the first '#' outside a string literal,
// or -1 if the line has no comment.
func commentStart(line string) int {
	inQuote := false
	var quoteChar byte

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
		case !inQuote && ch == '#':
			return i
		}
	}
	return -1
}
