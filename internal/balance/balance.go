// Package balance removes orphaned closing braces from source text.
//
// The scan is line based and does not understand strings or comments. Only a
// line whose sole content is "}" can be removed, and only when the running
// depth says nothing is open. Missing closers are never added.
package balance

import "strings"

// Balance drops standalone "}" lines that close nothing and returns the new
// text with the number of lines removed. Line endings are preserved.
func Balance(text string) (string, int) {
	lines := strings.Split(text, "\n")
	kept, removed := scan(lines)
	if len(removed) == 0 {
		return text, 0
	}
	return strings.Join(kept, "\n"), len(removed)
}

// Orphans returns the 1-based line numbers Balance would remove
func Orphans(text string) []int {
	_, removed := scan(strings.Split(text, "\n"))
	return removed
}

// Counts returns the number of opening and closing braces in text
func Counts(text string) (opens, closes int) {
	return strings.Count(text, "{"), strings.Count(text, "}")
}

func scan(lines []string) (kept []string, removed []int) {
	kept = make([]string, 0, len(lines))
	depth := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "}" {
			if depth > 0 {
				depth--
				kept = append(kept, line)
			} else {
				removed = append(removed, i+1)
			}
			continue
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		kept = append(kept, line)
	}
	return kept, removed
}
