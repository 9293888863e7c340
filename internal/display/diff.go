package display

import (
	"bufio"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff returns a unified diff of a file's text before and after repair
func UnifiedDiff(path, before, after string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + strings.TrimPrefix(path, "/"),
		ToFile:   "b/" + strings.TrimPrefix(path, "/"),
		Context:  3,
	})
}

func writeColoredDiff(w io.Writer, diff string) {
	sc := bufio.NewScanner(strings.NewReader(diff))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			headerColor.Fprintln(w, line)
		case strings.HasPrefix(line, "@@"):
			dimColor.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			successColor.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			failureColor.Fprintln(w, line)
		default:
			io.WriteString(w, line+"\n")
		}
	}
}
