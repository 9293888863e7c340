package build

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// fatalSymptoms are failure lines that do not always carry an "error:" marker
var fatalSymptoms = []string{
	"undefined symbol",
	"duplicate symbol",
	"unresolved identifier",
	"missing declaration",
}

var (
	diagnosticRe   = regexp.MustCompile(`^(.+?):(\d+):(\d+): (?:fatal )?error: (.*)$`)
	cannotFindRe   = regexp.MustCompile(`cannot find '[^']*' in scope`)
	missingInputRe = regexp.MustCompile(`Build input files? cannot be found: '([^']+)'`)
)

// Diagnostic is one compiler error with a source location
type Diagnostic struct {
	File    string `yaml:"file"`
	Line    int    `yaml:"line"`
	Column  int    `yaml:"column"`
	Message string `yaml:"message"`
}

// Classification is the heuristic reading of a build's output
type Classification struct {
	ErrorCount    int
	Diagnostics   []Diagnostic
	MissingInputs []string
}

// Classify counts error lines in output. A line counts once when it carries
// an "error:" marker or a known fatal symptom. The count is approximate and
// only meant to show whether repairs are helping.
func Classify(output string) Classification {
	var c Classification
	seenInputs := make(map[string]bool)

	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if !isErrorLine(line) {
			continue
		}
		c.ErrorCount++

		if m := diagnosticRe.FindStringSubmatch(line); m != nil {
			ln, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			c.Diagnostics = append(c.Diagnostics, Diagnostic{File: m[1], Line: ln, Column: col, Message: m[4]})
		}
		if m := missingInputRe.FindStringSubmatch(line); m != nil && !seenInputs[m[1]] {
			seenInputs[m[1]] = true
			c.MissingInputs = append(c.MissingInputs, m[1])
		}
	}
	return c
}

func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "error:") {
		return true
	}
	for _, s := range fatalSymptoms {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return cannotFindRe.MatchString(line)
}
