package rules

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var importLineRe = regexp.MustCompile(`^\s*(?:@\w+\s+)*import\s+`)

// ImportRule inserts "import <Module>" when any trigger identifier appears in
// the text and neither the module nor a module that re-exports it is imported.
type ImportRule struct {
	module    string
	impliedBy []string
	triggers  []*regexp.Regexp
	imported  *regexp.Regexp
	implied   []*regexp.Regexp
}

// NewImportRule builds an import rule. Triggers are matched on identifier
// boundaries, so "View" does not fire on "ViewModel".
func NewImportRule(module string, triggers []string, impliedBy ...string) *ImportRule {
	r := &ImportRule{
		module:    module,
		impliedBy: impliedBy,
		imported:  importPattern(module),
	}
	for _, t := range triggers {
		if t == "" {
			continue
		}
		r.triggers = append(r.triggers, regexp.MustCompile(triggerPattern(t)))
	}
	for _, m := range impliedBy {
		r.implied = append(r.implied, importPattern(m))
	}
	return r
}

func (r *ImportRule) Name() string       { return "import-" + strings.ToLower(r.module) }
func (r *ImportRule) Category() Category { return CategoryImport }

// Module returns the module this rule imports
func (r *ImportRule) Module() string { return r.module }

func (r *ImportRule) Apply(text string) (string, int, error) {
	if r.imported.MatchString(text) {
		return text, 0, nil
	}
	for _, re := range r.implied {
		if re.MatchString(text) {
			return text, 0, nil
		}
	}

	triggered := false
	for _, re := range r.triggers {
		if re.MatchString(text) {
			triggered = true
			break
		}
	}
	if !triggered {
		return text, 0, nil
	}

	return insertImport(text, r.module), 1, nil
}

// insertImport places the import after the last import line of the file header,
// or after the leading comment block when the file has no imports
func insertImport(text, module string) string {
	lines := strings.SplitAfter(text, "\n")
	insertAt, lastImport := 0, -1
	for i, line := range lines {
		if importLineRe.MatchString(line) {
			lastImport = i
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			if lastImport < 0 {
				insertAt = i + 1
			}
			continue
		}
		break
	}
	if lastImport >= 0 {
		insertAt = lastImport + 1
	}

	stmt := "import " + module + "\n"
	if prev := lines[max(insertAt-1, 0)]; insertAt > 0 && prev != "" && !strings.HasSuffix(prev, "\n") {
		// Header ends without a newline
		stmt = "\nimport " + module
	}

	var b strings.Builder
	for _, l := range lines[:insertAt] {
		b.WriteString(l)
	}
	b.WriteString(stmt)
	for _, l := range lines[insertAt:] {
		b.WriteString(l)
	}
	return b.String()
}

func importPattern(module string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^\s*(?:@\w+\s+)*import\s+(?:(?:class|struct|enum|protocol|func|var|let|typealias)\s+)?` +
		regexp.QuoteMeta(module) + `(?:\.|\s|$)`)
}

func triggerPattern(trigger string) string {
	p := regexp.QuoteMeta(trigger)
	first, _ := utf8.DecodeRuneInString(trigger)
	last, _ := utf8.DecodeLastRuneInString(trigger)
	if isIdentRune(first) {
		p = `\b` + p
	}
	if isIdentRune(last) {
		p += `\b`
	}
	return p
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
