// Package rules implements the ordered, idempotent text rewrite pipeline applied to each source file.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// Category groups rules by the kind of defect they repair
type Category string

const (
	CategoryAPI      Category = "api"      // language-API normalization
	CategoryKeyword  Category = "keyword"  // duplicate keyword / attribute collapsing
	CategoryModifier Category = "modifier" // SwiftUI modifier call form
	CategoryWrapper  Category = "wrapper"  // property wrapper visibility
	CategoryImport   Category = "import"   // missing import insertion
	CategoryCustom   Category = "custom"
)

// Rule is a pure text-to-text rewrite. Apply returns the rewritten text and the
// number of edits made. Applying a rule to its own output must report zero edits.
type Rule interface {
	Name() string
	Category() Category
	Apply(text string) (string, int, error)
}

// RegexRule replaces every match of a pattern with an expansion template ($1, ${name})
type RegexRule struct {
	name     string
	category Category
	re       *regexp.Regexp
	replace  string
}

// NewRegexRule compiles pattern and returns a rule, or a RuleError when the pattern is invalid
func NewRegexRule(name string, category Category, pattern, replace string) (*RegexRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, bmerrors.NewRuleError(name, err)
	}
	return &RegexRule{name: name, category: category, re: re, replace: replace}, nil
}

// MustRegexRule is NewRegexRule for built-in rules with constant patterns
func MustRegexRule(name string, category Category, pattern, replace string) *RegexRule {
	r, err := NewRegexRule(name, category, pattern, replace)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RegexRule) Name() string       { return r.name }
func (r *RegexRule) Category() Category { return r.category }

// Apply rewrites each match. A match whose expansion equals the matched text is
// left alone and not counted, so already-correct text reports zero edits.
func (r *RegexRule) Apply(text string) (string, int, error) {
	matches := r.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, 0, nil
	}

	var b strings.Builder
	last, fixes := 0, 0
	for _, m := range matches {
		repl := string(r.re.ExpandString(nil, r.replace, text, m))
		if repl == text[m[0]:m[1]] {
			continue
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(repl)
		last = m[1]
		fixes++
	}
	if fixes == 0 {
		return text, 0, nil
	}
	b.WriteString(text[last:])
	return b.String(), fixes, nil
}

// LiteralRule replaces a fixed string
type LiteralRule struct {
	name     string
	category Category
	from, to string
}

// NewLiteralRule rejects pairs where the replacement contains the search text,
// since such a rule would fire again on its own output.
func NewLiteralRule(name string, category Category, from, to string) (*LiteralRule, error) {
	if from == "" {
		return nil, bmerrors.NewRuleError(name, errors.New("empty search text"))
	}
	if strings.Contains(to, from) {
		return nil, bmerrors.NewRuleError(name, fmt.Errorf("replacement %q contains search text %q", to, from))
	}
	return &LiteralRule{name: name, category: category, from: from, to: to}, nil
}

func (r *LiteralRule) Name() string       { return r.name }
func (r *LiteralRule) Category() Category { return r.category }

// maxLiteralPasses bounds the rewrite of overlapping literal matches
const maxLiteralPasses = 64

// Apply replaces until the search text no longer occurs, so a rule such as
// "final final " -> "final " collapses a run of any length in one call.
func (r *LiteralRule) Apply(text string) (string, int, error) {
	out, total := text, 0
	for pass := 0; pass < maxLiteralPasses; pass++ {
		n := strings.Count(out, r.from)
		if n == 0 {
			return out, total, nil
		}
		out = strings.ReplaceAll(out, r.from, r.to)
		total += n
	}
	return text, 0, bmerrors.NewRuleError(r.name, fmt.Errorf("no fixed point after %d passes", maxLiteralPasses))
}

// FuncRule wraps a hand-written rewrite
type FuncRule struct {
	name     string
	category Category
	fn       func(string) (string, int)
}

// NewFuncRule creates a rule from a rewrite function
func NewFuncRule(name string, category Category, fn func(string) (string, int)) *FuncRule {
	return &FuncRule{name: name, category: category, fn: fn}
}

func (r *FuncRule) Name() string       { return r.name }
func (r *FuncRule) Category() Category { return r.category }

func (r *FuncRule) Apply(text string) (string, int, error) {
	out, n := r.fn(text)
	return out, n, nil
}
