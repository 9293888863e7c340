package rules

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// Engine applies an ordered list of rules. Each rule sees the text produced by
// the rules before it.
type Engine struct {
	rules []Rule
}

// Result is the outcome of one Engine pass over a text
type Result struct {
	Text    string
	Fixes   int
	PerRule map[string]int
	Failed  []error // rules skipped for this text
}

// NewEngine creates an engine with the given rules in order
func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: append([]Rule(nil), rules...)}
}

// Default returns an engine holding the built-in Swift rule set
func Default() *Engine {
	return NewEngine(SwiftRules()...)
}

// Add appends rules after the existing ones
func (e *Engine) Add(rules ...Rule) {
	e.rules = append(e.rules, rules...)
}

// Rules returns the rules in application order
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Apply runs every rule over text and returns the rewritten text and total edit count
func (e *Engine) Apply(text string) (string, int) {
	res := e.ApplyDetailed(text)
	return res.Text, res.Fixes
}

// ApplyDetailed is Apply with per-rule counts. A rule that errors or panics is
// skipped for this text; the remaining rules still run.
func (e *Engine) ApplyDetailed(text string) Result {
	res := Result{Text: text}
	for _, r := range e.rules {
		out, n, err := safeApply(r, res.Text)
		if err != nil {
			debug.Logger("rules").Warn("rule skipped", zap.String("rule", r.Name()), zap.Error(err))
			res.Failed = append(res.Failed, err)
			continue
		}
		if n == 0 {
			continue
		}
		res.Text = out
		res.Fixes += n
		if res.PerRule == nil {
			res.PerRule = make(map[string]int)
		}
		res.PerRule[r.Name()] += n
	}
	return res
}

// VerifyIdempotent applies the engine to text, then reapplies every rule to the
// result and returns the names of rules that still report edits
func (e *Engine) VerifyIdempotent(text string) []string {
	once, _ := e.Apply(text)
	var drifting []string
	for _, r := range e.rules {
		if _, n, err := safeApply(r, once); err == nil && n > 0 {
			drifting = append(drifting, r.Name())
		}
	}
	if len(drifting) == 0 {
		if _, n := e.Apply(once); n > 0 {
			drifting = append(drifting, "engine")
		}
	}
	return drifting
}

func safeApply(r Rule, text string) (out string, n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, n, err = text, 0, bmerrors.NewRuleError(r.Name(), fmt.Errorf("panic: %v", p))
		}
	}()
	out, n, err = r.Apply(text)
	if err != nil {
		return text, 0, bmerrors.NewRuleError(r.Name(), err)
	}
	return out, n, nil
}
