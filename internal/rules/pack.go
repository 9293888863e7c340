package rules

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// Pack is a TOML rule pack. Example:
//
//	[[rule]]
//	name = "legacy-list-style"
//	category = "api"
//	pattern = '\.listStyle\(PlainListStyle\(\)\)'
//	replace = '.listStyle(.plain)'
//
//	[[import]]
//	module = "MapKit"
//	triggers = ["MKMapView", "MapAnnotation"]
type Pack struct {
	Rules   []PackRule   `toml:"rule"`
	Imports []PackImport `toml:"import"`
}

// PackRule is one regex or literal rewrite
type PackRule struct {
	Name     string `toml:"name"`
	Category string `toml:"category"`
	Pattern  string `toml:"pattern"`
	Replace  string `toml:"replace"`
	Literal  bool   `toml:"literal"`
}

// PackImport is one framework import trigger
type PackImport struct {
	Module    string   `toml:"module"`
	Triggers  []string `toml:"triggers"`
	ImpliedBy []string `toml:"implied_by"`
}

// LoadPackFile reads and compiles a TOML rule pack
func LoadPackFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bmerrors.NewFileError("read", path, err)
	}
	rules, err := ParsePack(data)
	if err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", path, err)
	}
	return rules, nil
}

// ParsePack compiles every rule in the pack. Any invalid rule rejects the whole pack.
func ParsePack(data []byte) ([]Rule, error) {
	var pack Pack
	if err := toml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}

	var out []Rule
	var errs []error
	seen := make(map[string]bool)
	for i, pr := range pack.Rules {
		name := pr.Name
		if name == "" {
			name = fmt.Sprintf("pack-rule-%d", i+1)
		}
		if seen[name] {
			errs = append(errs, bmerrors.NewRuleError(name, errors.New("duplicate rule name")))
			continue
		}
		seen[name] = true

		category := Category(pr.Category)
		if category == "" {
			category = CategoryCustom
		}

		var r Rule
		var err error
		switch {
		case pr.Literal:
			r, err = NewLiteralRule(name, category, pr.Pattern, pr.Replace)
		case pr.Pattern == "":
			err = bmerrors.NewRuleError(name, errors.New("empty pattern"))
		default:
			r, err = NewRegexRule(name, category, pr.Pattern, pr.Replace)
		}
		if err == nil {
			err = checkSettles(r, pr.Pattern, pr.Replace)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}

	for _, pi := range pack.Imports {
		if pi.Module == "" || len(pi.Triggers) == 0 {
			errs = append(errs, bmerrors.NewRuleError("import", errors.New("import entries need a module and at least one trigger")))
			continue
		}
		out = append(out, NewImportRule(pi.Module, pi.Triggers, pi.ImpliedBy...))
	}

	if err := bmerrors.NewMultiError(errs).ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// checkSettles runs r over texts built from its own pattern and replacement and
// rejects it when a second application still reports edits.
func checkSettles(r Rule, pattern, replace string) error {
	samples := []string{
		pattern,
		replace,
		pattern + pattern,
		pattern + replace,
		replace + pattern,
		replace + replace,
	}
	for _, sample := range samples {
		once, _, err := r.Apply(sample)
		if err != nil {
			return err
		}
		if _, n, err := r.Apply(once); err != nil || n > 0 {
			return bmerrors.NewRuleError(r.Name(), fmt.Errorf("not idempotent: %q still changes after one pass", sample))
		}
	}
	return nil
}
