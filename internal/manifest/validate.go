package manifest

import (
	"fmt"
	"sort"

	"howett.net/plist"
)

// Severity of an integrity violation
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation kinds
const (
	KindDuplicateID         = "duplicate-id"
	KindDanglingPhaseMember = "dangling-phase-member"
	KindDanglingBuildFile   = "dangling-build-file"
	KindDanglingGroupChild  = "dangling-group-child"
	KindUngroupedReference  = "ungrouped-reference"
	KindMultiplyGrouped     = "multiply-grouped"
	KindUnrooted            = "unrooted"
	KindRepeatedGroupChild  = "repeated-group-child"
)

// Violation is one broken cross-reference in the manifest
type Violation struct {
	Kind     string   `yaml:"kind"`
	ID       string   `yaml:"id"`
	Detail   string   `yaml:"detail"`
	Severity Severity `yaml:"severity"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s %s: %s", v.Severity, v.Kind, v.ID, v.Detail)
}

func (v Violation) key() string { return v.Kind + "/" + v.ID + "/" + v.Detail }

// Validate checks the linked tables. Errors are dangling or duplicated
// identifiers; warnings are file references outside a single rooted group chain.
func (m *Manifest) Validate() []Violation {
	var out []Violation
	add := func(sev Severity, kind, id, format string, args ...interface{}) {
		out = append(out, Violation{Kind: kind, ID: id, Detail: fmt.Sprintf(format, args...), Severity: sev})
	}

	if objects, ok := m.root.byKey["objects"]; ok && objects.val.dict != nil {
		for _, dup := range objects.val.dict.dups {
			add(SeverityError, KindDuplicateID, dup, "object defined more than once")
		}
	}

	for _, p := range m.Phases("") {
		for _, member := range p.Files {
			if _, ok := m.buildFiles[member]; !ok {
				add(SeverityError, KindDanglingPhaseMember, member, "listed in %s phase %s but no build file exists", p.DisplayName(), p.ID)
			}
		}
	}

	for _, id := range m.order {
		b, ok := m.buildFiles[id]
		if !ok || b.FileRef == "" {
			continue // package product build files carry productRef instead
		}
		if _, ok := m.objects[b.FileRef]; !ok {
			add(SeverityError, KindDanglingBuildFile, b.ID, "wraps missing file reference %s", b.FileRef)
		}
	}

	for _, g := range m.Groups() {
		listed := make(map[string]bool, len(g.Children))
		for _, child := range g.Children {
			if _, ok := m.objects[child]; !ok {
				add(SeverityError, KindDanglingGroupChild, child, "listed in group %s but not defined", g.ID)
			}
			if listed[child] {
				add(SeverityWarning, KindRepeatedGroupChild, child, "listed more than once in group %s", g.ID)
			}
			listed[child] = true
		}
	}

	for _, f := range m.FileReferences() {
		parents := m.parents[f.ID]
		switch {
		case len(parents) == 0:
			add(SeverityWarning, KindUngroupedReference, f.ID, "%s is not in any group", f.DisplayName())
		case len(parents) > 1:
			add(SeverityWarning, KindMultiplyGrouped, f.ID, "%s is in %d groups", f.DisplayName(), len(parents))
		default:
			if m.mainGroup != "" && !m.rooted(f.ID) {
				add(SeverityWarning, KindUnrooted, f.ID, "%s is not reachable from the main group", f.DisplayName())
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity == SeverityError
		}
		return false
	})
	return out
}

// Errors returns only error-severity violations
func Errors(vs []Violation) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Severity == SeverityError {
			out = append(out, v)
		}
	}
	return out
}

func (m *Manifest) rooted(id string) bool {
	seen := map[string]bool{}
	current := id
	for !seen[current] {
		seen[current] = true
		if current == m.mainGroup {
			return true
		}
		parents := m.parents[current]
		if len(parents) == 0 {
			return false
		}
		current = parents[0]
	}
	return false
}

// CheckSyntax parses the whole document as an OpenStep property list,
// independently of the span-tracking parser used for edits
func (m *Manifest) CheckSyntax() error {
	return checkSyntax(m.text)
}

func checkSyntax(text string) error {
	var doc map[string]interface{}
	if _, err := plist.Unmarshal([]byte(text), &doc); err != nil {
		return fmt.Errorf("property list syntax: %w", err)
	}
	if _, ok := doc["objects"]; !ok {
		return fmt.Errorf("property list syntax: no objects dictionary")
	}
	return nil
}
