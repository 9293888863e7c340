package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/buildmend/internal/manifest"
)

// TreeFormatter formats the manifest's group hierarchy for display
type TreeFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls tree formatting
type FormatterOptions struct {
	Format     string // "text", "compact"
	ShowIDs    bool   // Show object identifiers
	ShowPhases bool   // Show the build phases each file belongs to
	MaxDepth   int    // Maximum depth to display
	Indent     string // Indentation per level, at least one character
}

// NewTreeFormatter creates a new tree formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &TreeFormatter{options: options}
}

// Format formats the group tree rooted at the project's main group
func (tf *TreeFormatter) Format(m *manifest.Manifest) string {
	if m == nil || m.MainGroup() == "" {
		return "No group data available"
	}

	switch tf.options.Format {
	case "compact":
		return tf.formatCompact(m)
	default:
		return tf.formatText(m)
	}
}

// formatText formats the tree as ASCII art
func (tf *TreeFormatter) formatText(m *manifest.Manifest) string {
	var sb strings.Builder

	groups, files := len(m.Groups()), len(m.FileReferences())
	sb.WriteString(fmt.Sprintf("Groups: %d, File references: %d\n\n", groups, files))

	phases := phaseIndex(m)
	tf.formatNode(&sb, m, phases, m.MainGroup(), "", true, true, 0, map[string]bool{})
	return sb.String()
}

// formatNode recursively formats a group or file reference
func (tf *TreeFormatter) formatNode(sb *strings.Builder, m *manifest.Manifest, phases map[string][]string,
	id, prefix string, isLast, isRoot bool, depth int, visiting map[string]bool) {
	// Skip if beyond max depth
	if tf.options.MaxDepth > 0 && depth > tf.options.MaxDepth {
		return
	}

	// Tree branch characters
	var branch string
	if isRoot {
		branch = "→ "
	} else if isLast {
		branch = "└─→ "
	} else {
		branch = "├─→ "
	}

	sb.WriteString(prefix)
	sb.WriteString(branch)

	var children []string
	if g, ok := m.Group(id); ok {
		name := firstNonEmpty(g.Name, g.Path)
		if isRoot && name == "" {
			name = "<main>"
		}
		sb.WriteString(name + "/")
		children = g.Children
	} else if f, ok := m.FileReference(id); ok {
		sb.WriteString(f.DisplayName())
		if tf.options.ShowPhases {
			if names := phases[id]; len(names) > 0 {
				sb.WriteString(" [" + strings.Join(names, ", ") + "]")
			}
		}
	} else {
		sb.WriteString("(missing)")
	}

	if tf.options.ShowIDs {
		sb.WriteString(" " + id)
	}
	sb.WriteString("\n")

	// A group listed inside itself would recurse forever
	if visiting[id] {
		return
	}
	visiting[id] = true
	defer delete(visiting, id)

	childCount := len(children)
	for i, child := range children {
		var childPrefix string
		if isRoot || isLast {
			childPrefix = prefix + tf.options.Indent
		} else {
			childPrefix = prefix + "│" + tf.options.Indent[1:]
		}
		tf.formatNode(sb, m, phases, child, childPrefix, i == childCount-1, false, depth+1, visiting)
	}
}

// formatCompact lists every file reference as a resolved path, one per line
func (tf *TreeFormatter) formatCompact(m *manifest.Manifest) string {
	var lines []string
	for _, f := range m.FileReferences() {
		line := m.ResolvedPath(f.ID)
		if line == "" {
			line = f.DisplayName()
		}
		if tf.options.ShowIDs {
			line = f.ID + " " + line
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// phaseIndex maps each file reference to the names of the phases building it
func phaseIndex(m *manifest.Manifest) map[string][]string {
	out := make(map[string][]string)
	for _, phase := range m.Phases("") {
		for _, bfID := range phase.Files {
			bf, ok := m.BuildFile(bfID)
			if !ok {
				continue
			}
			out[bf.FileRef] = append(out[bf.FileRef], phase.DisplayName())
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
