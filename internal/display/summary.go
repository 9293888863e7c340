// Package display renders repair results for the console and for files.
package display

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/fatih/color"

	"github.com/standardbeagle/buildmend/internal/build"
	"github.com/standardbeagle/buildmend/internal/manifest"
	"github.com/standardbeagle/buildmend/internal/repair"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	headerColor  = color.New(color.Bold)
)

// maxDiagnostics bounds the compiler errors echoed after an abandoned run
const maxDiagnostics = 10

// PrintSummary writes the final state of a run. It never prints nothing:
// every outcome reports its state, files touched and fixes applied.
func PrintSummary(w io.Writer, out *repair.Outcome) {
	if out.Succeeded() {
		successColor.Fprintf(w, "✔ Build repaired")
	} else {
		failureColor.Fprintf(w, "✘ Repair abandoned")
	}
	if out.Project != "" {
		fmt.Fprintf(w, " (%s)", out.Project)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  attempts:      %d\n", len(out.Attempts))
	fmt.Fprintf(w, "  files touched: %d of %d\n", out.FilesTouched, out.FilesDiscovered)
	fmt.Fprintf(w, "  fixes applied: %d\n", out.FixesApplied)
	if out.ManifestChanges > 0 {
		fmt.Fprintf(w, "  manifest:      %d changes\n", out.ManifestChanges)
	}
	fmt.Fprintf(w, "  build errors:  %s\n", errorCount(out.FinalErrors))
	fmt.Fprintf(w, "  elapsed:       %s\n", out.Elapsed.Round(1e6))

	if len(out.Attempts) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "  attempt  before  fixes  after  progress")
		for _, a := range out.Attempts {
			progress := "?"
			if delta, ok := a.Progress(); ok {
				progress = fmt.Sprintf("%+d", delta)
			}
			fmt.Fprintf(w, "  %7d  %6s  %5d  %5s  %8s\n",
				a.Attempt, errorCount(a.ErrorsBefore), a.FixesApplied, errorCount(a.ErrorsAfter), progress)
			for _, p := range a.Oscillating {
				warnColor.Fprintf(w, "           oscillating: %s\n", p)
			}
		}
	}

	for _, b := range out.Backups {
		dimColor.Fprintf(w, "  backup: %s\n", b)
	}
	if out.Error != "" {
		failureColor.Fprintf(w, "  error: %s\n", out.Error)
	}

	if !out.Succeeded() && len(out.Diagnostics) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintln(w, "  remaining errors:")
		for i, d := range out.Diagnostics {
			if i == maxDiagnostics {
				dimColor.Fprintf(w, "    … %d more\n", len(out.Diagnostics)-maxDiagnostics)
				break
			}
			fmt.Fprintf(w, "    %s:%d:%d: %s\n", filepath.Base(d.File), d.Line, d.Column, d.Message)
		}
	}
}

// PrintPreview writes what a dry run would change
func PrintPreview(w io.Writer, p *repair.Preview, diffs bool) error {
	for _, f := range p.Files {
		headerColor.Fprintf(w, "%s", f.Path)
		fmt.Fprintf(w, "  %d fixes, %d orphan closers\n", f.Fixes, f.Removed)
		if len(f.PerRule) > 0 {
			names := make([]string, 0, len(f.PerRule))
			for name := range f.PerRule {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				dimColor.Fprintf(w, "    %-28s %d\n", name, f.PerRule[name])
			}
		}
		if diffs {
			d, err := UnifiedDiff(f.Path, f.Original, f.Updated)
			if err != nil {
				return err
			}
			writeColoredDiff(w, d)
		}
	}

	if len(p.ManifestChanges) > 0 {
		headerColor.Fprintln(w, "manifest changes:")
		for _, c := range p.ManifestChanges {
			fmt.Fprintf(w, "  %s\n", FormatChange(c))
		}
		if diffs {
			d, err := UnifiedDiff("project.pbxproj", p.ManifestBefore, p.ManifestAfter)
			if err != nil {
				return err
			}
			writeColoredDiff(w, d)
		}
	}

	paths := make([]string, 0, len(p.Failed))
	for path := range p.Failed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		warnColor.Fprintf(w, "skipped %s: %v\n", path, p.Failed[path])
	}

	fmt.Fprintf(w, "%d files would change, %d fixes, %d manifest changes\n",
		len(p.Files), p.Fixes(), len(p.ManifestChanges))
	return nil
}

// PrintViolations writes manifest integrity problems, errors first
func PrintViolations(w io.Writer, vs []manifest.Violation) {
	if len(vs) == 0 {
		successColor.Fprintln(w, "✔ manifest is consistent")
		return
	}
	for _, v := range vs {
		c := warnColor
		if v.Severity == manifest.SeverityError {
			c = failureColor
		}
		c.Fprintf(w, "%-7s ", v.Severity)
		fmt.Fprintf(w, "%s %s: %s\n", v.Kind, v.ID, v.Detail)
	}
	fmt.Fprintf(w, "%d problems (%d errors)\n", len(vs), len(manifest.Errors(vs)))
}

// FormatChange renders one planned manifest change
func FormatChange(c manifest.Change) string {
	switch c.Kind {
	case manifest.ChangeAdd:
		return "+ " + c.Path
	case manifest.ChangeRemove:
		return "- " + c.Path + " (" + c.ID + ")"
	case manifest.ChangeRelocate:
		return "~ " + c.Path + " → " + c.NewPath
	}
	return string(c.Kind) + " " + c.Path
}

func errorCount(n int) string {
	if n == build.UnknownErrors {
		return "?"
	}
	return fmt.Sprint(n)
}
