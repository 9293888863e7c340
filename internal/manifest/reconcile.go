package manifest

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// ChangeKind is the kind of a planned manifest change
type ChangeKind string

const (
	ChangeAdd      ChangeKind = "add"
	ChangeRemove   ChangeKind = "remove"
	ChangeRelocate ChangeKind = "relocate"
)

// Change is one planned manifest edit. Paths are relative to the project directory.
type Change struct {
	Kind    ChangeKind `yaml:"kind"`
	ID      string     `yaml:"id,omitempty"`
	Path    string     `yaml:"path"`
	NewPath string     `yaml:"new_path,omitempty"`
}

// DefaultMinSimilarity is the Jaro-Winkler score a renamed file needs to be
// matched with a dangling reference
const DefaultMinSimilarity = 0.8

// Reconciler cross-references manifest file references with files on disk
type Reconciler struct {
	// ProjectDir is the directory holding the .xcodeproj bundle
	ProjectDir    string
	Extensions    []string
	MinSimilarity float32
}

// NewReconciler returns a reconciler managing .swift files under projectDir
func NewReconciler(projectDir string) *Reconciler {
	return &Reconciler{
		ProjectDir:    projectDir,
		Extensions:    []string{".swift"},
		MinSimilarity: DefaultMinSimilarity,
	}
}

func (r *Reconciler) managed(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range r.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (r *Reconciler) rel(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		return path.Clean(filepath.ToSlash(p)), true
	}
	rel, err := filepath.Rel(r.ProjectDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Plan lists the changes that bring the manifest in line with onDisk. A
// reference is dangling when its file is missing or the build reported it as a
// missing input. Dangling references are relocated to a same-named or similar
// unreferenced file, otherwise removed; remaining unreferenced files are added.
func (r *Reconciler) Plan(m *Manifest, onDisk, missingInputs []string) []Change {
	missing := make(map[string]bool)
	for _, p := range missingInputs {
		if rel, ok := r.rel(p); ok {
			missing[rel] = true
		}
	}

	referenced := make(map[string]bool)
	var dangling []*FileReference
	for _, f := range m.FileReferences() {
		if f.SourceTree != "<group>" && f.SourceTree != "SOURCE_ROOT" {
			continue
		}
		resolved := m.ResolvedPath(f.ID)
		referenced[resolved] = true
		if !r.managed(resolved) && !missing[resolved] {
			continue
		}
		if missing[resolved] || !r.exists(resolved) {
			dangling = append(dangling, f)
		}
	}

	synced := m.SyncedDirectories()
	var unreferenced []string
	seen := make(map[string]bool)
	for _, p := range onDisk {
		rel, ok := r.rel(p)
		if !ok || seen[rel] || referenced[rel] || !r.managed(rel) || underAny(rel, synced) {
			continue
		}
		seen[rel] = true
		unreferenced = append(unreferenced, rel)
	}
	sort.Strings(unreferenced)

	var changes []Change
	taken := make(map[string]bool)
	for _, f := range dangling {
		resolved := m.ResolvedPath(f.ID)
		if target, ok := r.match(resolved, unreferenced, taken); ok {
			taken[target] = true
			changes = append(changes, Change{Kind: ChangeRelocate, ID: f.ID, Path: resolved, NewPath: target})
			continue
		}
		changes = append(changes, Change{Kind: ChangeRemove, ID: f.ID, Path: resolved})
	}
	for _, p := range unreferenced {
		if !taken[p] {
			changes = append(changes, Change{Kind: ChangeAdd, Path: p})
		}
	}
	return changes
}

// match finds the unreferenced file a dangling reference most likely moved to
func (r *Reconciler) match(resolved string, candidates []string, taken map[string]bool) (string, bool) {
	base := path.Base(resolved)
	for _, c := range candidates {
		if !taken[c] && path.Base(c) == base {
			return c, true
		}
	}

	best, bestScore := "", float32(0)
	for _, c := range candidates {
		if taken[c] || path.Ext(c) != path.Ext(resolved) {
			continue
		}
		score, err := edlib.StringsSimilarity(base, path.Base(c), edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if best != "" && bestScore >= r.MinSimilarity {
		return best, true
	}
	return "", false
}

func (r *Reconciler) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(r.ProjectDir, filepath.FromSlash(rel)))
	return err == nil
}

func underAny(rel string, dirs []string) bool {
	for _, d := range dirs {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}

// Apply performs the planned changes in order. A failed change is skipped and
// reported; the others still apply. Returns the number applied.
func (r *Reconciler) Apply(m *Manifest, changes []Change) (int, error) {
	log := debug.Logger("manifest")
	applied := 0
	var errs []error
	for _, c := range changes {
		var err error
		switch c.Kind {
		case ChangeAdd:
			var id string
			id, err = m.AddSourceFile(c.Path)
			if err == nil {
				log.Info("added file reference", zap.String("path", c.Path), zap.String("id", id))
			}
		case ChangeRemove:
			err = m.RemoveFileReference(c.ID)
			if err == nil {
				log.Info("removed dangling reference", zap.String("path", c.Path), zap.String("id", c.ID))
			}
		case ChangeRelocate:
			err = m.RelocateFileReference(c.ID, c.NewPath)
			if err == nil {
				log.Info("relocated reference", zap.String("from", c.Path), zap.String("to", c.NewPath))
			}
		}
		if err != nil {
			log.Warn("manifest change skipped", zap.String("kind", string(c.Kind)), zap.String("path", c.Path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		applied++
	}
	return applied, bmerrors.NewMultiError(errs).ErrorOrNil()
}
