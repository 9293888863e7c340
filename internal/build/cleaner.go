package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/debug"
)

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`, "{", `\{`, "}", `\}`)

// Cleaner removes the product's DerivedData folders between attempts.
// It is best-effort: nothing it hits is reported as an error.
type Cleaner struct {
	Enabled     bool
	DerivedData string
	Product     string
}

// NewCleaner creates a cleaner for cfg
func NewCleaner(cfg *config.Config) *Cleaner {
	dir := cfg.Cleanup.DerivedData
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, "Library", "Developer", "Xcode", "DerivedData")
		}
	}
	return &Cleaner{Enabled: cfg.Cleanup.Enabled, DerivedData: dir, Product: cfg.Project.Name}
}

// Clean removes <DerivedData>/<Product>-* and returns how many folders went away
func (c *Cleaner) Clean() int {
	if !c.Enabled || c.DerivedData == "" || c.Product == "" {
		return 0
	}
	log := debug.Logger("cleanup")

	pattern := globEscaper.Replace(c.Product) + "-*"
	matches, err := doublestar.Glob(os.DirFS(c.DerivedData), pattern)
	if err != nil {
		log.Debug("glob failed", zap.String("pattern", pattern), zap.Error(err))
		return 0
	}

	removed := 0
	for _, name := range matches {
		m := filepath.Join(c.DerivedData, filepath.FromSlash(name))
		if err := os.RemoveAll(m); err != nil {
			log.Debug("could not remove", zap.String("dir", m), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info("cleared derived data", zap.Int("folders", removed))
	}
	return removed
}
