// Package pipeline discovers source files and runs the rule engine and scope
// balancer over them with a bounded worker pool.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// Scanner finds source files under the source root. Include and exclude
// patterns are doublestar globs relative to the project root.
type Scanner struct {
	root       string
	sourceRoot string
	include    []string
	exclude    []string
}

// NewScanner creates a scanner from the project configuration
func NewScanner(cfg *config.Config) *Scanner {
	sourceRoot := cfg.Project.SourceRoot
	if sourceRoot == "" {
		sourceRoot = cfg.Project.Root
	}
	return &Scanner{
		root:       cfg.Project.Root,
		sourceRoot: sourceRoot,
		include:    append([]string(nil), cfg.Include...),
		exclude:    append([]string(nil), cfg.Exclude...),
	}
}

// SourceRoot returns the directory the scanner walks
func (s *Scanner) SourceRoot() string { return s.sourceRoot }

// Scan walks the source root and returns matching files as sorted absolute paths
func (s *Scanner) Scan(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(s.sourceRoot); err != nil {
		return nil, bmerrors.NewFileError("scan", s.sourceRoot, bmerrors.ErrNoSourceRoot)
	}

	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)
	var files []string

	err := filepath.Walk(s.sourceRoot, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			debug.LogPool("Scanner error for %s: %v", path, err)
			return nil // Continue scanning despite errors
		}

		if info.IsDir() {
			realPath, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			if visitedDirs[realPath] {
				debug.LogPool("Cycle detected, skipping already visited: %s -> %s", path, realPath)
				return filepath.SkipDir
			}
			visitedDirs[realPath] = true

			if path != s.sourceRoot && s.excludedDir(s.relative(path)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		if s.matches(s.relative(path)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	debug.LogPool("Scan of %s found %d files", s.sourceRoot, len(files))
	return files, nil
}

// Matches reports whether an absolute path would be returned by Scan
func (s *Scanner) Matches(path string) bool {
	rel := s.relative(path)
	if s.excludedDir(filepath.ToSlash(filepath.Dir(rel))) {
		return false
	}
	return s.matches(rel)
}

func (s *Scanner) relative(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (s *Scanner) matches(rel string) bool {
	if matchAny(s.exclude, rel) {
		return false
	}
	if len(s.include) == 0 {
		return true
	}
	return matchAny(s.include, rel)
}

func (s *Scanner) excludedDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	// Check with trailing slash for directory patterns
	return matchAny(s.exclude, rel) || matchAny(s.exclude, rel+"/")
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			continue // bad pattern shouldn't break scanning
		}
		if matched {
			return true
		}
	}
	return false
}
