package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

const manifestFileName = "project.pbxproj"

// ResolveProject fills in the manifest path, product name, source root and
// DerivedData location when the config leaves them empty. It is run once
// per repair run.
func (c *Config) ResolveProject() error {
	if c.Project.Manifest == "" {
		manifest, err := FindManifest(c.Project.Root)
		if err != nil {
			return err
		}
		c.Project.Manifest = manifest
	}

	if c.Project.Name == "" {
		bundle := filepath.Dir(c.Project.Manifest)
		c.Project.Name = strings.TrimSuffix(filepath.Base(bundle), ".xcodeproj")
	}

	if c.Project.SourceRoot == "" {
		c.Project.SourceRoot = c.Project.Root
		candidate := filepath.Join(c.Project.Root, c.Project.Name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			c.Project.SourceRoot = candidate
		}
	}
	if info, err := os.Stat(c.Project.SourceRoot); err != nil || !info.IsDir() {
		return bmerrors.NewFileError("stat", c.Project.SourceRoot, bmerrors.ErrNoSourceRoot)
	}

	if c.Build.Scheme == "" {
		c.Build.Scheme = c.Project.Name
	}

	if c.Cleanup.DerivedData == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Cleanup.DerivedData = filepath.Join(home, "Library", "Developer", "Xcode", "DerivedData")
		}
	}

	return nil
}

// FindManifest returns <root>/<Name>.xcodeproj/project.pbxproj, choosing the
// alphabetically first bundle when several exist
func FindManifest(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", bmerrors.NewFileError("read dir", root, err)
	}

	var bundles []string
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".xcodeproj") {
			bundles = append(bundles, e.Name())
		}
	}
	sort.Strings(bundles)

	for _, b := range bundles {
		candidate := filepath.Join(root, b, manifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", bmerrors.NewFileError("locate", root, bmerrors.ErrNoManifest)
}
