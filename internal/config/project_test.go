package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

func TestResolveProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Zeta.xcodeproj"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Journal.xcodeproj"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Journal.xcodeproj", "project.pbxproj"), []byte("// !$*UTF8*$!\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Zeta.xcodeproj", "project.pbxproj"), []byte("// !$*UTF8*$!\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Journal"), 0755))

	cfg := Default(root)
	require.NoError(t, cfg.ResolveProject())

	assert.Equal(t, filepath.Join(root, "Journal.xcodeproj", "project.pbxproj"), cfg.Project.Manifest)
	assert.Equal(t, "Journal", cfg.Project.Name)
	assert.Equal(t, filepath.Join(root, "Journal"), cfg.Project.SourceRoot)
	assert.Equal(t, "Journal", cfg.Build.Scheme)
}

func TestResolveProject_SourceRootFallsBackToRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "App.xcodeproj"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "App.xcodeproj", "project.pbxproj"), []byte{}, 0644))

	cfg := Default(root)
	require.NoError(t, cfg.ResolveProject())
	assert.Equal(t, root, cfg.Project.SourceRoot)
}

func TestResolveProject_NoManifest(t *testing.T) {
	cfg := Default(t.TempDir())
	err := cfg.ResolveProject()
	require.Error(t, err)
	assert.True(t, errors.Is(err, bmerrors.ErrNoManifest))
}

func TestResolveProject_MissingSourceRoot(t *testing.T) {
	root := t.TempDir()
	cfg := Default(root)
	cfg.Project.Manifest = filepath.Join(root, "x.pbxproj")
	cfg.Project.SourceRoot = filepath.Join(root, "nope")

	err := cfg.ResolveProject()
	assert.True(t, errors.Is(err, bmerrors.ErrNoSourceRoot))
}
