package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("", "/proj")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/proj", cfg.Project.Root)
	assert.Equal(t, DefaultCommand, cfg.Build.Command)
	assert.Equal(t, DefaultAction, cfg.Build.Action)
	assert.Equal(t, DefaultTimeoutSec, cfg.Build.TimeoutSec)
	assert.Equal(t, DefaultMaxAttempts, cfg.Repair.MaxAttempts)
	assert.Equal(t, DefaultBackoffMs, cfg.Repair.BackoffMs)
	assert.Equal(t, runtime.NumCPU(), cfg.Repair.Workers)
	assert.True(t, cfg.Repair.Reconcile)
	assert.Equal(t, []string{"**/*.swift"}, cfg.Include)
	assert.Contains(t, cfg.Exclude, "**/DerivedData/**")
}

func TestParseKDL_AllSections(t *testing.T) {
	kdlContent := `
project {
    name "Faith Journal"
    source_root "Sources"
    respect_gitignore false
}
build {
    command "/usr/bin/xcodebuild"
    scheme "FaithJournal"
    destination "generic/platform=iOS"
    action "clean"
    timeout_sec 120
    extra_args "-quiet" "-allowProvisioningUpdates"
}
repair {
    max_attempts 5
    backoff_ms 250
    workers 12
    verify_idempotence true
    reconcile false
    rules_file "rules.toml"
}
cleanup {
    enabled true
    derived_data "/tmp/dd"
}
watch {
    debounce_ms 50
}
include "**/*.swift" "**/*.m"
exclude {
    "**/Generated/**"
}
`
	cfg, err := parseKDL(kdlContent, "/proj")
	require.NoError(t, err)

	assert.Equal(t, "Faith Journal", cfg.Project.Name)
	assert.Equal(t, "Sources", cfg.Project.SourceRoot)
	assert.False(t, cfg.Project.RespectGitignore)

	assert.Equal(t, "/usr/bin/xcodebuild", cfg.Build.Command)
	assert.Equal(t, "FaithJournal", cfg.Build.Scheme)
	assert.Equal(t, "generic/platform=iOS", cfg.Build.Destination)
	assert.Equal(t, "clean", cfg.Build.Action)
	assert.Equal(t, 120, cfg.Build.TimeoutSec)
	assert.Equal(t, []string{"-quiet", "-allowProvisioningUpdates"}, cfg.Build.ExtraArgs)

	assert.Equal(t, 5, cfg.Repair.MaxAttempts)
	assert.Equal(t, 250, cfg.Repair.BackoffMs)
	assert.Equal(t, 12, cfg.Repair.Workers)
	assert.True(t, cfg.Repair.VerifyIdempotence)
	assert.False(t, cfg.Repair.Reconcile)
	assert.Equal(t, "rules.toml", cfg.Repair.RulesFile)

	assert.True(t, cfg.Cleanup.Enabled)
	assert.Equal(t, "/tmp/dd", cfg.Cleanup.DerivedData)
	assert.Equal(t, 50, cfg.Watch.DebounceMs)

	assert.Equal(t, []string{"**/*.swift", "**/*.m"}, cfg.Include)
	assert.Contains(t, cfg.Exclude, "**/Generated/**")
	assert.Contains(t, cfg.Exclude, "**/.git/**", "project exclusions extend the defaults")
}

func TestParseKDL_InvalidSyntax(t *testing.T) {
	_, err := parseKDL(`build { command "unterminated }`, "/proj")
	assert.Error(t, err)
}

func TestLoadKDL_MissingFile(t *testing.T) {
	cfg, err := LoadKDL(t.TempDir())
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadKDL_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	content := `
project {
    source_root "App"
    manifest "App.xcodeproj/project.pbxproj"
}
repair {
    rules_file "tools/rules.toml"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644))

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	absDir, _ := filepath.Abs(dir)
	assert.Equal(t, absDir, cfg.Project.Root)
	assert.Equal(t, filepath.Join(absDir, "App"), cfg.Project.SourceRoot)
	assert.Equal(t, filepath.Join(absDir, "App.xcodeproj", "project.pbxproj"), cfg.Project.Manifest)
	assert.Equal(t, filepath.Join(absDir, "tools", "rules.toml"), cfg.Repair.RulesFile)
}
