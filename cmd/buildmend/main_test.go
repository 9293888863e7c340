package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/buildmend/internal/build"
	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/repair"
	"github.com/standardbeagle/buildmend/internal/version"
	"github.com/standardbeagle/buildmend/testhelpers"
)

func init() {
	color.NoColor = true
}

// runCLI runs the app in-process and returns stdout. Exit codes come back as
// cli.ExitCoder errors instead of terminating the test binary.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &logs
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"buildmend"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(cli.ExitCoder); ok {
		return ec.ExitCode()
	}
	return 1
}

func TestHelpAndVersionFlags(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--verbose")
	assert.Contains(t, out, "--version, -v")

	out, err = runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)

	out, err = runCLI(t, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestVerboseFlagRuns(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)

	out, err := runCLI(t, "--verbose", "check", root)
	require.NoError(t, err)
	assert.Contains(t, out, "manifest is consistent")
}

func TestRepairAlreadyBuilding(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)

	out, err := runCLI(t, "--command", "true", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Build repaired (Demo)")
	assert.Contains(t, out, "fixes applied: 0")
}

func TestRepairSucceedsAfterFix(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	testhelpers.WriteFile(t, root, "Demo/Settings.swift", testhelpers.BrokenSwift)

	calls := 0
	repairOptions = []repair.Option{repair.WithRunner(build.RunnerFunc(func(ctx context.Context, inv build.Invocation) build.Execution {
		calls++
		if calls == 1 {
			return build.Execution{ExitCode: 65, Output: "Settings.swift:4:1: error: expected declaration\n"}
		}
		return build.Execution{}
	}))}
	t.Cleanup(func() { repairOptions = nil })

	out, err := runCLI(t, root)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, out, "Build repaired (Demo)")
	assert.Contains(t, out, "fixes applied: 7")
	assert.Contains(t, out, "manifest:      1 changes")
}

func TestRepairAbandonedExitsNonZero(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	testhelpers.WriteFile(t, root, "Demo/Settings.swift", testhelpers.BrokenSwift)
	report := filepath.Join(t.TempDir(), "run.yaml")

	out, err := runCLI(t, "repair", "--command", "false", "-n", "1", "--backoff-ms", "0", "--report", report, root)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Repair abandoned (Demo)")
	assert.Contains(t, out, "fixes applied: 7")

	fixed, readErr := os.ReadFile(filepath.Join(root, "Demo", "Settings.swift"))
	require.NoError(t, readErr)
	assert.Equal(t, testhelpers.FixedSwift, string(fixed))

	data, readErr := os.ReadFile(report)
	require.NoError(t, readErr)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "buildmend", doc["tool"])
}

func TestRepairDryRunWritesNothing(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)
	settings := testhelpers.WriteFile(t, root, "Demo/Settings.swift", testhelpers.BrokenSwift)

	out, err := runCLI(t, "--dry-run", "--diff", "--command", "false", root)
	require.NoError(t, err)
	assert.Contains(t, out, "1 files would change, 7 fixes, 1 manifest changes")
	assert.Contains(t, out, "+final class Store {")
	assert.Contains(t, out, "+ Demo/Settings.swift")

	data, readErr := os.ReadFile(settings)
	require.NoError(t, readErr)
	assert.Equal(t, testhelpers.BrokenSwift, string(data))

	manifestData, readErr := os.ReadFile(manifestPath)
	require.NoError(t, readErr)
	assert.Equal(t, testhelpers.DemoPBXProj, string(manifestData))
	assert.NoFileExists(t, manifestPath+".backup")
}

func TestCheckCommand(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)

	out, err := runCLI(t, "check", "--tree", root)
	require.NoError(t, err)
	assert.Contains(t, out, "→ <main>/")
	assert.Contains(t, out, "manifest is consistent")

	broken := strings.Replace(testhelpers.DemoPBXProj,
		testhelpers.DemoContentViewRef+" /* ContentView.swift */,",
		testhelpers.DemoContentViewRef+" /* ContentView.swift */,\n\t\t\t\t0F0000000000000000000001 /* Ghost.swift */,", 1)
	require.NoError(t, os.WriteFile(manifestPath, []byte(broken), 0o644))

	out, err = runCLI(t, "check", root)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "0F0000000000000000000001")
}

func TestRulesCommand(t *testing.T) {
	out, err := runCLI(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "duplicate-final")

	dir := t.TempDir()
	path := testhelpers.WriteFile(t, dir, "Settings.swift", testhelpers.BrokenSwift)

	out, err = runCLI(t, "rules", "--diff", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 files would change, 7 fixes")
	assert.Contains(t, out, "-final final class Store {")

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, testhelpers.BrokenSwift, string(data), "rules never writes")

	out, err = runCLI(t, "rules", "--verify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "rules are idempotent")
}

func TestRulesCommandBadPack(t *testing.T) {
	pack := testhelpers.WriteFile(t, t.TempDir(), "pack.toml", "[[rule]]\nname = \"broken\"\npattern = \"(\"\nreplace = \"x\"\n")
	_, err := runCLI(t, "rules", "--rules", pack)
	require.Error(t, err)
}

func TestRestoreCommand(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)

	out, err := runCLI(t, "restore", "--list", root)
	require.NoError(t, err)
	assert.Contains(t, out, "no backups")

	_, err = runCLI(t, "restore", root)
	require.Error(t, err)

	const older = "// previous revision\n"
	require.NoError(t, os.WriteFile(manifestPath+".backup", []byte(older), 0o644))

	out, err = runCLI(t, "restore", "--list", root)
	require.NoError(t, err)
	assert.Contains(t, out, manifestPath+".backup")

	_, err = runCLI(t, "restore", root)
	require.NoError(t, err)
	data, readErr := os.ReadFile(manifestPath)
	require.NoError(t, readErr)
	assert.Equal(t, older, string(data))
	assert.NoFileExists(t, manifestPath+".backup")
}

func TestConfigValidateCommand(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)

	out, err := runCLI(t, "config", "validate", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
	assert.Contains(t, out, "(3 files)")
	assert.Contains(t, out, "-scheme Demo")
}

func TestConfigShowCommand(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)

	out, err := runCLI(t, "--workers", "3", "config", "show", root)
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 3, cfg.Repair.Workers)
	assert.Equal(t, "Demo", cfg.Project.Name)
}

func TestLoadConfigWithOverrides(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	testhelpers.WriteFile(t, root, config.ConfigFileName, `project {
    source_root "Demo"
}
repair {
    max_attempts 5
    workers 4
}
`)

	var got *config.Config
	app := newApp()
	app.Writer, app.ErrWriter = &bytes.Buffer{}, &bytes.Buffer{}
	app.Action = func(c *cli.Context) error {
		var err error
		got, err = loadConfigWithOverrides(c)
		return err
	}
	require.NoError(t, app.Run([]string{"buildmend", "--workers", "2", "--exclude", "**/Generated/**", "--no-reconcile", root}))

	require.NotNil(t, got)
	assert.Equal(t, root, got.Project.Root)
	assert.Equal(t, filepath.Join(root, "Demo"), got.Project.SourceRoot)
	assert.Equal(t, 5, got.Repair.MaxAttempts, "config file value kept")
	assert.Equal(t, 2, got.Repair.Workers, "flag overrides config file")
	assert.Contains(t, got.Exclude, "**/Generated/**")
	assert.False(t, got.Repair.Reconcile)
}
