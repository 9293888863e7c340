package repair

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/buildmend/internal/build"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
	"github.com/standardbeagle/buildmend/internal/manifest"
	"github.com/standardbeagle/buildmend/testhelpers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const failedBuild = "/src/Demo/Settings.swift:3:5: error: cannot find 'Colour' in scope\n** BUILD FAILED **\n"

// fakeBuild counts invocations and fails until succeed returns true
type fakeBuild struct {
	mu      sync.Mutex
	calls   int
	succeed func(call int) bool
}

func (f *fakeBuild) Run(ctx context.Context, inv build.Invocation) build.Execution {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.succeed != nil && f.succeed(call) {
		return build.Execution{ExitCode: 0, Output: "** BUILD SUCCEEDED **\n"}
	}
	return build.Execution{ExitCode: 65, Output: failedBuild}
}

func (f *fakeBuild) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestAbandonedAfterOneAttempt(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(1).Build()

	runner := &fakeBuild{}
	states := &stateLog{}
	c, err := New(cfg, WithRunner(runner), WithStateHook(states.record), WithSleep(noSleep))
	require.NoError(t, err)

	out := c.Run(context.Background())
	assert.Equal(t, StateAbandoned, out.State)
	assert.False(t, out.Succeeded())
	assert.NoError(t, out.Err)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, 2, runner.Calls(), "one measure and one rebuild")
	assert.Equal(t, []State{
		StateInit, StateDiscover, StateMeasure, StateRepair, StateRebuild, StateDecide, StateAbandoned,
	}, states.states)

	rec := out.Attempts[0]
	assert.Equal(t, 1, rec.ErrorsBefore)
	assert.Equal(t, 1, rec.ErrorsAfter)
	delta, ok := rec.Progress()
	assert.True(t, ok)
	assert.Zero(t, delta)
	assert.Equal(t, 1, out.FinalErrors)
}

func TestBoundedTermination(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 5} {
		root, _ := testhelpers.WriteDemoProject(t)
		cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(maxAttempts).WithBackoffMs(25).Build()

		var sleeps []time.Duration
		runner := &fakeBuild{}
		c, err := New(cfg, WithRunner(runner), WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}))
		require.NoError(t, err)

		out := c.Run(context.Background())
		assert.Equal(t, StateAbandoned, out.State)
		assert.Len(t, out.Attempts, maxAttempts)
		assert.Equal(t, 2*maxAttempts, runner.Calls())
		assert.Len(t, sleeps, maxAttempts-1)
		for _, d := range sleeps {
			assert.Equal(t, 25*time.Millisecond, d, "backoff is fixed")
		}
	}
}

func TestSuccessAfterRepair(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	settings := testhelpers.WriteFile(t, root, "Demo/Settings.swift", testhelpers.BrokenSwift)
	cfg := testhelpers.NewTestConfigBuilder(root).WithReconcile(false).Build()

	// the build passes once Settings.swift is fixed
	runner := &fakeBuild{succeed: func(int) bool {
		data, err := os.ReadFile(settings)
		return err == nil && string(data) == testhelpers.FixedSwift
	}}
	var records []AttemptRecord
	c, err := New(cfg, WithRunner(runner), WithSleep(noSleep), WithAttemptHook(func(r AttemptRecord) {
		records = append(records, r)
	}))
	require.NoError(t, err)

	out := c.Run(context.Background())
	require.Equal(t, StateSuccess, out.State, out.Error)
	assert.Equal(t, 3, out.FilesDiscovered)
	assert.Equal(t, 1, out.FilesTouched)
	assert.Equal(t, 7, out.FixesApplied)
	assert.Equal(t, 0, out.FinalErrors)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, out.Attempts, records)

	rec := out.Attempts[0]
	assert.Equal(t, 1, rec.FilesChanged)
	delta, ok := rec.Progress()
	assert.True(t, ok)
	assert.Equal(t, 1, delta)
}

func TestAlreadyBuilding(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	cfg := testhelpers.NewTestConfigBuilder(root).Build()

	states := &stateLog{}
	runner := &fakeBuild{succeed: func(int) bool { return true }}
	c, err := New(cfg, WithRunner(runner), WithStateHook(states.record))
	require.NoError(t, err)

	out := c.Run(context.Background())
	assert.Equal(t, StateSuccess, out.State)
	assert.Empty(t, out.Attempts)
	assert.Equal(t, 1, runner.Calls())
	assert.NotContains(t, states.states, StateRepair)
}

func TestTimedOutBuildsAreUnknown(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(1).Build()

	runner := build.RunnerFunc(func(ctx context.Context, inv build.Invocation) build.Execution {
		return build.Execution{TimedOut: true, Err: context.DeadlineExceeded}
	})
	c, err := New(cfg, WithRunner(runner))
	require.NoError(t, err)

	out := c.Run(context.Background())
	assert.Equal(t, StateAbandoned, out.State)
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, build.UnknownErrors, out.Attempts[0].ErrorsBefore)
	_, ok := out.Attempts[0].Progress()
	assert.False(t, ok)
}

func TestReconcileAddsNewSources(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)
	testhelpers.WriteFile(t, root, "Demo/Views/RowView.swift", "import SwiftUI\n\nstruct RowView: View {\n    var body: some View {\n        Text(\"Row\")\n    }\n}\n")
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(1).Build()

	c, err := New(cfg, WithRunner(&fakeBuild{}), WithSleep(noSleep))
	require.NoError(t, err)
	out := c.Run(context.Background())

	require.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, out.Attempts[0].ManifestChanges)
	assert.Equal(t, 1, out.ManifestChanges)
	require.Len(t, out.Backups, 1)
	assert.Equal(t, manifestPath+".backup", out.Backups[0])

	backup, err := os.ReadFile(out.Backups[0])
	require.NoError(t, err)
	assert.Equal(t, testhelpers.DemoPBXProj, string(backup))

	m, err := manifest.NewStore(manifestPath).Load()
	require.NoError(t, err)
	f, ok := m.FindFileReference("Demo/Views/RowView.swift")
	require.True(t, ok)
	assert.NotEmpty(t, m.BuildFilesFor(f.ID))
	assert.Empty(t, m.Validate())
}

func TestReconcileRemovesMissingInputs(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "Demo", "ContentView.swift")))
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(1).Build()

	runner := build.RunnerFunc(func(ctx context.Context, inv build.Invocation) build.Execution {
		return build.Execution{ExitCode: 65, Output: "error: Build input file cannot be found: '" +
			filepath.Join(root, "Demo", "ContentView.swift") + "'\n"}
	})
	c, err := New(cfg, WithRunner(runner))
	require.NoError(t, err)
	out := c.Run(context.Background())
	assert.Equal(t, 1, out.ManifestChanges)

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), testhelpers.DemoContentViewRef)
}

func TestManifestUntouchedWhenNothingToReconcile(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(2).Build()

	c, err := New(cfg, WithRunner(&fakeBuild{}), WithSleep(noSleep))
	require.NoError(t, err)
	out := c.Run(context.Background())
	assert.Empty(t, out.Backups)
	assert.Zero(t, out.ManifestChanges)

	backups, err := manifest.NewStore(manifestPath).Backups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestCancelledDuringBackoff(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(5).WithBackoffMs(10_000).Build()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeBuild{}
	c, err := New(cfg, WithRunner(runner), WithAttemptHook(func(AttemptRecord) { cancel() }))
	require.NoError(t, err)

	start := time.Now()
	out := c.Run(ctx)
	assert.Equal(t, StateAbandoned, out.State)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Len(t, out.Attempts, 1)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestInitFailureAbandons(t *testing.T) {
	root := t.TempDir()
	testhelpers.WriteFile(t, root, "Demo.xcodeproj/project.pbxproj", testhelpers.DemoPBXProj)
	cfg := testhelpers.NewTestConfigBuilder(root).Build()

	runner := &fakeBuild{}
	c, err := New(cfg, WithRunner(runner))
	require.NoError(t, err)
	out := c.Run(context.Background())

	assert.Equal(t, StateAbandoned, out.State)
	assert.ErrorIs(t, out.Err, bmerrors.ErrNoSourceRoot)
	assert.Zero(t, runner.Calls())
}

func TestRediscoverWhenSourceDisappears(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	extra := testhelpers.WriteFile(t, root, "Demo/Extra.swift", "final final class Extra {}\n")
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(2).WithReconcile(false).Build()

	c, err := New(cfg, WithRunner(&fakeBuild{}), WithSleep(func(ctx context.Context, d time.Duration) error {
		return os.Remove(extra)
	}))
	require.NoError(t, err)

	out := c.Run(context.Background())
	require.Len(t, out.Attempts, 2)
	assert.Zero(t, out.Attempts[1].FilesFailed, "vanished file is not processed again")
	assert.Equal(t, 2, out.FilesDiscovered)
}

func TestOscillationIsReported(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	path := testhelpers.WriteFile(t, root, "Demo/Flip.swift", "final final class Flip {}\n")
	cfg := testhelpers.NewTestConfigBuilder(root).WithMaxAttempts(2).WithReconcile(false).Build()

	// something outside the tool keeps reverting the fix
	c, err := New(cfg, WithRunner(&fakeBuild{}), WithSleep(func(ctx context.Context, d time.Duration) error {
		return os.WriteFile(path, []byte("final final class Flip {}\n"), 0o644)
	}))
	require.NoError(t, err)

	out := c.Run(context.Background())
	require.Len(t, out.Attempts, 2)
	assert.Empty(t, out.Attempts[0].Oscillating)
	assert.Equal(t, []string{path}, out.Attempts[1].Oscillating)
}

func TestRulesFileExtendsEngine(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	pack := testhelpers.WriteFile(t, root, "rules.toml", "[[rule]]\nname = \"plain-list\"\ncategory = \"api\"\npattern = 'PlainListStyle\\(\\)'\nreplace = '.plain'\n")
	cfg := testhelpers.NewTestConfigBuilder(root).WithRulesFile(pack).Build()

	c, err := New(cfg)
	require.NoError(t, err)
	names := make([]string, 0)
	for _, r := range c.Engine().Rules() {
		names = append(names, r.Name())
	}
	assert.Contains(t, names, "plain-list")

	bad := testhelpers.WriteFile(t, root, "bad.toml", "[[rule]]\nname = \"broken\"\npattern = '('\nreplace = 'x'\n")
	_, err = New(testhelpers.NewTestConfigBuilder(root).WithRulesFile(bad).Build())
	var ruleErr *bmerrors.RuleError
	assert.ErrorAs(t, err, &ruleErr)
}

func TestPreviewWritesNothing(t *testing.T) {
	root, manifestPath := testhelpers.WriteDemoProject(t)
	settings := testhelpers.WriteFile(t, root, "Demo/Settings.swift", testhelpers.BrokenSwift)
	cfg := testhelpers.NewTestConfigBuilder(root).Build()

	runner := &fakeBuild{}
	next := 0
	c, err := New(cfg, WithRunner(runner), WithIDGenerator(manifest.IDGeneratorFunc(func() string {
		next++
		return fmt.Sprintf("0E%022X", next)
	})))
	require.NoError(t, err)

	p, err := c.Preview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, runner.Calls(), "preview never builds")

	require.Len(t, p.Files, 1)
	assert.Equal(t, settings, p.Files[0].Path)
	assert.Equal(t, 7, p.Fixes())
	assert.Equal(t, testhelpers.FixedSwift, p.Files[0].Updated)

	require.Len(t, p.ManifestChanges, 1)
	assert.Equal(t, manifest.ChangeAdd, p.ManifestChanges[0].Kind)
	assert.True(t, strings.Contains(p.ManifestAfter, "0E0000000000000000000001 /* Settings.swift */"))

	data, err := os.ReadFile(settings)
	require.NoError(t, err)
	assert.Equal(t, testhelpers.BrokenSwift, string(data))
	data, err = os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, testhelpers.DemoPBXProj, string(data))
}
