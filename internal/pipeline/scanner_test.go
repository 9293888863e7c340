package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
	"github.com/standardbeagle/buildmend/testhelpers"
)

func TestScannerFindsSources(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	testhelpers.WriteFile(t, root, "Demo/Views/RowView.swift", "struct RowView {}\n")
	testhelpers.WriteFile(t, root, "Demo/build/Generated.swift", "// generated\n")
	testhelpers.WriteFile(t, root, "Demo/DerivedData/Cache.swift", "// cache\n")
	testhelpers.WriteFile(t, root, "Demo/Old.swift.backup", "struct Old {}\n")
	testhelpers.WriteFile(t, root, "Demo/Notes.md", "notes\n")

	cfg := testhelpers.NewTestConfigBuilder(root).Build()
	files, err := NewScanner(cfg).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "Demo", "ContentView.swift"),
		filepath.Join(root, "Demo", "DemoApp.swift"),
		filepath.Join(root, "Demo", "Views", "RowView.swift"),
	}, files)
}

func TestScannerCustomExclusions(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	testhelpers.WriteFile(t, root, "Demo/Generated/API.swift", "struct API {}\n")

	cfg := testhelpers.NewTestConfigBuilder(root).WithExclusions("**/Generated/**").Build()
	s := NewScanner(cfg)
	files, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)

	assert.False(t, s.Matches(filepath.Join(root, "Demo", "Generated", "API.swift")))
	assert.True(t, s.Matches(filepath.Join(root, "Demo", "DemoApp.swift")))
	assert.False(t, s.Matches(filepath.Join(root, "Demo", "Info.plist")))
}

func TestScannerMissingSourceRoot(t *testing.T) {
	root := t.TempDir()
	cfg := testhelpers.NewTestConfigBuilder(root).Build()
	_, err := NewScanner(cfg).Scan(context.Background())
	assert.ErrorIs(t, err, bmerrors.ErrNoSourceRoot)
}

func TestScannerSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root, _ := testhelpers.WriteDemoProject(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "Demo"), filepath.Join(root, "Demo", "Loop")))

	cfg := testhelpers.NewTestConfigBuilder(root).Build()
	files, err := NewScanner(cfg).Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestWatcherStartMissingSourceRoot(t *testing.T) {
	cfg := testhelpers.NewTestConfigBuilder(t.TempDir()).Build()
	w, err := NewWatcher(NewScanner(cfg), 0, func(Batch) { t.Error("unexpected batch") })
	require.NoError(t, err)

	err = w.Start(context.Background())
	assert.ErrorIs(t, err, bmerrors.ErrNoSourceRoot)
	assert.NoError(t, w.Stop(), "Stop releases the notifier after a failed Start")
}

func TestWatcherDeliversBatches(t *testing.T) {
	testhelpers.SkipIfShort(t, "uses real filesystem notifications")
	root, _ := testhelpers.WriteDemoProject(t)
	cfg := testhelpers.NewTestConfigBuilder(root).Build()

	batches := make(chan Batch, 8)
	w, err := NewWatcher(NewScanner(cfg), 20*time.Millisecond, func(b Batch) { batches <- b })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	created := testhelpers.WriteFile(t, root, "Demo/Added.swift", "struct Added {}\n")
	testhelpers.WriteFile(t, root, "Demo/Readme.md", "ignored\n")

	select {
	case b := <-batches:
		assert.Contains(t, b.Changed, created)
		for _, p := range b.Changed {
			assert.Equal(t, ".swift", filepath.Ext(p))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	require.NoError(t, os.Remove(created))
	testhelpers.WaitFor(t, func() bool {
		select {
		case b := <-batches:
			return len(b.Removed) == 1 && b.Removed[0] == created
		default:
			return false
		}
	}, 5*time.Second)

	events, delivered, _ := w.Stats()
	assert.GreaterOrEqual(t, events, int64(2))
	assert.GreaterOrEqual(t, delivered, int64(2))
}
