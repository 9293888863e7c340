package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/buildmend/testhelpers"
)

func diskFiles(root string, rels ...string) []string {
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = filepath.Join(root, filepath.FromSlash(rel))
	}
	return out
}

func TestReconcilePlan(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	m := parseDemo(t)

	// ContentView moved into Views, a new row view appeared
	require.NoError(t, os.Remove(filepath.Join(root, "Demo", "ContentView.swift")))
	testhelpers.WriteFile(t, root, "Demo/Views/ContentView.swift", "struct ContentView {}\n")
	testhelpers.WriteFile(t, root, "Demo/Views/RowView.swift", "struct RowView {}\n")

	r := NewReconciler(root)
	changes := r.Plan(m, diskFiles(root,
		"Demo/DemoApp.swift",
		"Demo/Views/ContentView.swift",
		"Demo/Views/RowView.swift",
	), nil)

	assert.Equal(t, []Change{
		{Kind: ChangeRelocate, ID: testhelpers.DemoContentViewRef, Path: "Demo/ContentView.swift", NewPath: "Demo/Views/ContentView.swift"},
		{Kind: ChangeAdd, Path: "Demo/Views/RowView.swift"},
	}, changes)

	applied, err := r.Apply(m, changes)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Empty(t, m.Validate())

	f, ok := m.FindFileReference("Demo/Views/RowView.swift")
	require.True(t, ok)
	assert.Equal(t, []string{testhelpers.DemoViewsGroup}, m.ParentGroups(f.ID))
	assert.Equal(t, "Demo/Views/ContentView.swift", m.ResolvedPath(testhelpers.DemoContentViewRef))

	// a second plan has nothing left to do
	assert.Empty(t, r.Plan(m, diskFiles(root,
		"Demo/DemoApp.swift",
		"Demo/Views/ContentView.swift",
		"Demo/Views/RowView.swift",
	), nil))
}

func TestReconcileRemovesDanglingReference(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	m := parseDemo(t)
	require.NoError(t, os.Remove(filepath.Join(root, "Demo", "DemoApp.swift")))

	r := NewReconciler(root)
	changes := r.Plan(m, diskFiles(root, "Demo/ContentView.swift"), nil)
	require.Equal(t, []Change{{Kind: ChangeRemove, ID: testhelpers.DemoAppRef, Path: "Demo/DemoApp.swift"}}, changes)

	_, err := r.Apply(m, changes)
	require.NoError(t, err)
	assert.NotContains(t, m.Text(), testhelpers.DemoAppRef)
	assert.NotContains(t, m.Text(), testhelpers.DemoAppBuildFile)
}

func TestReconcileSimilarName(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	m := parseDemo(t)
	require.NoError(t, os.Remove(filepath.Join(root, "Demo", "ContentView.swift")))
	testhelpers.WriteFile(t, root, "Demo/ContentViews.swift", "struct ContentView {}\n")

	r := NewReconciler(root)
	changes := r.Plan(m, diskFiles(root, "Demo/DemoApp.swift", "Demo/ContentViews.swift"), nil)
	assert.Equal(t, []Change{
		{Kind: ChangeRelocate, ID: testhelpers.DemoContentViewRef, Path: "Demo/ContentView.swift", NewPath: "Demo/ContentViews.swift"},
	}, changes)

	r.MinSimilarity = 0.99
	changes = r.Plan(m, diskFiles(root, "Demo/DemoApp.swift", "Demo/ContentViews.swift"), nil)
	assert.Equal(t, []Change{
		{Kind: ChangeRemove, ID: testhelpers.DemoContentViewRef, Path: "Demo/ContentView.swift"},
		{Kind: ChangeAdd, Path: "Demo/ContentViews.swift"},
	}, changes)
}

func TestReconcileMissingInputs(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	m := parseDemo(t)

	r := NewReconciler(root)
	changes := r.Plan(m,
		diskFiles(root, "Demo/DemoApp.swift", "Demo/ContentView.swift"),
		diskFiles(root, "Demo/Info.plist"))
	assert.Equal(t, []Change{{Kind: ChangeRemove, ID: testhelpers.DemoInfoPlistRef, Path: "Demo/Info.plist"}}, changes)
}

func TestReconcileSkipsSynchronizedFolders(t *testing.T) {
	root, _ := testhelpers.WriteDemoProject(t)
	m, err := Parse(strings.Replace(testhelpers.DemoPBXProj,
		"/* Begin PBXGroup section */",
		"/* Begin PBXFileSystemSynchronizedRootGroup section */\n\t\t0D0000000000000000000001 /* Features */ = {isa = PBXFileSystemSynchronizedRootGroup; path = Features; sourceTree = \"<group>\"; };\n/* End PBXFileSystemSynchronizedRootGroup section */\n\n/* Begin PBXGroup section */", 1))
	require.NoError(t, err)

	r := NewReconciler(root)
	changes := r.Plan(m, diskFiles(root,
		"Demo/DemoApp.swift",
		"Demo/ContentView.swift",
		"Features/Auto.swift",
	), nil)
	assert.Empty(t, changes)
}
