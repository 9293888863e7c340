package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX paths")
	}
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{"source file", "/work/App/Demo/ContentView.swift", "/work/App", "Demo/ContentView.swift"},
		{"nested group", "/work/App/Demo/Views/Row.swift", "/work/App", "Demo/Views/Row.swift"},
		{"same directory", "/work/App", "/work/App", "."},
		{"trailing slash on root", "/work/App/Demo/A.swift", "/work/App/", "Demo/A.swift"},
		{"already relative", "Demo/A.swift", "/work/App", "Demo/A.swift"},
		{"outside root", "/tmp/Other.swift", "/work/App", "/tmp/Other.swift"},
		{"sibling with common prefix", "/work/AppKit/A.swift", "/work/App", "/work/AppKit/A.swift"},
		{"dot-dot prefixed name stays inside", "/work/App/..hidden/A.swift", "/work/App", "..hidden/A.swift"},
		{"empty root", "/work/App/A.swift", "", "/work/App/A.swift"},
		{"empty path", "", "/work/App", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToRelative(tt.absPath, tt.rootDir))
		})
	}
}

func TestToRelativeAll(t *testing.T) {
	root := filepath.FromSlash("/work/App")
	in := []string{filepath.FromSlash("/work/App/Demo/A.swift"), filepath.FromSlash("/elsewhere/B.swift")}

	out := ToRelativeAll(in, root)
	assert.Equal(t, []string{filepath.Join("Demo", "A.swift"), filepath.FromSlash("/elsewhere/B.swift")}, out)
	assert.Equal(t, filepath.FromSlash("/work/App/Demo/A.swift"), in[0], "input untouched")

	assert.Empty(t, ToRelativeAll(nil, root))
}
