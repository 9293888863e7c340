package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

const samplePack = `
[[rule]]
name = "legacy-list-style"
category = "api"
pattern = '\.listStyle\(PlainListStyle\(\)\)'
replace = '.listStyle(.plain)'

[[rule]]
name = "typo-recieve"
literal = true
pattern = "recieve"
replace = "receive"

[[import]]
module = "MapKit"
triggers = ["MKMapView", "MapAnnotation"]
implied_by = ["SwiftUI"]
`

func TestParsePack(t *testing.T) {
	rules, err := ParsePack([]byte(samplePack))
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, "legacy-list-style", rules[0].Name())
	assert.Equal(t, CategoryAPI, rules[0].Category())
	assert.Equal(t, "typo-recieve", rules[1].Name())
	assert.Equal(t, CategoryCustom, rules[1].Category())
	assert.Equal(t, "import-mapkit", rules[2].Name())

	engine := NewEngine(rules...)
	out, n := engine.Apply("List {}.listStyle(PlainListStyle())\nfunc recieve() {}\nlet m = MKMapView()\n")
	assert.Equal(t, "import MapKit\nList {}.listStyle(.plain)\nfunc receive() {}\nlet m = MKMapView()\n", out)
	assert.Equal(t, 3, n)
}

func TestParsePack_InvalidRules(t *testing.T) {
	tests := []struct {
		name string
		pack string
	}{
		{"bad regex", "[[rule]]\nname = \"x\"\npattern = '(unclosed'\n"},
		{"empty pattern", "[[rule]]\nname = \"x\"\n"},
		{"self triggering literal", "[[rule]]\nname = \"x\"\nliteral = true\npattern = \";\"\nreplace = \";;\"\n"},
		{"duplicate names", "[[rule]]\nname = \"x\"\npattern = \"a\"\n[[rule]]\nname = \"x\"\npattern = \"b\"\n"},
		{"import without triggers", "[[import]]\nmodule = \"MapKit\"\n"},
		{"regex that does not settle", "[[rule]]\nname = \"x\"\npattern = 'final final '\nreplace = 'final '\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePack([]byte(tt.pack))
			require.Error(t, err)
			var re *bmerrors.RuleError
			assert.True(t, errors.As(err, &re), "expected a RuleError, got %v", err)
		})
	}
}

func TestParsePack_OverlappingLiteral(t *testing.T) {
	rules, err := ParsePack([]byte("[[rule]]\nname = \"final-run\"\nliteral = true\npattern = \"final final \"\nreplace = \"final \"\n"))
	require.NoError(t, err)
	require.Len(t, rules, 1)

	engine := NewEngine(rules...)
	out, n := engine.Apply("final final final class Foo {}\n")
	assert.Equal(t, "final class Foo {}\n", out)
	assert.Equal(t, 2, n)
	assert.Empty(t, engine.VerifyIdempotent("final final final class Foo {}\n"))
}

func TestParsePack_InvalidTOML(t *testing.T) {
	_, err := ParsePack([]byte("[[rule]\nname ="))
	assert.Error(t, err)
}

func TestLoadPackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.toml")
	require.NoError(t, os.WriteFile(path, []byte(samplePack), 0644))

	rules, err := LoadPackFile(path)
	require.NoError(t, err)
	assert.Len(t, rules, 3)

	_, err = LoadPackFile(filepath.Join(t.TempDir(), "missing.toml"))
	var fe *bmerrors.FileError
	assert.True(t, errors.As(err, &fe))
}
