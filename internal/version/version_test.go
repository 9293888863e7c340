package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentStable(t *testing.T) {
	b := Current()
	assert.Equal(t, Version, b.Version)
	assert.Len(t, b.ID, 16)
	assert.Equal(t, b, Current())
}

func TestReadBuild(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.22.1",
		Main:      debug.Module{Path: "github.com/standardbeagle/buildmend", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1a2b3c4d5e6f7a8b9c0d"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "-trimpath", Value: "true"},
		},
	}

	b := readBuild(info, true)
	assert.Equal(t, "1a2b3c4d5e6f7a8b9c0d", b.Commit)
	assert.True(t, b.Dirty)
	assert.Equal(t, "buildmend "+Version+" (1a2b3c4d5e6f, dirty, go1.22.1)", b.String())

	info.Settings[1].Value = "false"
	clean := readBuild(info, true)
	assert.False(t, clean.Dirty)
	assert.NotEqual(t, b.ID, clean.ID, "vcs state is part of the fingerprint")

	info.Settings[2].Value = "false"
	assert.Equal(t, clean.ID, readBuild(info, true).ID, "unrelated settings are ignored")
}

func TestReadBuildWithoutInfo(t *testing.T) {
	b := readBuild(nil, false)
	assert.Equal(t, "buildmend "+Version, b.String())
	assert.Equal(t, fingerprint(Version, Commit), b.ID)
}
