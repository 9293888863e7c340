// Package version identifies the running buildmend binary.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Version is the release number. Commit may be overridden with
// -ldflags "-X github.com/standardbeagle/buildmend/internal/version.Commit=...".
const Version = "0.3.0"

var Commit = ""

// Build describes the binary that produced a run report
type Build struct {
	Version   string `yaml:"version"`
	Commit    string `yaml:"commit,omitempty"`
	Dirty     bool   `yaml:"dirty,omitempty"`
	GoVersion string `yaml:"go,omitempty"`
	ID        string `yaml:"id"`
}

var (
	current     Build
	currentOnce sync.Once
)

// Current reads the embedded module and VCS metadata once
func Current() Build {
	currentOnce.Do(func() { current = readBuild(debug.ReadBuildInfo()) })
	return current
}

func readBuild(info *debug.BuildInfo, ok bool) Build {
	b := Build{Version: Version, Commit: Commit}
	if !ok {
		b.ID = fingerprint(b.Version, b.Commit)
		return b
	}

	b.GoVersion = info.GoVersion
	parts := []string{info.GoVersion, info.Main.Path, info.Main.Version}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.modified":
			b.Dirty = s.Value == "true"
		default:
			continue
		}
		parts = append(parts, s.Key+"="+s.Value)
	}
	b.ID = fingerprint(parts...)
	return b
}

func fingerprint(parts ...string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "\x00")))
}

// String renders e.g. "buildmend 0.3.0 (1a2b3c4d5e6f, dirty, go1.22.1)"
func (b Build) String() string {
	var details []string
	if b.Commit != "" {
		commit := b.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		details = append(details, commit)
	}
	if b.Dirty {
		details = append(details, "dirty")
	}
	if b.GoVersion != "" {
		details = append(details, b.GoVersion)
	}
	if len(details) == 0 {
		return "buildmend " + b.Version
	}
	return "buildmend " + b.Version + " (" + strings.Join(details, ", ") + ")"
}
