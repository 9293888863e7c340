// Build artifact detection for Apple platform projects.
// Looks for package manager and build tool markers to find generated directories.
package config

import (
	"os"
	"path/filepath"
)

// BuildArtifactDetector finds dependency and build output directories
type BuildArtifactDetector struct {
	projectRoot string
}

// NewBuildArtifactDetector creates a new build artifact detector
func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// artifactMarkers maps a marker file in the project root to the directories it produces
var artifactMarkers = []struct {
	marker   string
	patterns []string
}{
	{"Package.swift", []string{"**/.build/**", "**/.swiftpm/**"}},
	{"Podfile", []string{"**/Pods/**"}},
	{"Cartfile", []string{"**/Carthage/**"}},
	{"Gemfile", []string{"**/vendor/bundle/**"}},
	{"fastlane", []string{"**/fastlane/report*", "**/fastlane/test_output/**"}},
	{"project.yml", []string{"**/*.xcodeproj.backup/**"}},
}

// DetectOutputDirectories scans for marker files and returns glob patterns to exclude
// (e.g. "**/Pods/**" when a Podfile is present)
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	for _, m := range artifactMarkers {
		if bad.exists(m.marker) {
			patterns = append(patterns, m.patterns...)
		}
	}
	return patterns
}

func (bad *BuildArtifactDetector) exists(name string) bool {
	_, err := os.Stat(filepath.Join(bad.projectRoot, name))
	return err == nil
}

// DeduplicatePatterns removes duplicate exclusion patterns
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if !seen[pattern] {
			seen[pattern] = true
			result = append(result, pattern)
		}
	}

	return result
}
