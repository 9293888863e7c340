package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the per-project (and global, in $HOME) configuration file
const ConfigFileName = ".buildmend.kdl"

const (
	DefaultMaxAttempts = 3
	DefaultBackoffMs   = 2000
	DefaultTimeoutSec  = 600
	DefaultDebounceMs  = 300
	DefaultCommand     = "xcodebuild"
	DefaultAction      = "build"
	DefaultDestination = "platform=iOS Simulator,name=iPhone 15"
)

type Config struct {
	Version int
	Project Project
	Build   Build
	Repair  Repair
	Cleanup Cleanup
	Watch   Watch
	Include []string
	Exclude []string
}

type Project struct {
	Root             string
	Name             string // Product name, defaults to the manifest's base name
	SourceRoot       string // Directory holding the Swift sources
	Manifest         string // Path to project.pbxproj
	RespectGitignore bool   // Fold .gitignore entries into Exclude
}

type Build struct {
	Command     string   // Build tool, "xcodebuild" unless overridden
	Scheme      string   // Defaults to Project.Name
	Destination string   // -destination descriptor
	Action      string   // "build" or "clean"
	TimeoutSec  int      // Upper bound for a single build invocation
	ExtraArgs   []string // Appended verbatim after the action
}

type Repair struct {
	MaxAttempts       int    // Measure/Repair/Rebuild cycles before giving up
	BackoffMs         int    // Fixed pause between attempts
	Workers           int    // 0 = auto-detect (NumCPU)
	VerifyIdempotence bool   // Re-run the rule engine on its own output and warn on drift
	RulesFile         string // Optional TOML rule pack
	Reconcile         bool   // Sync manifest references with the files on disk
	DryRun            bool   // Compute fixes without writing anything
}

type Cleanup struct {
	Enabled     bool
	DerivedData string // Xcode DerivedData directory, defaults to ~/Library/Developer/Xcode/DerivedData
}

type Watch struct {
	DebounceMs int
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	absDir, err := filepath.Abs(searchDir)
	if err == nil {
		searchDir = absDir
	}

	// Step 1: global base config from ~/.buildmend.kdl (if exists)
	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	// Step 2: project config, either the explicit path or the file in the project directory
	var projectConfig *Config
	if path != "" && path != ConfigFileName {
		projectConfig, err = LoadKDLFile(path, searchDir)
	} else {
		projectConfig, err = LoadKDL(searchDir)
	}
	if err != nil {
		return nil, err
	}

	// Step 3: merge (project overrides base, base exclusions are preserved)
	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		cfg = baseConfig
	default:
		cfg = Default(searchDir)
	}

	cfg.EnrichExclusionsWithBuildArtifacts()
	if cfg.Project.RespectGitignore {
		cfg.EnrichExclusionsWithGitignore()
	}
	return cfg, nil
}

// Default returns the configuration used when no .buildmend.kdl exists
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root:             root,
			RespectGitignore: true,
		},
		Build: Build{
			Command:     DefaultCommand,
			Action:      DefaultAction,
			Destination: DefaultDestination,
			TimeoutSec:  DefaultTimeoutSec,
		},
		Repair: Repair{
			MaxAttempts: DefaultMaxAttempts,
			BackoffMs:   DefaultBackoffMs,
			Workers:     runtime.NumCPU(),
			Reconcile:   true,
		},
		Cleanup: Cleanup{
			Enabled: false,
		},
		Watch: Watch{
			DebounceMs: DefaultDebounceMs,
		},
		Include: []string{"**/*.swift"},
		Exclude: getDefaultExclusions(),
	}
}

// mergeConfigs merges a base config with a project config
// Project config takes precedence, but base exclusions are preserved
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	// Inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	// Build tool settings usually live in the global file
	if project.Build.Command == "" {
		merged.Build.Command = base.Build.Command
	}
	if project.Build.Destination == "" {
		merged.Build.Destination = base.Build.Destination
	}
	if project.Cleanup.DerivedData == "" {
		merged.Cleanup.DerivedData = base.Cleanup.DerivedData
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts detects dependency and build output directories
// (SwiftPM, CocoaPods, Carthage) and adds them to the exclusion list
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	if c.Project.Root == "" {
		return
	}

	detector := NewBuildArtifactDetector(c.Project.Root)
	if detected := detector.DetectOutputDirectories(); len(detected) > 0 {
		c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
	}
}

// EnrichExclusionsWithGitignore folds the project's .gitignore entries into Exclude
func (c *Config) EnrichExclusionsWithGitignore() {
	if c.Project.Root == "" {
		return
	}
	patterns, err := LoadGitignorePatterns(c.Project.Root)
	if err != nil || len(patterns) == 0 {
		return
	}
	c.Exclude = DeduplicatePatterns(append(c.Exclude, patterns...))
}

func getDefaultExclusions() []string {
	return []string{
		"**/.git/**",
		"**/build/**",
		"**/DerivedData/**",
		"**/.build/**",
		"**/Pods/**",
		"**/Carthage/**",
		"**/*.xcodeproj/**",
		"**/*.xcworkspace/**",
		"**/*.backup*",
		"**/*.backup*/**",
	}
}
