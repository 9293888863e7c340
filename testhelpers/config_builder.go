// Package testhelpers provides shared utilities for testing buildmend
package testhelpers

import (
	"path/filepath"

	"github.com/standardbeagle/buildmend/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults.
// Builds never shell out and attempts never sleep unless a test asks for it.
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(projectRoot).
//		WithWorkers(2).
//		WithMaxAttempts(1).
//		Build()
type TestConfigBuilder struct {
	cfg *config.Config
}

// NewTestConfigBuilder creates a config builder for a project laid out like WriteDemoProject
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	cfg := config.Default(projectRoot)
	cfg.Project.Name = "Demo"
	cfg.Project.SourceRoot = filepath.Join(projectRoot, "Demo")
	cfg.Project.Manifest = filepath.Join(projectRoot, "Demo.xcodeproj", "project.pbxproj")
	cfg.Project.RespectGitignore = false
	cfg.Build.Command = "false"
	cfg.Build.Scheme = "Demo"
	cfg.Build.TimeoutSec = 5
	cfg.Repair.BackoffMs = 0
	cfg.Repair.Workers = 2
	cfg.Watch.DebounceMs = 10
	return &TestConfigBuilder{cfg: cfg}
}

// WithExclusions adds additional exclusion patterns
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.cfg.Exclude = append(b.cfg.Exclude, patterns...)
	return b
}

// WithIncludePatterns replaces the include patterns
func (b *TestConfigBuilder) WithIncludePatterns(patterns ...string) *TestConfigBuilder {
	b.cfg.Include = patterns
	return b
}

// WithWorkers sets the pool size
func (b *TestConfigBuilder) WithWorkers(n int) *TestConfigBuilder {
	b.cfg.Repair.Workers = n
	return b
}

// WithMaxAttempts bounds the convergence loop
func (b *TestConfigBuilder) WithMaxAttempts(n int) *TestConfigBuilder {
	b.cfg.Repair.MaxAttempts = n
	return b
}

// WithBackoffMs sets the pause between attempts
func (b *TestConfigBuilder) WithBackoffMs(ms int) *TestConfigBuilder {
	b.cfg.Repair.BackoffMs = ms
	return b
}

// WithDryRun computes fixes without writing
func (b *TestConfigBuilder) WithDryRun(dry bool) *TestConfigBuilder {
	b.cfg.Repair.DryRun = dry
	return b
}

// WithReconcile toggles manifest reconciliation
func (b *TestConfigBuilder) WithReconcile(on bool) *TestConfigBuilder {
	b.cfg.Repair.Reconcile = on
	return b
}

// WithRulesFile points at a TOML rule pack
func (b *TestConfigBuilder) WithRulesFile(path string) *TestConfigBuilder {
	b.cfg.Repair.RulesFile = path
	return b
}

// WithCleanup enables DerivedData cleanup under dir
func (b *TestConfigBuilder) WithCleanup(dir string) *TestConfigBuilder {
	b.cfg.Cleanup.Enabled = true
	b.cfg.Cleanup.DerivedData = dir
	return b
}

// Build returns the config
func (b *TestConfigBuilder) Build() *config.Config {
	cp := *b.cfg
	cp.Include = append([]string(nil), b.cfg.Include...)
	cp.Exclude = append([]string(nil), b.cfg.Exclude...)
	return &cp
}
