package config

import (
	"errors"
	"testing"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{
		Project: Project{
			Root: "/test/root",
			Name: "App",
		},
	}

	validator := NewValidator()
	if err := validator.ValidateAndSetDefaults(cfg); err != nil {
		t.Fatalf("ValidateAndSetDefaults failed: %v", err)
	}

	if cfg.Repair.Workers == 0 {
		t.Errorf("Workers should have been set to CPU count")
	}
	if cfg.Repair.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts should default to %d, got %d", DefaultMaxAttempts, cfg.Repair.MaxAttempts)
	}
	if cfg.Build.Command != DefaultCommand {
		t.Errorf("Command should default to %s, got %s", DefaultCommand, cfg.Build.Command)
	}
	if cfg.Build.Scheme != "App" {
		t.Errorf("Scheme should default to the project name, got %q", cfg.Build.Scheme)
	}
	if cfg.Build.TimeoutSec != DefaultTimeoutSec {
		t.Errorf("TimeoutSec should default to %d, got %d", DefaultTimeoutSec, cfg.Build.TimeoutSec)
	}
	if len(cfg.Include) != 1 || cfg.Include[0] != "**/*.swift" {
		t.Errorf("Include should default to **/*.swift, got %v", cfg.Include)
	}
}

func TestValidateAndSetDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Project: Project{Root: "/r"},
		Build:   Build{Command: "fake-build", Scheme: "Other", Action: "clean", TimeoutSec: 5},
		Repair:  Repair{MaxAttempts: 1, Workers: 2},
	}

	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
	if cfg.Build.Command != "fake-build" || cfg.Build.Scheme != "Other" || cfg.Build.Action != "clean" {
		t.Errorf("explicit build settings were overwritten: %+v", cfg.Build)
	}
	if cfg.Repair.MaxAttempts != 1 || cfg.Repair.Workers != 2 {
		t.Errorf("explicit repair settings were overwritten: %+v", cfg.Repair)
	}
}

func TestValidateAndSetDefaults_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"empty root", Config{}, "project"},
		{"bad action", Config{Project: Project{Root: "/r"}, Build: Build{Action: "archive"}}, "build"},
		{"negative timeout", Config{Project: Project{Root: "/r"}, Build: Build{TimeoutSec: -1}}, "build"},
		{"negative attempts", Config{Project: Project{Root: "/r"}, Repair: Repair{MaxAttempts: -1}}, "repair"},
		{"negative backoff", Config{Project: Project{Root: "/r"}, Repair: Repair{BackoffMs: -5}}, "repair"},
		{"negative workers", Config{Project: Project{Root: "/r"}, Repair: Repair{Workers: -2}}, "repair"},
		{"negative debounce", Config{Project: Project{Root: "/r"}, Watch: Watch{DebounceMs: -1}}, "watch.debounce_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := ValidateConfig(&cfg)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var ce *bmerrors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %T", err)
			}
			if ce.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ce.Field)
			}
		})
	}
}
