package config

import (
	"errors"
	"fmt"
	"runtime"

	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return bmerrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateBuildConfig(&cfg.Build); err != nil {
		return bmerrors.NewConfigError("build", cfg.Build.Action, err)
	}

	if err := v.validateRepairConfig(&cfg.Repair); err != nil {
		return bmerrors.NewConfigError("repair", fmt.Sprint(cfg.Repair.MaxAttempts), err)
	}

	if cfg.Watch.DebounceMs < 0 {
		return bmerrors.NewConfigError("watch.debounce_ms", fmt.Sprint(cfg.Watch.DebounceMs),
			errors.New("debounce cannot be negative"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

// validateProjectConfig validates project configuration
func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

// validateBuildConfig validates build invocation settings
func (v *Validator) validateBuildConfig(build *Build) error {
	switch build.Action {
	case "", "build", "clean":
	default:
		return fmt.Errorf("action must be build or clean, got %q", build.Action)
	}

	if build.TimeoutSec < 0 {
		return fmt.Errorf("TimeoutSec cannot be negative, got %d", build.TimeoutSec)
	}

	return nil
}

// validateRepairConfig validates convergence loop settings
func (v *Validator) validateRepairConfig(repair *Repair) error {
	// MaxAttempts: 0 means default (set by smart defaults)
	if repair.MaxAttempts < 0 {
		return fmt.Errorf("MaxAttempts cannot be negative, got %d", repair.MaxAttempts)
	}

	if repair.BackoffMs < 0 {
		return fmt.Errorf("BackoffMs cannot be negative, got %d", repair.BackoffMs)
	}

	// Workers: 0 means auto-detect (set by smart defaults)
	if repair.Workers < 0 {
		return fmt.Errorf("Workers cannot be negative, got %d", repair.Workers)
	}

	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Repair.Workers == 0 {
		cfg.Repair.Workers = max(1, runtime.NumCPU())
	}

	if cfg.Repair.MaxAttempts == 0 {
		cfg.Repair.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.Build.Command == "" {
		cfg.Build.Command = DefaultCommand
	}

	if cfg.Build.Action == "" {
		cfg.Build.Action = DefaultAction
	}

	if cfg.Build.Destination == "" {
		cfg.Build.Destination = DefaultDestination
	}

	if cfg.Build.TimeoutSec == 0 {
		cfg.Build.TimeoutSec = DefaultTimeoutSec
	}

	if cfg.Build.Scheme == "" {
		cfg.Build.Scheme = cfg.Project.Name
	}

	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.swift"}
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
