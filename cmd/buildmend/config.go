package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/buildmend/internal/build"
	"github.com/standardbeagle/buildmend/internal/pipeline"
)

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	// Fill derived values when the layout allows it; show the raw config otherwise
	_ = cfg.ResolveProject()

	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = stdout(c).Write(content)
	return err
}

func configValidateCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		fmt.Fprintf(stdout(c), "✘ Configuration validation failed: %v\n", err)
		return err
	}
	if err := cfg.ResolveProject(); err != nil {
		fmt.Fprintf(stdout(c), "✘ Project layout invalid: %v\n", err)
		return err
	}

	files, err := pipeline.NewScanner(cfg).Scan(c.Context)
	if err != nil {
		return err
	}

	var warnings []string
	if len(files) == 0 {
		warnings = append(warnings, "no source files match the include patterns")
	}
	if cfg.Repair.MaxAttempts == 1 {
		warnings = append(warnings, "max attempts is 1, the build is never retried after repair")
	}

	w := stdout(c)
	fmt.Fprintf(w, "✔ Configuration is valid\n")
	fmt.Fprintf(w, "  manifest:    %s\n", cfg.Project.Manifest)
	fmt.Fprintf(w, "  sources:     %s (%d files)\n", cfg.Project.SourceRoot, len(files))
	fmt.Fprintf(w, "  build:       %s\n", build.InvocationFor(cfg, cfg.Build.Action))
	fmt.Fprintf(w, "  attempts:    %d, %d workers\n", cfg.Repair.MaxAttempts, cfg.Repair.Workers)
	for _, warning := range warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	return nil
}
