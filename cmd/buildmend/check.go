package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/buildmend/internal/display"
	"github.com/standardbeagle/buildmend/internal/manifest"
)

func checkCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if err := cfg.ResolveProject(); err != nil {
		return err
	}

	m, err := manifest.NewStore(cfg.Project.Manifest).Load()
	if err != nil {
		return err
	}

	w := stdout(c)
	if c.Bool("tree") {
		formatter := display.NewTreeFormatter(display.FormatterOptions{
			Format:     c.String("format"),
			ShowIDs:    c.Bool("ids"),
			ShowPhases: true,
			MaxDepth:   c.Int("depth"),
		})
		fmt.Fprintln(w, formatter.Format(m))
	}

	if err := m.CheckSyntax(); err != nil {
		return cli.Exit(fmt.Sprintf("manifest does not round-trip: %v", err), 1)
	}

	violations := m.Validate()
	display.PrintViolations(w, violations)
	if n := len(manifest.Errors(violations)); n > 0 {
		return cli.Exit(fmt.Sprintf("%d manifest errors", n), 1)
	}
	return nil
}
