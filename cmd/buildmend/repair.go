package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/debug"
	"github.com/standardbeagle/buildmend/internal/display"
	"github.com/standardbeagle/buildmend/internal/repair"
	"github.com/standardbeagle/buildmend/pkg/pathutil"
)

// repairOptions lets tests inject a build runner and ID generator
var repairOptions []repair.Option

func repairCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctrl, err := repair.New(cfg, repairOptions...)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	if cfg.Repair.DryRun {
		preview, err := ctrl.Preview(ctx)
		if err != nil {
			return err
		}
		relativizePreview(preview, cfg.Project.Root)
		return display.PrintPreview(stdout(c), preview, c.Bool("diff"))
	}

	out := ctrl.Run(ctx)
	display.PrintSummary(stdout(c), out)

	if path := c.String("report"); path != "" {
		if err := display.WriteReport(path, out); err != nil {
			debug.Logger("cli").Warn("report not written", zap.String("path", path), zap.Error(err))
		}
	}

	if !out.Succeeded() {
		return cli.Exit(fmt.Sprintf("repair abandoned after %d attempts", len(out.Attempts)), 1)
	}
	return nil
}

// relativizePreview rewrites file paths relative to root for display
func relativizePreview(p *repair.Preview, root string) {
	for i := range p.Files {
		p.Files[i].Path = pathutil.ToRelative(p.Files[i].Path, root)
	}
	failed := make(map[string]error, len(p.Failed))
	for path, err := range p.Failed {
		failed[pathutil.ToRelative(path, root)] = err
	}
	p.Failed = failed
}
