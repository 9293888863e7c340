package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/debug"
	"github.com/standardbeagle/buildmend/internal/pipeline"
	"github.com/standardbeagle/buildmend/pkg/pathutil"
)

// watchCommand rewrites sources as they are saved. It never builds; files the
// rules leave unchanged are not written, so its own writes settle after one pass.
func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if c.IsSet("debounce-ms") {
		cfg.Watch.DebounceMs = c.Int("debounce-ms")
	}
	if err := cfg.ResolveProject(); err != nil {
		return err
	}
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(c)
	defer stop()

	log := debug.Logger("watch")
	scanner := pipeline.NewScanner(cfg)
	pool := pipeline.NewPool(cfg.Repair.Workers)
	pipe := pipeline.NewPipeline(engine)
	w := stdout(c)

	onBatch := func(b pipeline.Batch) {
		for _, path := range b.Removed {
			log.Debug("source removed", zap.String("path", path))
		}
		if len(b.Changed) == 0 {
			return
		}
		results := pool.Process(ctx, b.Changed, pipe)
		for _, path := range b.Changed {
			r := results[path]
			switch {
			case r.Err != nil:
				log.Warn("file skipped", zap.String("path", path), zap.Error(r.Err))
			case r.Changed:
				fmt.Fprintf(w, "%s  %d fixes\n", pathutil.ToRelative(path, cfg.Project.Root), r.Total())
			}
		}
	}

	watcher, err := pipeline.NewWatcher(scanner, time.Duration(cfg.Watch.DebounceMs)*time.Millisecond, onBatch)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		_ = watcher.Stop()
		return err
	}
	log.Info("watching", zap.String("root", scanner.SourceRoot()))

	<-ctx.Done()
	err = watcher.Stop()
	events, batches, errs := watcher.Stats()
	log.Info("watch stopped", zap.Int64("events", events), zap.Int64("batches", batches), zap.Int64("errors", errs))
	return err
}
