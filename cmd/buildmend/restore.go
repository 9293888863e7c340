package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/manifest"
)

func restoreCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if cfg.Project.Manifest == "" {
		path, err := config.FindManifest(cfg.Project.Root)
		if err != nil {
			return err
		}
		cfg.Project.Manifest = path
	}

	store := manifest.NewStore(cfg.Project.Manifest)
	w := stdout(c)

	if c.Bool("list") {
		backups, err := store.Backups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Fprintln(w, "no backups")
		}
		for _, b := range backups {
			fmt.Fprintln(w, b)
		}
		return nil
	}

	used, err := store.Restore()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "restored %s from %s\n", cfg.Project.Manifest, used)
	return nil
}
