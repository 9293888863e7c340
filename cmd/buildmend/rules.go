package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/buildmend/internal/display"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
	"github.com/standardbeagle/buildmend/internal/pipeline"
	"github.com/standardbeagle/buildmend/internal/repair"
	"github.com/standardbeagle/buildmend/internal/rules"
)

func loadEngine(c *cli.Context) (*rules.Engine, error) {
	engine := rules.Default()
	if path := c.String("rules"); path != "" {
		pack, err := rules.LoadPackFile(path)
		if err != nil {
			return nil, err
		}
		engine.Add(pack...)
	}
	return engine, nil
}

// rulesCommand lists the rules, or with file arguments shows what they would
// change. Files are never written.
func rulesCommand(c *cli.Context) error {
	engine, err := loadEngine(c)
	if err != nil {
		return err
	}
	w := stdout(c)

	if c.NArg() == 0 {
		for i, r := range engine.Rules() {
			fmt.Fprintf(w, "%3d  %-9s %s\n", i+1, r.Category(), r.Name())
		}
		return nil
	}

	files := make([]string, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		files = append(files, abs)
	}

	if c.Bool("verify") {
		return checkIdempotence(c, engine, files)
	}

	pipe := pipeline.NewPipeline(engine)
	pipe.DryRun = true
	results := pipeline.NewPool(0).Process(c.Context, files, pipe)

	preview := &repair.Preview{Failed: make(map[string]error)}
	for path, r := range results {
		switch {
		case r.Err != nil:
			preview.Failed[path] = r.Err
		case r.Changed:
			preview.Files = append(preview.Files, repair.FileChange{
				Path:     path,
				Fixes:    r.Fixes,
				Removed:  r.Removed,
				PerRule:  r.PerRule,
				Original: r.Original,
				Updated:  r.Updated,
			})
		}
	}
	if wd, err := os.Getwd(); err == nil {
		relativizePreview(preview, wd)
	}
	sort.Slice(preview.Files, func(i, j int) bool { return preview.Files[i].Path < preview.Files[j].Path })
	return display.PrintPreview(w, preview, c.Bool("diff"))
}

func checkIdempotence(c *cli.Context, engine *rules.Engine, files []string) error {
	w := stdout(c)
	drifting := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return bmerrors.NewFileError("read", path, err)
		}
		if names := engine.VerifyIdempotent(string(data)); len(names) > 0 {
			drifting++
			fmt.Fprintf(w, "%s: not idempotent: %s\n", path, strings.Join(names, ", "))
		}
	}
	if drifting > 0 {
		return cli.Exit(fmt.Sprintf("%d files with non-idempotent rules", drifting), 1)
	}
	fmt.Fprintf(w, "%d files checked, rules are idempotent\n", len(files))
	return nil
}
