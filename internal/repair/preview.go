package repair

import (
	"context"
	"sort"

	"github.com/standardbeagle/buildmend/internal/manifest"
)

// FileChange is a source file the pool would rewrite
type FileChange struct {
	Path     string
	Fixes    int
	Removed  int
	PerRule  map[string]int
	Original string
	Updated  string
}

// Preview is what one repair pass would do, computed without building or writing
type Preview struct {
	Files           []FileChange
	Failed          map[string]error
	ManifestChanges []manifest.Change
	ManifestBefore  string
	ManifestAfter   string
}

// Fixes returns the total edits across all files
func (p *Preview) Fixes() int {
	n := 0
	for _, f := range p.Files {
		n += f.Fixes + f.Removed
	}
	return n
}

// Preview runs Init, Discover and a non-writing Repair pass
func (c *Controller) Preview(ctx context.Context) (*Preview, error) {
	c.cfg.Repair.DryRun = true
	c.enter(StateInit)
	if err := c.init(); err != nil {
		return nil, err
	}
	c.pipe.DryRun = true

	c.enter(StateDiscover)
	if err := c.discover(ctx); err != nil {
		return nil, err
	}

	c.enter(StateRepair)
	results := c.pool.Process(ctx, c.files, c.pipe)
	p := &Preview{Failed: make(map[string]error)}
	for path, r := range results {
		switch {
		case r.Err != nil:
			p.Failed[path] = r.Err
		case r.Changed:
			p.Files = append(p.Files, FileChange{
				Path:     path,
				Fixes:    r.Fixes,
				Removed:  r.Removed,
				PerRule:  r.PerRule,
				Original: r.Original,
				Updated:  r.Updated,
			})
		}
	}
	sort.Slice(p.Files, func(i, j int) bool { return p.Files[i].Path < p.Files[j].Path })

	if c.cfg.Repair.Reconcile {
		m, err := c.store.Load()
		if err != nil {
			return p, err
		}
		if c.idGen != nil {
			m = m.WithIDGenerator(c.idGen)
		}
		p.ManifestBefore = m.Text()
		p.ManifestChanges = c.reconciler.Plan(m, c.files, nil)
		if _, err := c.reconciler.Apply(m, p.ManifestChanges); err != nil {
			return p, err
		}
		p.ManifestAfter = m.Text()
	}
	return p, ctx.Err()
}
