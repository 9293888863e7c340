package pipeline

import (
	"context"
	"os"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/buildmend/internal/balance"
	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
	"github.com/standardbeagle/buildmend/internal/rules"
)

// Pipeline is the per-file transformation: the rule engine followed by the
// scope balancer
type Pipeline struct {
	Engine  *rules.Engine
	Balance bool
	DryRun  bool // compute results without writing files
}

// NewPipeline returns a pipeline that runs engine then balances scopes
func NewPipeline(engine *rules.Engine) *Pipeline {
	if engine == nil {
		engine = rules.Default()
	}
	return &Pipeline{Engine: engine, Balance: true}
}

// Transform applies the pipeline to one file's text
func (p *Pipeline) Transform(text string) (out string, fixes, removed int, perRule map[string]int) {
	out = text
	if p.Engine != nil {
		res := p.Engine.ApplyDetailed(text)
		out, fixes, perRule = res.Text, res.Fixes, res.PerRule
	}
	if p.Balance {
		out, removed = balance.Balance(out)
	}
	return out, fixes, removed, perRule
}

// FileResult is the outcome of one file in a pool pass
type FileResult struct {
	Path       string
	Fixes      int // rule edits
	Removed    int // orphan closers dropped by the balancer
	Changed    bool
	Err        error
	Digest     uint64 // content digest after the pass
	PrevDigest uint64 // content digest before the pass
	PerRule    map[string]int

	// Set only for dry runs with changes
	Original string
	Updated  string
}

// Total returns all edits made to the file
func (r FileResult) Total() int { return r.Fixes + r.Removed }

// Pool runs a Pipeline over a file set with bounded concurrency
type Pool struct {
	workers  int
	progress *Progress
}

// NewPool creates a pool. workers <= 0 uses the number of CPUs.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers, progress: NewProgress()}
}

// Workers returns the concurrency limit
func (p *Pool) Workers() int { return p.workers }

// Progress returns the tracker for the current or last pass
func (p *Pool) Progress() *Progress { return p.progress }

// Process runs pipe over every file and returns exactly one result per
// distinct input path. A failing file never cancels its siblings. When ctx is
// cancelled, files not yet started report ctx.Err().
func (p *Pool) Process(ctx context.Context, files []string, pipe *Pipeline) map[string]FileResult {
	unique := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			unique = append(unique, f)
		}
	}

	p.progress.Reset(len(unique))
	results := make(map[string]FileResult, len(unique))
	resultCh := make(chan FileResult, p.workers)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range resultCh {
			results[r.Path] = r
			p.progress.record(r)
		}
	}()

	// Tasks never return errors; per-file failures travel on the result
	var g errgroup.Group
	g.SetLimit(p.workers)
	for _, path := range unique {
		if err := ctx.Err(); err != nil {
			resultCh <- FileResult{Path: path, Err: err}
			continue
		}
		path := path
		g.Go(func() error {
			resultCh <- processFile(ctx, path, pipe)
			return nil
		})
	}
	_ = g.Wait()
	close(resultCh)
	<-done

	snap := p.progress.Snapshot()
	debug.Logger("pool").Info("pass complete",
		zap.Int("files", snap.FilesProcessed),
		zap.Int("changed", snap.FilesChanged),
		zap.Int("failed", snap.FilesFailed),
		zap.Int("fixes", snap.Fixes),
		zap.Duration("elapsed", snap.Elapsed))
	return results
}

func processFile(ctx context.Context, path string, pipe *Pipeline) FileResult {
	res := FileResult{Path: path}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	info, err := os.Stat(path)
	if err != nil {
		return failed(res, "stat", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(res, "read", err)
	}

	text := string(data)
	out, fixes, removed, perRule := pipe.Transform(text)
	res.Fixes, res.Removed, res.PerRule = fixes, removed, perRule
	res.PrevDigest = Digest(text)
	res.Digest = Digest(out)
	res.Changed = out != text
	if !res.Changed {
		return res
	}

	if pipe.DryRun {
		res.Original, res.Updated = text, out
		return res
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		res.Digest = res.PrevDigest
		res.Changed = false
		return failed(res, "write", err)
	}
	debug.LogPool("%s: %d fixes, %d orphan closers removed", path, fixes, removed)
	return res
}

func failed(res FileResult, op string, err error) FileResult {
	res.Err = bmerrors.NewFileError(op, res.Path, err)
	res.Fixes, res.Removed = 0, 0
	debug.Logger("pool").Warn("file skipped", zap.String("path", res.Path), zap.Error(err))
	return res
}
