// Package repair drives the convergence loop: build, measure, fix sources and
// manifest, rebuild, and decide whether to go again.
package repair

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/build"
	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/debug"
	"github.com/standardbeagle/buildmend/internal/manifest"
	"github.com/standardbeagle/buildmend/internal/pipeline"
	"github.com/standardbeagle/buildmend/internal/rules"
)

// Controller runs the repair state machine for one project. It is not safe
// for concurrent use; the manifest is only ever touched from Run.
type Controller struct {
	cfg        *config.Config
	engine     *rules.Engine
	runner     build.Runner
	idGen      manifest.IDGenerator
	onState    func(State)
	onAttempt  func(AttemptRecord)
	sleep      func(ctx context.Context, d time.Duration) error
	resolved   bool
	oracle     *build.Oracle
	cleaner    *build.Cleaner
	scanner    *pipeline.Scanner
	pool       *pipeline.Pool
	pipe       *pipeline.Pipeline
	store      *manifest.Store
	reconciler *manifest.Reconciler
	history    *pipeline.History

	files []string
}

// Option configures a Controller
type Option func(*Controller)

// WithRunner replaces the process runner used for builds
func WithRunner(r build.Runner) Option {
	return func(c *Controller) { c.runner = r }
}

// WithEngine replaces the rule engine built from the config
func WithEngine(e *rules.Engine) Option {
	return func(c *Controller) { c.engine = e }
}

// WithIDGenerator sets the identifier source for new manifest entries
func WithIDGenerator(g manifest.IDGenerator) Option {
	return func(c *Controller) { c.idGen = g }
}

// WithStateHook is called on every state transition
func WithStateHook(fn func(State)) Option {
	return func(c *Controller) { c.onState = fn }
}

// WithAttemptHook is called after every finished attempt
func WithAttemptHook(fn func(AttemptRecord)) Option {
	return func(c *Controller) { c.onAttempt = fn }
}

// WithSleep replaces the backoff wait
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = fn }
}

// New creates a controller. The rule engine is the built-in Swift set plus
// the configured rule pack, if any.
func New(cfg *config.Config, opts ...Option) (*Controller, error) {
	c := &Controller{cfg: cfg, sleep: sleepCtx}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = rules.Default()
		if cfg.Repair.RulesFile != "" {
			pack, err := rules.LoadPackFile(cfg.Repair.RulesFile)
			if err != nil {
				return nil, err
			}
			c.engine.Add(pack...)
		}
	}
	return c, nil
}

// Engine returns the rule engine the controller runs
func (c *Controller) Engine() *rules.Engine { return c.engine }

func (c *Controller) enter(s State) {
	debug.Logger("repair").Debug("state", zap.String("state", string(s)))
	if c.onState != nil {
		c.onState(s)
	}
}

// init resolves the project layout and builds the collaborators. Running it
// twice is a no-op.
func (c *Controller) init() error {
	if c.resolved {
		return nil
	}
	if err := c.cfg.ResolveProject(); err != nil {
		return err
	}
	c.oracle = build.NewOracle(c.cfg, c.runner)
	c.cleaner = build.NewCleaner(c.cfg)
	c.scanner = pipeline.NewScanner(c.cfg)
	c.pool = pipeline.NewPool(c.cfg.Repair.Workers)
	c.pipe = pipeline.NewPipeline(c.engine)
	c.pipe.DryRun = c.cfg.Repair.DryRun
	c.store = manifest.NewStore(c.cfg.Project.Manifest)
	c.reconciler = manifest.NewReconciler(filepath.Dir(filepath.Dir(c.cfg.Project.Manifest)))
	c.history = pipeline.NewHistory()
	c.resolved = true
	return nil
}

// discover enumerates source files, reusing the cached list while every
// cached path still exists
func (c *Controller) discover(ctx context.Context) error {
	if c.files != nil && c.structureIntact() {
		return nil
	}
	files, err := c.scanner.Scan(ctx)
	if err != nil {
		return err
	}
	c.files = files
	return nil
}

func (c *Controller) structureIntact() bool {
	for _, f := range c.files {
		if _, err := os.Stat(f); err != nil {
			debug.Logger("repair").Info("source tree changed, rediscovering", zap.String("missing", f))
			return false
		}
	}
	return true
}

// Run executes the convergence loop. It always returns in a terminal state
// after at most Repair.MaxAttempts cycles. Cancellation is honoured between
// phases and yields Abandoned with the context error.
func (c *Controller) Run(ctx context.Context) *Outcome {
	start := time.Now()
	out := &Outcome{FinalErrors: build.UnknownErrors}
	defer func() {
		out.Elapsed = time.Since(start)
		c.enter(out.State)
		c.logOutcome(out)
	}()
	log := debug.Logger("repair")

	c.enter(StateInit)
	if err := c.init(); err != nil {
		out.fail(StateAbandoned, err)
		return out
	}
	out.Project = c.cfg.Project.Name

	c.enter(StateDiscover)
	if err := c.discover(ctx); err != nil {
		out.fail(StateAbandoned, err)
		return out
	}
	out.FilesDiscovered = len(c.files)
	log.Info("discovered sources", zap.Int("files", len(c.files)), zap.String("root", c.scanner.SourceRoot()))

	maxAttempts := max(1, c.cfg.Repair.MaxAttempts)
	touched := make(map[string]bool)

	for attempt := 1; ; attempt++ {
		attemptStart := time.Now()
		rec := AttemptRecord{Attempt: attempt}

		c.enter(StateMeasure)
		before := c.oracle.Run(ctx)
		rec.ErrorsBefore = before.ErrorCount
		out.FinalErrors = before.ErrorCount
		out.Diagnostics = before.Diagnostics
		if before.Succeeded {
			out.State = StateSuccess
			return out
		}
		if err := ctx.Err(); err != nil {
			out.fail(StateAbandoned, err)
			return out
		}

		c.enter(StateRepair)
		if err := c.repair(ctx, before, &rec, touched, out); err != nil {
			out.fail(StateAbandoned, err)
			return out
		}
		out.FixesApplied += rec.FixesApplied
		out.ManifestChanges += rec.ManifestChanges
		out.FilesTouched = len(touched)
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, rec)
			out.fail(StateAbandoned, err)
			return out
		}

		c.enter(StateRebuild)
		after := c.oracle.Run(ctx)
		rec.ErrorsAfter = after.ErrorCount
		rec.Elapsed = time.Since(attemptStart)
		out.FinalErrors = after.ErrorCount
		out.Diagnostics = after.Diagnostics
		out.Attempts = append(out.Attempts, rec)

		c.enter(StateDecide)
		c.logAttempt(rec)
		if c.onAttempt != nil {
			c.onAttempt(rec)
		}
		if after.Succeeded {
			out.State = StateSuccess
			return out
		}
		if attempt >= maxAttempts {
			out.State = StateAbandoned
			return out
		}
		if err := ctx.Err(); err != nil {
			out.fail(StateAbandoned, err)
			return out
		}

		c.cleaner.Clean()
		if err := c.sleep(ctx, time.Duration(c.cfg.Repair.BackoffMs)*time.Millisecond); err != nil {
			out.fail(StateAbandoned, err)
			return out
		}
	}
}

// repair runs one pool pass and then reconciles the manifest. The pool pass
// always runs to completion; cancellation is checked by the caller afterwards.
func (c *Controller) repair(ctx context.Context, before build.Report, rec *AttemptRecord, touched map[string]bool, out *Outcome) error {
	log := debug.Logger("repair")

	if err := c.discover(ctx); err != nil {
		return err
	}
	out.FilesDiscovered = len(c.files)

	results := c.pool.Process(context.WithoutCancel(ctx), c.files, c.pipe)
	paths := make([]string, 0, len(results))
	for p := range results {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		r := results[p]
		if r.Err != nil {
			rec.FilesFailed++
			continue
		}
		if !r.Changed {
			continue
		}
		rec.FixesApplied += r.Total()
		rec.FilesChanged++
		touched[p] = true

		if c.history.Observe(p, r.PrevDigest, r.Digest) {
			rec.Oscillating = append(rec.Oscillating, p)
			log.Warn("file returned to an earlier state; rules may be undoing each other", zap.String("path", p))
		}
		if c.cfg.Repair.VerifyIdempotence {
			c.verify(p)
		}
	}

	if c.cfg.Repair.Reconcile {
		n, backup := c.reconcile(before.MissingInputs)
		rec.ManifestChanges = n
		if backup != "" {
			out.Backups = append(out.Backups, backup)
		}
	}
	return nil
}

// verify re-runs the engine over a freshly fixed file and warns about rules
// that still find something to change
func (c *Controller) verify(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if unstable := c.engine.VerifyIdempotent(string(data)); len(unstable) > 0 {
		debug.Logger("repair").Warn("rules not idempotent", zap.String("path", path), zap.Strings("rules", unstable))
	}
}

// reconcile brings the manifest in line with the discovered files. Any
// failure leaves the manifest on disk untouched.
func (c *Controller) reconcile(missingInputs []string) (applied int, backup string) {
	log := debug.Logger("repair")

	m, err := c.store.Load()
	if err != nil {
		log.Warn("manifest not reconciled", zap.Error(err))
		return 0, ""
	}
	if c.idGen != nil {
		m = m.WithIDGenerator(c.idGen)
	}

	changes := c.reconciler.Plan(m, c.files, missingInputs)
	if len(changes) == 0 {
		return 0, ""
	}

	applied, err = c.reconciler.Apply(m, changes)
	if err != nil {
		log.Warn("some manifest changes failed", zap.Error(err))
	}
	if applied == 0 || c.cfg.Repair.DryRun {
		return applied, ""
	}

	backup, err = c.store.Save(m)
	if err != nil {
		log.Error("manifest save failed", zap.Error(err))
		return 0, backup
	}
	return applied, backup
}

func (c *Controller) logAttempt(rec AttemptRecord) {
	fields := []zap.Field{
		zap.Int("attempt", rec.Attempt),
		zap.Int("errors_before", rec.ErrorsBefore),
		zap.Int("fixes", rec.FixesApplied),
		zap.Int("files_changed", rec.FilesChanged),
		zap.Int("manifest_changes", rec.ManifestChanges),
		zap.Int("errors_after", rec.ErrorsAfter),
		zap.Duration("elapsed", rec.Elapsed),
	}
	if delta, ok := rec.Progress(); ok {
		fields = append(fields, zap.Int("progress", delta))
	}
	debug.Logger("repair").Info("attempt finished", fields...)
}

func (c *Controller) logOutcome(out *Outcome) {
	log := debug.Logger("repair")
	fields := []zap.Field{
		zap.String("state", string(out.State)),
		zap.Int("attempts", len(out.Attempts)),
		zap.Int("files_touched", out.FilesTouched),
		zap.Int("fixes", out.FixesApplied),
		zap.Duration("elapsed", out.Elapsed),
	}
	switch {
	case out.Succeeded():
		log.Info("build repaired", fields...)
	case errors.Is(out.Err, context.Canceled):
		log.Warn("repair interrupted", fields...)
	default:
		log.Warn("repair abandoned", append(fields, zap.Error(out.Err))...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
