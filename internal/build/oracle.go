package build

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/config"
	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// UnknownErrors is the error count of a build that produced no usable output
const UnknownErrors = -1

// Report is the outcome of one build
type Report struct {
	Succeeded     bool
	ErrorCount    int // UnknownErrors when the build timed out or could not start
	TimedOut      bool
	Output        string
	Diagnostics   []Diagnostic
	MissingInputs []string
	Err           error
}

// Known reports whether ErrorCount is a real count
func (r Report) Known() bool { return r.ErrorCount != UnknownErrors }

// Oracle runs the configured build and classifies its output
type Oracle struct {
	runner Runner
	cfg    *config.Config
}

// NewOracle creates an oracle. A nil runner uses ExecRunner.
func NewOracle(cfg *config.Config, runner Runner) *Oracle {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Oracle{runner: runner, cfg: cfg}
}

// Run performs one build
func (o *Oracle) Run(ctx context.Context) Report {
	return o.run(ctx, InvocationFor(o.cfg, ""))
}

// Clean runs the build tool's clean action
func (o *Oracle) Clean(ctx context.Context) Report {
	return o.run(ctx, InvocationFor(o.cfg, "clean"))
}

func (o *Oracle) run(ctx context.Context, inv Invocation) Report {
	log := debug.Logger("build")
	log.Info("running build", zap.String("command", inv.String()))

	exe := o.runner.Run(ctx, inv)
	rep := Report{Output: exe.Output, TimedOut: exe.TimedOut}

	if exe.TimedOut {
		rep.ErrorCount = UnknownErrors
		rep.Err = bmerrors.NewBuildError(inv.String(), true,
			fmt.Errorf("no result after %s: %w", inv.Timeout, exe.Err))
		log.Warn("build timed out", zap.Duration("timeout", inv.Timeout))
		return rep
	}
	if exe.Err != nil {
		rep.ErrorCount = UnknownErrors
		rep.Err = bmerrors.NewBuildError(inv.String(), false, exe.Err)
		log.Error("build could not run", zap.Error(exe.Err))
		return rep
	}

	c := Classify(exe.Output)
	rep.ErrorCount = c.ErrorCount
	rep.Diagnostics = c.Diagnostics
	rep.MissingInputs = c.MissingInputs
	rep.Succeeded = exe.ExitCode == 0 && c.ErrorCount == 0

	log.Info("build finished",
		zap.Bool("succeeded", rep.Succeeded),
		zap.Int("exit", exe.ExitCode),
		zap.Int("errors", rep.ErrorCount),
		zap.Duration("elapsed", exe.Duration))
	return rep
}
