// Package build invokes the external build tool and turns its output into an
// error count the repair loop can trend on.
package build

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/buildmend/internal/config"
)

// DefaultOutputLimit caps how much combined output a single build keeps
const DefaultOutputLimit = 8 << 20

// Invocation describes one external build
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// String renders the invocation for logs
func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Command}, inv.Args...), " ")
}

// Execution is the raw result of running an Invocation
type Execution struct {
	ExitCode int
	Output   string // combined stdout and stderr
	TimedOut bool
	Duration time.Duration
	Err      error // set when the command could not run or was killed
}

// Runner executes a build invocation
type Runner interface {
	Run(ctx context.Context, inv Invocation) Execution
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, inv Invocation) Execution

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) Execution { return f(ctx, inv) }

// ExecRunner runs invocations as child processes
type ExecRunner struct {
	OutputLimit int
}

// Run starts the command and waits for it or for the timeout
func (r ExecRunner) Run(ctx context.Context, inv Invocation) Execution {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	limit := r.OutputLimit
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	out := &limitedBuffer{limit: limit}

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	exe := Execution{Output: out.String(), Duration: time.Since(start), ExitCode: -1}

	if ctx.Err() == context.DeadlineExceeded {
		exe.TimedOut = true
		exe.Err = ctx.Err()
		return exe
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		exe.ExitCode = 0
	case errors.As(err, &exitErr) && exitErr.Exited():
		exe.ExitCode = exitErr.ExitCode()
	default:
		exe.Err = err
	}
	return exe
}

// limitedBuffer keeps the first limit bytes written to it. The process
// writes stdout and stderr from separate goroutines.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return b.buf.String() + "\n[output truncated]\n"
	}
	return b.buf.String()
}

// InvocationFor builds the command line for cfg. The xcodebuild command gets
// the project, scheme, destination and action arguments; any other command
// is run with only Build.ExtraArgs.
func InvocationFor(cfg *config.Config, action string) Invocation {
	if action == "" {
		action = cfg.Build.Action
	}
	inv := Invocation{
		Command: cfg.Build.Command,
		Dir:     cfg.Project.Root,
		Timeout: time.Duration(cfg.Build.TimeoutSec) * time.Second,
	}

	if filepath.Base(cfg.Build.Command) == config.DefaultCommand {
		if cfg.Project.Manifest != "" {
			inv.Args = append(inv.Args, "-project", filepath.Dir(cfg.Project.Manifest))
		}
		if cfg.Build.Scheme != "" {
			inv.Args = append(inv.Args, "-scheme", cfg.Build.Scheme)
		}
		if cfg.Build.Destination != "" && action != "clean" {
			inv.Args = append(inv.Args, "-destination", cfg.Build.Destination)
		}
		inv.Args = append(inv.Args, action)
	}
	inv.Args = append(inv.Args, cfg.Build.ExtraArgs...)
	return inv
}
