package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/buildmend/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// Options controls how the process-wide logger is built
type Options struct {
	Verbose bool      // Debug level instead of Info
	Quiet   bool      // Warn level and above only
	Output  io.Writer // Defaults to stderr
}

// Init builds the console logger used by every component and installs it.
// Lines are severity tagged (DEBUG/INFO/WARN/ERROR) and carry the component name.
func Init(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	switch {
	case opts.Verbose || IsDebugEnabled():
		level = zapcore.DebugLevel
	case opts.Quiet:
		level = zapcore.WarnLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(out)), level)
	l := zap.New(core)
	SetLogger(l)
	return l
}

// SetLogger replaces the process-wide logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// L returns the process-wide logger
func L() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Logger returns a logger named after a component (e.g. "pool", "oracle")
func Logger(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered log entries. Errors from syncing a terminal are ignored.
func Sync() {
	_ = L().Sync()
}

// IsDebugEnabled returns true if debug mode is enabled by build flag or DEBUG env
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

// Log provides printf-style debug logging with component names
func Log(component, format string, args ...interface{}) {
	Logger(component).Debug(fmt.Sprintf(format, args...))
}

// LogPool provides debug logging for worker pool operations
func LogPool(format string, args ...interface{}) {
	Log("pool", format, args...)
}

// LogManifest provides debug logging for manifest edits
func LogManifest(format string, args ...interface{}) {
	Log("manifest", format, args...)
}
