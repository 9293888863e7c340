package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/standardbeagle/buildmend/internal/debug"
	bmerrors "github.com/standardbeagle/buildmend/internal/errors"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

// Batch is one debounced group of source file events
type Batch struct {
	Changed []string // created or written, sorted
	Removed []string // removed or renamed away, sorted
}

// Empty reports whether the batch has no events
func (b Batch) Empty() bool { return len(b.Changed) == 0 && len(b.Removed) == 0 }

// Watcher monitors the source root and delivers debounced batches of matching
// file events. Batches are delivered one at a time from the event goroutine,
// so the callback never runs concurrently with itself.
type Watcher struct {
	watcher  *fsnotify.Watcher
	scanner  *Scanner
	debounce time.Duration
	onBatch  func(Batch)

	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu         sync.RWMutex
	eventsProcessed int64
	batches         int64
	errorCount      int64
}

// NewWatcher creates a watcher for the scanner's source root
func NewWatcher(scanner *Scanner, debounce time.Duration, onBatch func(Batch)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{watcher: w, scanner: scanner, debounce: debounce, onBatch: onBatch}, nil
}

// Start adds watches and begins delivering batches until ctx is done or Stop is called
func (fw *Watcher) Start(ctx context.Context) error {
	root := fw.scanner.SourceRoot()
	debug.Log("watch", "Starting file watcher for directory: %s", root)

	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return bmerrors.NewFileError("watch", root, bmerrors.ErrNoSourceRoot)
	}

	if err := fw.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	ctx, fw.cancel = context.WithCancel(ctx)
	fw.wg.Add(1)
	go fw.processEvents(ctx)
	return nil
}

// Stop stops the watcher and waits for the event goroutine. Pending events
// that have not been flushed are dropped.
func (fw *Watcher) Stop() error {
	if fw.cancel != nil {
		fw.cancel()
	}
	err := fw.watcher.Close()
	fw.wg.Wait()
	debug.Log("watch", "File watcher stopped")
	return err
}

// Stats returns events seen, batches delivered and watcher errors
func (fw *Watcher) Stats() (events, batches, errs int64) {
	fw.statsMu.RLock()
	defer fw.statsMu.RUnlock()
	return fw.eventsProcessed, fw.batches, fw.errorCount
}

// addWatches recursively adds watches to all relevant directories
func (fw *Watcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if path != root && fw.scanner.excludedDir(fw.scanner.relative(path)) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			debug.Logger("watch").Warn("failed to add watch", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// processEvents reads fsnotify events and flushes a batch once no event has
// arrived for the debounce interval
func (fw *Watcher) processEvents(ctx context.Context) {
	defer fw.wg.Done()

	pending := make(map[string]FileEventType)
	timer := time.NewTimer(fw.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.handleEvent(event, pending) {
				timer.Reset(fw.debounce)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.statsMu.Lock()
			fw.errorCount++
			fw.statsMu.Unlock()
			debug.Logger("watch").Warn("watcher error", zap.Error(err))

		case <-timer.C:
			fw.flush(pending)
			pending = make(map[string]FileEventType)
		}
	}
}

// handleEvent records a matching event and reports whether one was recorded
func (fw *Watcher) handleEvent(event fsnotify.Event, pending map[string]FileEventType) bool {
	path := event.Name

	info, err := os.Stat(path)
	if err != nil {
		// File might have been deleted
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && fw.scanner.Matches(path) {
			pending[path] = FileEventRemove
			return true
		}
		return false
	}

	if info.IsDir() {
		// New directories need their own watch
		if event.Op&fsnotify.Create != 0 && !fw.scanner.excludedDir(fw.scanner.relative(path)) {
			if err := fw.addWatches(path); err != nil {
				debug.Logger("watch").Warn("failed to watch new directory", zap.String("dir", path), zap.Error(err))
			}
		}
		return false
	}

	if !fw.scanner.Matches(path) {
		return false
	}

	var eventType FileEventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = FileEventCreate
	case event.Op&fsnotify.Write != 0:
		eventType = FileEventWrite
	case event.Op&fsnotify.Remove != 0:
		eventType = FileEventRemove
	case event.Op&fsnotify.Rename != 0:
		eventType = FileEventRename
	default:
		return false
	}

	// Store the latest event for this path
	pending[path] = eventType
	fw.statsMu.Lock()
	fw.eventsProcessed++
	fw.statsMu.Unlock()
	return true
}

func (fw *Watcher) flush(pending map[string]FileEventType) {
	var b Batch
	for path, ev := range pending {
		switch ev {
		case FileEventRemove, FileEventRename:
			b.Removed = append(b.Removed, path)
		default:
			b.Changed = append(b.Changed, path)
		}
	}
	if b.Empty() {
		return
	}
	sort.Strings(b.Changed)
	sort.Strings(b.Removed)

	fw.statsMu.Lock()
	fw.batches++
	fw.statsMu.Unlock()
	debug.Log("watch", "Flushing %d changed, %d removed", len(b.Changed), len(b.Removed))
	if fw.onBatch != nil {
		fw.onBatch(b)
	}
}
