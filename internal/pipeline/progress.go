package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress tracks a pool pass. Counters are updated by the result collector
// and may be read concurrently, e.g. by a status printer.
type Progress struct {
	total     atomic.Int64
	processed atomic.Int64
	changed   atomic.Int64
	failed    atomic.Int64
	fixes     atomic.Int64

	mu          sync.RWMutex
	currentFile string
	startTime   time.Time
}

// ProgressSnapshot is a point-in-time copy of Progress
type ProgressSnapshot struct {
	TotalFiles     int
	FilesProcessed int
	FilesChanged   int
	FilesFailed    int
	Fixes          int
	CurrentFile    string
	FilesPerSecond float64
	Elapsed        time.Duration
}

// NewProgress creates a progress tracker
func NewProgress() *Progress {
	return &Progress{startTime: time.Now()}
}

// Reset starts a new pass over total files
func (p *Progress) Reset(total int) {
	p.total.Store(int64(total))
	p.processed.Store(0)
	p.changed.Store(0)
	p.failed.Store(0)
	p.fixes.Store(0)
	p.mu.Lock()
	p.currentFile = ""
	p.startTime = time.Now()
	p.mu.Unlock()
}

func (p *Progress) record(r FileResult) {
	p.processed.Add(1)
	if r.Changed {
		p.changed.Add(1)
	}
	if r.Err != nil {
		p.failed.Add(1)
	}
	p.fixes.Add(int64(r.Fixes + r.Removed))
	p.mu.Lock()
	p.currentFile = r.Path
	p.mu.Unlock()
}

// Snapshot returns the current counters
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	current := p.currentFile
	start := p.startTime
	p.mu.RUnlock()

	processed := p.processed.Load()
	elapsed := time.Since(start)
	var rate float64
	if processed > 0 && elapsed > 0 {
		rate = float64(processed) / elapsed.Seconds()
	}

	return ProgressSnapshot{
		TotalFiles:     int(p.total.Load()),
		FilesProcessed: int(processed),
		FilesChanged:   int(p.changed.Load()),
		FilesFailed:    int(p.failed.Load()),
		Fixes:          int(p.fixes.Load()),
		CurrentFile:    current,
		FilesPerSecond: rate,
		Elapsed:        elapsed,
	}
}
