package pipeline

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Digest returns the content hash used to compare file states across passes
func Digest(text string) uint64 {
	return xxhash.Sum64String(text)
}

// History records every digest each file has had during a run. A file that
// is rewritten back into a state it already had is oscillating: some rule is
// undoing another.
type History struct {
	mu   sync.Mutex
	seen map[string]map[uint64]struct{}
}

// NewHistory creates an empty digest history
func NewHistory() *History {
	return &History{seen: make(map[string]map[uint64]struct{})}
}

// Observe records a rewrite of path from before to after and reports whether
// after is a state the file was in on an earlier pass
func (h *History) Observe(path string, before, after uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	states, ok := h.seen[path]
	if !ok {
		states = make(map[uint64]struct{})
		h.seen[path] = states
	}
	states[before] = struct{}{}
	if before == after {
		return false
	}
	_, repeated := states[after]
	states[after] = struct{}{}
	return repeated
}

// Len returns the number of files tracked
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}
