package wheel

import (
	"sync"

	"github.com/alanyoungcy/townwheel/internal/domain"
)

// historyRing keeps the most recent N results for inspection. Oldest
// entries are overwritten once the ring is full.
type historyRing struct {
	mu      sync.RWMutex
	results []domain.Result
	next    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &historyRing{results: make([]domain.Result, capacity)}
}

// Push records a result, evicting the oldest entry when full.
func (h *historyRing) Push(r domain.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results[h.next] = r
	h.next++
	if h.next == len(h.results) {
		h.next = 0
		h.full = true
	}
}

// Recent returns up to limit results, most recent first.
func (h *historyRing) Recent(limit int) []domain.Result {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := h.next
	if h.full {
		size = len(h.results)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]domain.Result, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.next - 1 - i + len(h.results)) % len(h.results)
		out = append(out, h.results[idx])
	}
	return out
}

// Last returns the most recent result, if any.
func (h *historyRing) Last() (domain.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.next == 0 && !h.full {
		return domain.Result{}, false
	}
	idx := (h.next - 1 + len(h.results)) % len(h.results)
	return h.results[idx], true
}

// Len returns the number of stored results.
func (h *historyRing) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.full {
		return len(h.results)
	}
	return h.next
}
