package logging

import (
	"sync"
	"time"
)

// Entry is one recorded log record.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// History keeps the most recent log entries in a fixed-size ring.
type History struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

// NewHistory creates a history holding up to size entries.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{entries: make([]Entry, size)}
}

// Capacity returns the maximum number of entries kept.
func (h *History) Capacity() int {
	return len(h.entries)
}

// Add records an entry, overwriting the oldest one when full.
func (h *History) Add(entry Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = entry
	h.head = (h.head + 1) % len(h.entries)
	if h.count < len(h.entries) {
		h.count++
	}
}

// Len returns the number of entries held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Recent returns up to limit of the newest entries, oldest first. An empty
// module matches every entry; limit <= 0 means no limit.
func (h *History) Recent(limit int, module string) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, 0, h.count)
	start := h.head - h.count
	if start < 0 {
		start += len(h.entries)
	}
	for i := range h.count {
		e := h.entries[(start+i)%len(h.entries)]
		if module == "" || e.Module == module {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
