package logging

import (
	"log/slog"
	"sync"
	"time"
)

// recentCap bounds the in-memory log history served by the admin API.
const recentCap = 2000

// Entry is one captured log record, kept in memory for the admin API.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Component string            `json:"component"`
	Message   string            `json:"message"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// RingBuffer holds the most recent log entries in arrival order.
type RingBuffer struct {
	mu   sync.RWMutex
	buf  []Entry
	next int
	full bool
}

// NewRingBuffer creates a buffer retaining the last size entries.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{buf: make([]Entry, size)}
}

// Add appends an entry, evicting the oldest once the buffer is full.
func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.buf[rb.next] = e
	rb.next++
	if rb.next == len(rb.buf) {
		rb.next = 0
		rb.full = true
	}
}

// snapshotLocked returns retained entries oldest first. Callers hold
// rb.mu.
func (rb *RingBuffer) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(rb.buf))
	if rb.full {
		out = append(out, rb.buf[rb.next:]...)
	}
	return append(out, rb.buf[:rb.next]...)
}

// GetAll returns every retained entry in chronological order.
func (rb *RingBuffer) GetAll() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.snapshotLocked()
}

// GetLast returns the newest n entries in chronological order.
func (rb *RingBuffer) GetLast(n int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	all := rb.snapshotLocked()
	if n <= 0 {
		return all[:0]
	}
	if n < len(all) {
		all = all[len(all)-n:]
	}
	return all
}

// GetByComponent returns entries from one component, oldest first,
// stopping after limit matches when limit is positive.
func (rb *RingBuffer) GetByComponent(component string, limit int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	out := []Entry{}
	for _, e := range rb.snapshotLocked() {
		if e.Component != component {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Count returns how many entries are retained.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.buf)
	}
	return rb.next
}

// Clear drops all retained entries.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.next = 0
	rb.full = false
}

// Global buffer fed by the ring handler and served by the admin API.
var (
	recentBuf  *RingBuffer
	recentOnce sync.Once
)

// Recent returns the process-wide buffer of recent log entries.
func Recent() *RingBuffer {
	recentOnce.Do(func() {
		recentBuf = NewRingBuffer(recentCap)
	})
	return recentBuf
}

// levelString maps a record level onto the entry's level label.
func levelString(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "debug"
	case level <= slog.LevelInfo:
		return "info"
	case level <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}
