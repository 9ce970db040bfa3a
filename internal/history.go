package internal

import (
	"sync"
	"time"
)

// DefaultMaxHistorySize bounds the number of undo snapshots kept
const DefaultMaxHistorySize = 50

// HistoryEntry is one snapshot in the undo/redo log
type HistoryEntry[T any] struct {
	State      T         `json:"state"`
	Timestamp  time.Time `json:"timestamp"`
	ActionName string    `json:"action_name,omitempty"`
}

// HistoryOptions configures a History
type HistoryOptions struct {
	// MaxSize caps the log length; the oldest entries are evicted first.
	// Zero or negative means DefaultMaxHistorySize.
	MaxSize int
	// Debounce delays writes so that a burst of Set calls collapses into
	// the last one. Zero writes synchronously.
	Debounce time.Duration
	// Now supplies entry timestamps. Defaults to time.Now.
	Now func() time.Time
}

// History is a bounded, branch-on-write undo/redo log with a cursor.
//
// The log always holds at least one entry and the cursor always points
// into it. Writing while the cursor is not at the tail discards every
// entry after the cursor. Identical consecutive states are not collapsed.
type History[T any] struct {
	mu      sync.Mutex
	entries []HistoryEntry[T]
	cursor  int
	initial T

	maxSize  int
	debounce time.Duration
	now      func() time.Time

	pending    *time.Timer
	pendingGen uint64
}

// NewHistory creates a log seeded with initial
func NewHistory[T any](initial T, opts HistoryOptions) *History[T] {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &History[T]{
		entries:  []HistoryEntry[T]{{State: initial, Timestamp: opts.Now()}},
		initial:  initial,
		maxSize:  opts.MaxSize,
		debounce: opts.Debounce,
		now:      opts.Now,
	}
}

// Set records a new state. With debouncing enabled the write happens after
// the debounce window and replaces any write still pending.
func (h *History[T]) Set(state T, actionName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopPendingLocked()

	if h.debounce <= 0 {
		h.appendLocked(state, actionName)
		return
	}

	gen := h.pendingGen
	h.pending = time.AfterFunc(h.debounce, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if gen != h.pendingGen {
			return
		}
		h.pending = nil
		h.appendLocked(state, actionName)
	})
}

// stopPendingLocked cancels a debounced write, including one whose timer
// has already fired and is waiting for the lock.
func (h *History[T]) stopPendingLocked() {
	if h.pending != nil {
		h.pending.Stop()
		h.pending = nil
	}
	h.pendingGen++
}

func (h *History[T]) appendLocked(state T, actionName string) {
	next := append(h.entries[:h.cursor+1:h.cursor+1], HistoryEntry[T]{
		State:      state,
		Timestamp:  h.now(),
		ActionName: actionName,
	})
	if over := len(next) - h.maxSize; over > 0 {
		next = append([]HistoryEntry[T](nil), next[over:]...)
	}
	h.entries = next
	h.cursor = len(next) - 1
}

// Undo moves the cursor back one entry. It reports whether it moved.
func (h *History[T]) Undo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return false
	}
	h.cursor--
	return true
}

// Redo moves the cursor forward one entry. It reports whether it moved.
func (h *History[T]) Redo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries)-1 {
		return false
	}
	h.cursor++
	return true
}

// CanUndo reports whether Undo would move the cursor
func (h *History[T]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo reports whether Redo would move the cursor
func (h *History[T]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)-1
}

// State returns the state under the cursor
func (h *History[T]) State() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

func (h *History[T]) stateLocked() T {
	if h.cursor < 0 || h.cursor >= len(h.entries) {
		return h.initial
	}
	return h.entries[h.cursor].State
}

// Entries returns a copy of the log
func (h *History[T]) Entries() []HistoryEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry[T](nil), h.entries...)
}

// Cursor returns the index of the current entry
func (h *History[T]) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Len returns the number of entries in the log
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear collapses the log to a single entry holding the current state and
// its action name, so nothing before it can be restored. A debounced write
// still pending is dropped.
func (h *History[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopPendingLocked()

	entry := HistoryEntry[T]{State: h.stateLocked(), Timestamp: h.now()}
	if h.cursor >= 0 && h.cursor < len(h.entries) {
		entry.ActionName = h.entries[h.cursor].ActionName
	}
	h.entries = []HistoryEntry[T]{entry}
	h.cursor = 0
}
