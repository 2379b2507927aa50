package engine

import (
	"time"

	"github.com/oklog/ulid/v2"
)

const DefaultHistoryLimit = 50

// HistoryEntry names an action. It carries no snapshot, so undo and redo only
// move entries between stacks.
type HistoryEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// History is a bounded undo/redo stack.
type History struct {
	undo       []HistoryEntry
	redo       []HistoryEntry
	maxEntries int
}

func NewHistory(maxEntries int) *History {
	if maxEntries < 1 {
		maxEntries = DefaultHistoryLimit
	}
	return &History{maxEntries: maxEntries}
}

func newHistoryEntry(name string) HistoryEntry {
	return HistoryEntry{
		ID:        ulid.Make().String(),
		Name:      name,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Push records entry, clearing the redo stack and evicting the oldest entry at
// capacity.
func (h *History) Push(entry HistoryEntry) {
	h.redo = h.redo[:0]
	if len(h.undo) >= h.maxEntries {
		h.undo = append(h.undo[:0], h.undo[1:]...)
	}
	h.undo = append(h.undo, entry)
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }

func (h *History) CanRedo() bool { return len(h.redo) > 0 }

func (h *History) Undo() (HistoryEntry, bool) {
	if len(h.undo) == 0 {
		return HistoryEntry{}, false
	}
	entry := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, entry)
	return entry, true
}

func (h *History) Redo() (HistoryEntry, bool) {
	if len(h.redo) == 0 {
		return HistoryEntry{}, false
	}
	entry := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, entry)
	return entry, true
}

func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

// Entries returns the undo stack, oldest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.undo))
	copy(out, h.undo)
	return out
}
