package editor

import "time"

// Snapshot is a read-only view of a store's session state, delivered to
// subscribers after every change.
type Snapshot struct {
	Key          string    `json:"key"`
	ElementCount int       `json:"elementCount"`
	Grid         bool      `json:"grid"`
	Theme        string    `json:"theme"`
	PastLen      int       `json:"pastLen"`
	FutureLen    int       `json:"futureLen"`
	Dirty        bool      `json:"dirty"`
	Saving       bool      `json:"saving"`
	LastSavedAt  time.Time `json:"lastSavedAt"`
	LastError    string    `json:"lastError,omitempty"`
}

// CanUndo reports whether there is history to step back through.
func CanUndo(s Snapshot) bool { return s.PastLen > 0 }

// CanRedo reports whether an undone change can be reapplied.
func CanRedo(s Snapshot) bool { return s.FutureLen > 0 }

// HasUnsavedChanges reports whether the document differs from what was last
// persisted.
func HasUnsavedChanges(s Snapshot) bool { return s.Dirty }

// CanUndo reports whether Undo would do anything.
func (s *Store) CanUndo() bool { return CanUndo(s.Snapshot()) }

// CanRedo reports whether Redo would do anything.
func (s *Store) CanRedo() bool { return CanRedo(s.Snapshot()) }

// HasUnsavedChanges reports whether the live document differs from the last
// saved one.
func (s *Store) HasUnsavedChanges() bool { return HasUnsavedChanges(s.Snapshot()) }

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs synchronously on the goroutine that made the change, outside the
// store lock, and must not block. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
