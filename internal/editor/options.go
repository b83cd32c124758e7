package editor

import (
	"github.com/google/uuid"

	"pageeditor/internal/layout"
)

// DefaultHistoryLimit bounds each of the undo and redo stacks. Every entry is
// a full copy of the document, so the oldest entries are dropped first.
const DefaultHistoryLimit = 100

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit caps the undo and redo stacks at n entries each. n <= 0
// keeps every entry.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.limit = n }
}

// WithIDGenerator replaces the element id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLayout replaces the engine used to place elements added without a
// position.
func WithLayout(e *layout.Engine) Option {
	return func(s *Store) {
		if e != nil {
			s.layout = e
		}
	}
}

func newElementID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
