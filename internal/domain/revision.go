package domain

import (
	"context"
	"time"
)

// Revision is one persisted version of a document, recorded on every save by
// backends that keep history.
type Revision struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// RevisionStore is implemented by backends that keep document history.
type RevisionStore interface {
	// ListRevisions returns the revisions of key, newest first.
	ListRevisions(ctx context.Context, key string) ([]Revision, error)
	// GetRevision returns the serialized document of a revision or ErrNotFound.
	GetRevision(ctx context.Context, id string) ([]byte, error)
}
