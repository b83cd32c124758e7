package editor

import "errors"

var (
	// ErrElementNotFound is returned when an action names an element id the
	// document does not contain.
	ErrElementNotFound = errors.New("element not found")

	// ErrUnknownKind is returned by AddElement for an unsupported kind.
	ErrUnknownKind = errors.New("unknown element kind")

	// ErrInvalidDocument is returned when a loaded or imported document is not
	// valid JSON.
	ErrInvalidDocument = errors.New("invalid editor document")

	// ErrInvalidOrder is returned by ReorderElements when the ids are not a
	// permutation of the current elements.
	ErrInvalidOrder = errors.New("element order must list every element exactly once")

	// ErrDuplicateID is returned when the id generator keeps producing ids
	// that were already issued in this session.
	ErrDuplicateID = errors.New("id generator returned an id already in use")

	// ErrConflict is returned by Refresh when the persisted document changed
	// while the session has unsaved edits.
	ErrConflict = errors.New("document changed externally while it has unsaved edits")

	// ErrSchemaViolation is returned when an edit only writes values the
	// document schema rejects (a string grid size, a version change).
	ErrSchemaViolation = errors.New("edit violates the document schema")
)
