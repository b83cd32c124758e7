// Package editor holds the live document of one editor session together with
// its undo/redo history, unsaved-change tracking and save state.
//
// Every change goes through a named action. An action snapshots the current
// document onto the undo stack, produces the next document with copy-on-write
// path writes and clears the redo stack. Only Load and Save talk to the
// persistence backend, and neither holds the store lock while doing so, so
// edits are never blocked by a save in flight.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"

	"pageeditor/internal/docpath"
	"pageeditor/internal/domain"
	"pageeditor/internal/layout"
	"pageeditor/internal/migrate"
)

type history []map[string]any

// Store is the state container for one document key. It is safe for
// concurrent use.
type Store struct {
	key     string
	backend domain.ConfigStore
	limit   int
	newID   func() string
	layout  *layout.Engine

	mu     sync.Mutex
	doc    map[string]any
	past   history
	future history
	saved  map[string]any
	issued map[string]struct{}

	dirty       bool
	saving      bool
	saveQueued  bool
	idle        chan struct{} // closed when the current save cycle ends
	lastSavedAt time.Time
	lastErr     error

	listeners    map[int]func(Snapshot)
	nextListener int
}

// New creates a store for key backed by backend. The store starts on the
// default document, which counts as saved.
func New(key string, backend domain.ConfigStore, opts ...Option) *Store {
	s := &Store{
		key:       key,
		backend:   backend,
		limit:     DefaultHistoryLimit,
		newID:     newElementID,
		layout:    layout.NewEngine(),
		issued:    make(map[string]struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc = domain.DefaultTree()
	s.saved = docpath.CloneMap(s.doc)
	return s
}

// Key returns the document key the store persists under.
func (s *Store) Key() string { return s.key }

// ─────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────

// Snapshot returns the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Key:         s.key,
		PastLen:     len(s.past),
		FutureLen:   len(s.future),
		Dirty:       s.dirty,
		Saving:      s.saving,
		LastSavedAt: s.lastSavedAt,
	}
	if els, ok := s.doc["elements"].([]any); ok {
		snap.ElementCount = len(els)
	}
	if v, ok := docpath.Lookup(s.doc, "settings.grid"); ok {
		snap.Grid, _ = v.(bool)
	}
	if v, ok := docpath.Lookup(s.doc, "settings.theme"); ok {
		snap.Theme, _ = v.(string)
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// Document returns a deep copy of the live document.
func (s *Store) Document() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return docpath.CloneMap(s.doc)
}

// Value returns a copy of the value at path, or docpath.NotFound.
func (s *Store) Value(path string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := docpath.Get(s.doc, path)
	if err != nil {
		return nil, err
	}
	return docpath.DeepClone(v), nil
}

// Config returns the live document in typed form.
func (s *Store) Config() (*domain.EditorConfig, error) {
	return domain.FromTree(s.Document())
}

// Element returns a copy of the element with id.
func (s *Store) Element(id string) (domain.Element, error) {
	cfg, err := s.Config()
	if err != nil {
		return domain.Element{}, err
	}
	el, ok := cfg.ElementByID(id)
	if !ok {
		return domain.Element{}, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	return *el, nil
}

// ─────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────

// Load replaces the session with the persisted document. A missing document
// starts the session from defaults; any other backend failure is returned
// and leaves the session untouched.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.backend.LoadConfig(ctx, s.key)
	var doc map[string]any
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log.Printf("[STORE] no document for %q, starting from defaults", s.key)
		doc = domain.DefaultTree()
	case err != nil:
		return fmt.Errorf("load %s: %w", s.key, err)
	default:
		if doc, err = DecodeDocument(raw); err != nil {
			return fmt.Errorf("load %s: %w", s.key, err)
		}
	}

	s.mu.Lock()
	s.doc = doc
	s.saved = docpath.CloneMap(doc)
	s.past, s.future = nil, nil
	s.dirty = false
	s.lastErr = nil
	s.remember(doc)
	s.commitLocked()
	return nil
}

// Refresh installs the persisted document if it differs from the last one
// saved or loaded by this session, discarding history. It reports whether
// anything changed. A session with unsaved or in-flight edits is left alone
// and ErrConflict is returned.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	raw, err := s.backend.LoadConfig(ctx, s.key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", s.key, err)
	}
	doc, err := DecodeDocument(raw)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", s.key, err)
	}

	s.mu.Lock()
	if docpath.Equal(doc, s.saved) {
		s.mu.Unlock()
		return false, nil
	}
	if s.dirty || s.saving {
		s.mu.Unlock()
		return false, ErrConflict
	}
	s.doc = doc
	s.saved = docpath.CloneMap(doc)
	s.past, s.future = nil, nil
	s.lastErr = nil
	s.remember(doc)
	s.commitLocked()
	return true, nil
}

// DecodeDocument upgrades, parses and reconciles a serialized document.
// Input that is valid JSON but not an object yields the defaults.
func DecodeDocument(raw []byte) (map[string]any, error) {
	upgraded, err := migrate.Upgrade(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var v any
	if err := json.Unmarshal(upgraded, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	m, _ := v.(map[string]any)
	return domain.Reconcile(m), nil
}

// ─────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────

// apply runs fn against the live document and, if it succeeds, records the
// previous document as a history entry and installs the result reconciled
// against the schema, so the live document always equals what a save of it
// decodes to. An edit the schema repairs away entirely is ErrSchemaViolation.
func (s *Store) apply(fn func(doc map[string]any) (map[string]any, error)) error {
	s.mu.Lock()
	raw, err := fn(s.doc)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	next := domain.Reconcile(raw)
	if docpath.Equal(next, s.doc) && !docpath.Equal(raw, s.doc) {
		s.mu.Unlock()
		return ErrSchemaViolation
	}
	s.past = s.push(s.past, docpath.CloneMap(s.doc))
	s.doc = next
	s.future = nil
	s.dirty = true
	s.commitLocked()
	return nil
}

// Mutate stores value at path. Values that are not already document trees
// are normalized through their JSON form.
func (s *Store) Mutate(path string, value any) error {
	v, err := docpath.Normalize(value)
	if err != nil {
		return err
	}
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		return setMap(doc, path, v)
	})
}

// Reset replaces the document with the defaults. It is undoable.
func (s *Store) Reset() {
	_ = s.apply(func(map[string]any) (map[string]any, error) {
		return domain.DefaultTree(), nil
	})
}

// ImportDocument replaces the document with the serialized one in data,
// reconciled against the defaults. It is undoable.
func (s *Store) ImportDocument(data []byte) error {
	doc, err := DecodeDocument(data)
	if err != nil {
		return err
	}
	return s.replace(doc)
}

// ImportTree is ImportDocument for an already decoded document.
func (s *Store) ImportTree(tree map[string]any) error {
	v, err := docpath.Normalize(tree)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	m, _ := v.(map[string]any)
	return s.replace(domain.Reconcile(m))
}

func (s *Store) replace(doc map[string]any) error {
	return s.apply(func(map[string]any) (map[string]any, error) {
		s.remember(doc)
		return doc, nil
	})
}

// ExportDocument serializes the live document as indented JSON.
func (s *Store) ExportDocument() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", s.key, err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────

// Undo restores the document from before the last change. It reports
// whether there was anything to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	if len(s.past) == 0 {
		s.mu.Unlock()
		return false
	}
	prev := s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.future = s.push(s.future, docpath.CloneMap(s.doc))
	s.doc = prev
	s.dirty = !docpath.Equal(s.doc, s.saved)
	s.commitLocked()
	return true
}

// Redo reapplies the last undone change. It reports whether there was
// anything to redo.
func (s *Store) Redo() bool {
	s.mu.Lock()
	if len(s.future) == 0 {
		s.mu.Unlock()
		return false
	}
	next := s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]
	s.past = s.push(s.past, docpath.CloneMap(s.doc))
	s.doc = next
	s.dirty = !docpath.Equal(s.doc, s.saved)
	s.commitLocked()
	return true
}

func (s *Store) push(stack history, entry map[string]any) history {
	stack = append(stack, entry)
	if s.limit > 0 && len(stack) > s.limit {
		stack = lo.Drop(stack, len(stack)-s.limit)
	}
	return stack
}

// ─────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────

// Save persists the document if it has unsaved changes. Only one save runs
// at a time: a Save called while another is in flight returns immediately
// and the running one performs one more round if the document is still
// dirty when its current round completes. Mutations made during a save stay
// dirty.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saving {
		if s.dirty {
			s.saveQueued = true
		}
		s.mu.Unlock()
		return nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.saving = true
	s.idle = make(chan struct{})
	s.commitLocked()

	var err error
	for {
		s.mu.Lock()
		doc := docpath.CloneMap(s.doc)
		s.saveQueued = false
		s.mu.Unlock()

		err = s.persist(ctx, doc)

		s.mu.Lock()
		if err != nil {
			s.lastErr = err
			log.Printf("[STORE] save %s failed: %v", s.key, err)
			break
		}
		s.saved = doc
		s.lastSavedAt = time.Now()
		s.lastErr = nil
		s.dirty = !docpath.Equal(s.doc, doc)
		if !s.saveQueued || !s.dirty {
			break
		}
		s.mu.Unlock()
	}
	s.saving = false
	s.saveQueued = false
	close(s.idle)
	s.commitLocked()

	if err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) persist(ctx context.Context, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return s.backend.SaveConfig(ctx, s.key, raw)
}

// Wait blocks until no save is in flight or ctx is done.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.Lock()
	if !s.saving {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─────────────────────────────────────────────────────────────
// Internals
// ─────────────────────────────────────────────────────────────

// commitLocked releases the lock and notifies subscribers. It must be called
// with s.mu held.
func (s *Store) commitLocked() {
	snap := s.snapshotLocked()
	fns := lo.Values(s.listeners)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// remember marks every element id in doc as issued.
func (s *Store) remember(doc map[string]any) {
	els, _ := doc["elements"].([]any)
	for _, item := range els {
		if el, ok := item.(map[string]any); ok {
			if id, ok := el["id"].(string); ok {
				s.issued[id] = struct{}{}
			}
		}
	}
}

func setMap(doc map[string]any, path string, value any) (map[string]any, error) {
	out, err := docpath.Set(doc, path, value)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document root must be an object", ErrInvalidDocument)
	}
	return m, nil
}
