package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"pageeditor/internal/domain"
	"pageeditor/internal/editor"
)

// ─────────────────────────────────────────────────────────────
// Editor Service: editor sessions, autosave and revisions
// ─────────────────────────────────────────────────────────────

// ErrNoSession is returned for a document key that has no open session.
var ErrNoSession = errors.New("no open editor session")

// ErrRevisionsUnsupported is returned when the backend keeps no history.
var ErrRevisionsUnsupported = errors.New("backend does not keep revisions")

type session struct {
	store       *editor.Store
	unsubscribe func()
}

// EditorService owns one editor.Store per open document key.
type EditorService struct {
	ctx     context.Context
	backend domain.ConfigStore
	emitter EventEmitter
	opts    []editor.Option

	mu       sync.Mutex
	sessions map[string]*session

	cronSched *cron.Cron
}

// NewEditorService creates an EditorService. ctx is passed to emitted events
// and to backend calls made by autosave.
func NewEditorService(ctx context.Context, backend domain.ConfigStore, emitter EventEmitter, opts ...editor.Option) *EditorService {
	return &EditorService{
		ctx:      ctx,
		backend:  backend,
		emitter:  emitter,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// Open returns the session for key, loading it from the backend the first
// time.
func (s *EditorService) Open(ctx context.Context, key string) (*editor.Store, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return sess.store, nil
	}
	s.mu.Unlock()

	store := editor.New(key, s.backend, s.opts...)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		// Lost a race with another Open; keep the first session.
		return sess.store, nil
	}
	sess := &session{store: store}
	sess.unsubscribe = store.Subscribe(func(snap editor.Snapshot) {
		s.emit(EventEditorState, snap)
	})
	s.sessions[key] = sess
	s.emit(EventEditorState, store.Snapshot())
	return store, nil
}

// Session returns the open session for key.
func (s *EditorService) Session(key string) (*editor.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, key)
	}
	return sess.store, nil
}

// Keys returns the keys of all open sessions, sorted.
func (s *EditorService) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close flushes unsaved changes of key and ends its session. The session is
// kept open if the flush fails so no edit is lost.
func (s *EditorService) Close(ctx context.Context, key string) error {
	store, err := s.Session(key)
	if err != nil {
		return err
	}
	if err := flush(ctx, store); err != nil {
		return err
	}

	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		sess.unsubscribe()
		delete(s.sessions, key)
	}
	s.mu.Unlock()
	return nil
}

// flush waits for any save in flight and then saves whatever is still dirty.
func flush(ctx context.Context, store *editor.Store) error {
	if err := store.Wait(ctx); err != nil {
		return fmt.Errorf("wait for save %s: %w", store.Key(), err)
	}
	if err := store.Save(ctx); err != nil {
		return err
	}
	return store.Wait(ctx)
}

// ── Autosave ──────────────────────────────────────────────

// StartAutosave saves every dirty session on the cron schedule spec. An empty
// spec disables autosave. A run still in progress when the next one is due
// makes the next one skip.
func (s *EditorService) StartAutosave(spec string) error {
	s.StopAutosave()
	if spec == "" {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))))
	if _, err := c.AddFunc(spec, s.AutosaveNow); err != nil {
		return fmt.Errorf("autosave: invalid schedule %q: %w", spec, err)
	}
	c.Start()

	s.mu.Lock()
	s.cronSched = c
	s.mu.Unlock()
	log.Printf("[AUTOSAVE] scheduled %q", spec)
	return nil
}

// StopAutosave stops the schedule. The returned context is done once a run
// already in progress has finished.
func (s *EditorService) StopAutosave() context.Context {
	s.mu.Lock()
	c := s.cronSched
	s.cronSched = nil
	s.mu.Unlock()
	if c == nil {
		done, cancel := context.WithCancel(context.Background())
		cancel()
		return done
	}
	return c.Stop()
}

// AutosaveNow saves every session with unsaved changes. A session already
// saving coalesces the request into its running save.
func (s *EditorService) AutosaveNow() {
	s.mu.Lock()
	stores := make([]*editor.Store, 0, len(s.sessions))
	for _, sess := range s.sessions {
		stores = append(stores, sess.store)
	}
	s.mu.Unlock()

	for _, store := range stores {
		if !store.HasUnsavedChanges() {
			continue
		}
		if err := store.Save(s.ctx); err != nil {
			key := store.Key()
			log.Printf("[AUTOSAVE] %s failed: %v", key, err)
			s.emit(EventAutosaveFailed, map[string]string{"key": key, "error": err.Error()})
		}
	}
}

// Shutdown stops autosave, waits for a run in progress and flushes every
// session concurrently.
func (s *EditorService) Shutdown(ctx context.Context) error {
	select {
	case <-s.StopAutosave().Done():
	case <-ctx.Done():
		return fmt.Errorf("wait for autosave: %w", ctx.Err())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range s.Keys() {
		g.Go(func() error {
			return s.Close(gctx, key)
		})
	}
	return g.Wait()
}

// ── External changes ──────────────────────────────────────

// Reload picks up a document changed in the backend by another process. A
// session with unsaved edits is left alone and a conflict event is emitted
// instead. Backend writes made by the session itself are ignored.
func (s *EditorService) Reload(ctx context.Context, key string) error {
	store, err := s.Session(key)
	if err != nil {
		return err
	}
	changed, err := store.Refresh(ctx)
	if errors.Is(err, editor.ErrConflict) {
		log.Printf("[STORE] %s changed externally while dirty, keeping local edits", key)
		s.emit(EventEditorConflict, map[string]string{"key": key})
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		s.emit(EventEditorReloaded, map[string]string{"key": key})
	}
	return nil
}

// ── Revisions ─────────────────────────────────────────────

// ListRevisions returns the saved revisions of key, newest first.
func (s *EditorService) ListRevisions(ctx context.Context, key string) ([]domain.Revision, error) {
	revs, ok := s.backend.(domain.RevisionStore)
	if !ok {
		return nil, ErrRevisionsUnsupported
	}
	return revs.ListRevisions(ctx, key)
}

// RestoreRevision imports a saved revision into the open session for key.
// The restore is an ordinary undoable edit and leaves the session dirty.
func (s *EditorService) RestoreRevision(ctx context.Context, key, revisionID string) error {
	revs, ok := s.backend.(domain.RevisionStore)
	if !ok {
		return ErrRevisionsUnsupported
	}
	store, err := s.Session(key)
	if err != nil {
		return err
	}
	raw, err := revs.GetRevision(ctx, revisionID)
	if err != nil {
		return fmt.Errorf("restore revision %s: %w", revisionID, err)
	}
	return store.ImportDocument(raw)
}

func (s *EditorService) emit(event string, data any) {
	if s.emitter != nil {
		s.emitter.Emit(s.ctx, event, data)
	}
}
