package editor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"pageeditor/internal/docpath"
	"pageeditor/internal/domain"
	"pageeditor/internal/editor"
)

// ─────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   int
	loadErr error
	saveErr error

	// When block is set every SaveConfig reports on entered and waits for a
	// value on block before storing.
	block   chan struct{}
	entered chan struct{}
}

func newBackend() *fakeBackend {
	return &fakeBackend{docs: make(map[string][]byte)}
}

func (b *fakeBackend) LoadConfig(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	raw, ok := b.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

func (b *fakeBackend) SaveConfig(_ context.Context, key string, doc []byte) error {
	b.mu.Lock()
	b.saves++
	block, entered, saveErr := b.block, b.entered, b.saveErr
	b.mu.Unlock()

	if block != nil {
		entered <- struct{}{}
		<-block
	}
	if saveErr != nil {
		return saveErr
	}
	b.mu.Lock()
	b.docs[key] = doc
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func (b *fakeBackend) stored(t *testing.T, key string) map[string]any {
	t.Helper()
	b.mu.Lock()
	raw := b.docs[key]
	b.mu.Unlock()
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode stored document: %v", err)
	}
	return out
}

func sequentialIDs(ids ...string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if n < len(ids) {
			n++
			return ids[n-1]
		}
		n++
		return fmt.Sprintf("el-%d", n)
	}
}

func newStore(b *fakeBackend, opts ...editor.Option) *editor.Store {
	opts = append([]editor.Option{editor.WithIDGenerator(sequentialIDs())}, opts...)
	return editor.New("page", b, opts...)
}

func kinds(t *testing.T, s *editor.Store) []domain.ElementKind {
	t.Helper()
	cfg, err := s.Config()
	if err != nil {
		t.Fatal(err)
	}
	out := make([]domain.ElementKind, len(cfg.Elements))
	for i, el := range cfg.Elements {
		out[i] = el.Kind
	}
	return out
}

// ─────────────────────────────────────────────────────────────
// Initial state and load
// ─────────────────────────────────────────────────────────────

func TestNew_StartsCleanOnDefaults(t *testing.T) {
	s := newStore(newBackend())
	if !docpath.Equal(s.Document(), domain.DefaultTree()) {
		t.Fatal("expected the default document")
	}
	if s.CanUndo() || s.CanRedo() || s.HasUnsavedChanges() {
		t.Fatalf("unexpected state %+v", s.Snapshot())
	}
}

func TestLoad_NotFoundFallsBackToDefaults(t *testing.T) {
	s := newStore(newBackend())
	_ = s.ToggleGrid()

	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("not-found must not be an error: %v", err)
	}
	if !docpath.Equal(s.Document(), domain.DefaultTree()) {
		t.Fatal("expected defaults after load")
	}
	if s.HasUnsavedChanges() || s.CanUndo() {
		t.Fatalf("expected clean state, got %+v", s.Snapshot())
	}
}

func TestLoad_ReplacesDocumentAndClearsHistory(t *testing.T) {
	b := newBackend()
	b.docs["page"] = []byte(`{"version":2,"elements":[{"id":"a","type":"text","props":{"content":"hi"}}],"settings":{"grid":true}}`)
	s := newStore(b)
	_ = s.SetTheme("dark")

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := kinds(t, s); len(got) != 1 || got[0] != domain.ElementText {
		t.Fatalf("unexpected elements %v", got)
	}
	if v, _ := s.Value("settings.grid"); v != true {
		t.Errorf("expected grid on, got %v", v)
	}
	if v, _ := s.Value("settings.layout.width"); v != 1440.0 {
		t.Errorf("missing fields should come from defaults, got %v", v)
	}
	if s.CanUndo() || s.CanRedo() || s.HasUnsavedChanges() {
		t.Fatalf("unexpected state %+v", s.Snapshot())
	}
}

func TestLoad_LegacyDocumentIsUpgraded(t *testing.T) {
	b := newBackend()
	b.docs["page"] = []byte(`{"showGrid":true,"components":{"x":{"kind":"stat","props":{"value":3}}}}`)
	s := newStore(b)

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	el, err := s.Element("x")
	if err != nil {
		t.Fatal(err)
	}
	if el.Kind != domain.ElementStat || el.Props["value"] != 3.0 {
		t.Fatalf("unexpected element %+v", el)
	}
	if !s.Snapshot().Grid {
		t.Error("expected grid to be migrated")
	}
}

func TestLoad_TransportErrorLeavesStateUntouched(t *testing.T) {
	b := newBackend()
	s := newStore(b)
	_ = s.ToggleGrid()
	before := s.Document()

	b.loadErr = errors.New("connection refused")
	err := s.Load(context.Background())
	if err == nil || !errors.Is(err, b.loadErr) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if !docpath.Equal(s.Document(), before) || !s.HasUnsavedChanges() || !s.CanUndo() {
		t.Fatal("state must not change on a failed load")
	}
}

func TestLoad_CorruptDocument(t *testing.T) {
	b := newBackend()
	b.docs["page"] = []byte(`{"elements":[`)
	s := newStore(b)
	if err := s.Load(context.Background()); !errors.Is(err, editor.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestRefresh_IgnoresOwnSaves(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	s := newStore(b)
	_ = s.SetTheme("dark")
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	changed, err := s.Refresh(ctx)
	if err != nil || changed {
		t.Fatalf("own save must not count as a change: %v, %v", changed, err)
	}
	if !s.CanUndo() {
		t.Fatal("history must survive a no-op refresh")
	}
}

func TestRefresh_KeepsRepairedEdits(t *testing.T) {
	ctx := context.Background()
	s := newStore(newBackend())
	_, _ = s.AddElement(domain.ElementText, nil)
	if err := s.Mutate("settings.gradients.brand", map[string]any{"kind": "radial"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	changed, err := s.Refresh(ctx)
	if err != nil || changed {
		t.Fatalf("saved document must read back unchanged: %v, %v", changed, err)
	}
	if got := s.Snapshot().PastLen; got != 2 {
		t.Fatalf("history must survive, got %d entries", got)
	}
}

func TestRefresh_InstallsExternalChange(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	s := newStore(b)
	_ = s.SetTheme("dark")
	_ = s.Save(ctx)

	b.docs["page"] = []byte(`{"settings":{"theme":"solar"}}`)
	changed, err := s.Refresh(ctx)
	if err != nil || !changed {
		t.Fatalf("expected a change, got %v, %v", changed, err)
	}
	snap := s.Snapshot()
	if snap.Theme != "solar" || snap.Dirty || editor.CanUndo(snap) {
		t.Fatalf("unexpected state %+v", snap)
	}
}

func TestRefresh_ConflictKeepsLocalEdits(t *testing.T) {
	ctx := context.Background()
	b := newBackend()
	s := newStore(b)
	_ = s.SetTheme("local")

	b.docs["page"] = []byte(`{"settings":{"theme":"remote"}}`)
	if _, err := s.Refresh(ctx); !errors.Is(err, editor.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if s.Snapshot().Theme != "local" || !s.HasUnsavedChanges() {
		t.Fatal("local edits must survive a conflict")
	}
}

// ─────────────────────────────────────────────────────────────
// Undo / redo
// ─────────────────────────────────────────────────────────────

func TestScenario_AddUndoRedo(t *testing.T) {
	s := newStore(newBackend())

	if _, err := s.AddElement(domain.ElementText, map[string]any{"content": "Hello"}); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if !snap.Dirty || !editor.CanUndo(snap) || snap.ElementCount != 1 {
		t.Fatalf("after add: %+v", snap)
	}
	afterAdd := s.Document()

	if !s.Undo() {
		t.Fatal("expected undo to apply")
	}
	snap = s.Snapshot()
	if snap.Dirty || snap.ElementCount != 0 || !editor.CanRedo(snap) {
		t.Fatalf("after undo: %+v", snap)
	}

	if !s.Redo() {
		t.Fatal("expected redo to apply")
	}
	if s.Snapshot().ElementCount != 1 || !docpath.Equal(s.Document(), afterAdd) {
		t.Fatal("redo should restore the pre-undo document")
	}
}

func TestScenario_NewEditDiscardsRedo(t *testing.T) {
	s := newStore(newBackend())
	_, _ = s.AddElement(domain.ElementText, nil)
	_, _ = s.AddElement(domain.ElementImage, nil)
	s.Undo()
	_, _ = s.AddElement(domain.ElementButton, nil)

	if s.CanRedo() {
		t.Fatal("a new edit must clear the redo stack")
	}
	if s.Redo() {
		t.Fatal("redo should be a no-op")
	}
	got := kinds(t, s)
	if len(got) != 2 || got[0] != domain.ElementText || got[1] != domain.ElementButton {
		t.Fatalf("expected [text button], got %v", got)
	}
}

func TestMutateThenUndoRestores(t *testing.T) {
	s := newStore(newBackend())
	start := s.Document()

	edits := []struct {
		path  string
		value any
	}{
		{"settings.theme", "dark"},
		{"settings.layout.width", 1024},
		{"settings.gradients.brand", map[string]any{"kind": "solid", "colors": []any{"#fff"}}},
		{"meta.tags.0", "landing"},
		{"settings.grid", true},
	}
	for _, e := range edits {
		if err := s.Mutate(e.path, e.value); err != nil {
			t.Fatalf("mutate %s: %v", e.path, err)
		}
	}
	for range edits {
		if !s.Undo() {
			t.Fatal("expected undo")
		}
	}
	if !docpath.Equal(s.Document(), start) {
		t.Fatalf("expected the starting document, got %#v", s.Document())
	}
	if s.Undo() {
		t.Fatal("undo with empty history must be a no-op")
	}
}

func TestMutate_InvalidPathLeavesStateUntouched(t *testing.T) {
	s := newStore(newBackend())
	if err := s.Mutate("settings..grid", true); !errors.Is(err, docpath.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if s.CanUndo() || s.HasUnsavedChanges() {
		t.Fatalf("failed mutation must not touch history: %+v", s.Snapshot())
	}
}

func TestMutate_RejectsNonFiniteNumbers(t *testing.T) {
	s := newStore(newBackend())
	for _, v := range []any{math.NaN(), math.Inf(1), map[string]any{"w": math.Inf(-1)}} {
		if err := s.Mutate("settings.layout.width", v); !errors.Is(err, docpath.ErrInvalidValue) {
			t.Fatalf("expected ErrInvalidValue for %v, got %v", v, err)
		}
	}
	if s.CanUndo() || s.HasUnsavedChanges() {
		t.Fatalf("rejected values must not touch history: %+v", s.Snapshot())
	}
	if _, err := s.ExportDocument(); err != nil {
		t.Fatalf("document must stay exportable: %v", err)
	}
}

func TestMutate_SchemaViolation(t *testing.T) {
	s := newStore(newBackend())
	edits := []struct {
		path  string
		value any
	}{
		{"settings.gridSize", "big"},
		{"version", 7},
		{"settings.gradients.brand", "not a gradient"},
		{"settings.grid", "yes"},
	}
	for _, e := range edits {
		if err := s.Mutate(e.path, e.value); !errors.Is(err, editor.ErrSchemaViolation) {
			t.Errorf("%s: expected ErrSchemaViolation, got %v", e.path, err)
		}
	}
	if s.CanUndo() || s.HasUnsavedChanges() {
		t.Fatalf("rejected edits must not touch history: %+v", s.Snapshot())
	}

	// A partly valid value is completed rather than rejected.
	if err := s.Mutate("settings.gradients.brand", map[string]any{"kind": "solid"}); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Value("settings.gradients.brand.angle"); v != 0.0 {
		t.Fatalf("expected the gradient to be completed, got angle %v", v)
	}
}

func TestUpdateElementProperty_HugeIndex(t *testing.T) {
	s := newStore(newBackend())
	id, _ := s.AddElement(domain.ElementTable, nil)

	err := s.UpdateElementProperty(id, "rows.9223372036854775807", "x")
	if !errors.Is(err, docpath.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if got := s.Snapshot().PastLen; got != 1 {
		t.Fatalf("failed update must not push history, got %d entries", got)
	}
	if err := s.UpdateElementProperty(id, "rows.0", "first"); err != nil {
		t.Fatal(err)
	}
}

func TestHistoryLimitDropsOldest(t *testing.T) {
	s := newStore(newBackend(), editor.WithHistoryLimit(3))
	for i := 1; i <= 5; i++ {
		if err := s.Mutate("settings.gridSize", i*10); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Snapshot().PastLen; got != 3 {
		t.Fatalf("expected 3 history entries, got %d", got)
	}
	for s.Undo() {
	}
	// The default and 10 entries were dropped, so the oldest kept is 20.
	if v, _ := s.Value("settings.gridSize"); v != 20.0 {
		t.Fatalf("expected gridSize 20 after undoing everything, got %v", v)
	}
}

func TestUndo_RecomputesDirtyAgainstSaved(t *testing.T) {
	b := newBackend()
	s := newStore(b)
	ctx := context.Background()

	_ = s.SetTheme("dark")
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	_ = s.SetTheme("light")

	s.Undo()
	if s.HasUnsavedChanges() {
		t.Fatal("back at the saved document, should be clean")
	}
	s.Undo()
	if !s.HasUnsavedChanges() {
		t.Fatal("before the saved document, should be dirty")
	}
	s.Redo()
	if s.HasUnsavedChanges() {
		t.Fatal("redo back to the saved document should be clean")
	}
}

func TestHistoryEntriesAreNotAliased(t *testing.T) {
	s := newStore(newBackend())
	id, _ := s.AddElement(domain.ElementTable, nil)

	doc := s.Document()
	doc["elements"].([]any)[0].(map[string]any)["props"].(map[string]any)["columns"] = "mutated"

	_ = s.UpdateElementProperty(id, "rows.0", []any{"a", "b"})
	s.Undo()

	el, _ := s.Element(id)
	if cols, ok := el.Props["columns"].([]any); !ok || len(cols) != 2 {
		t.Fatalf("history entry was altered through an alias: %#v", el.Props["columns"])
	}
	if _, ok := el.Props["rows"].([]any); !ok {
		t.Fatalf("expected rows restored, got %#v", el.Props["rows"])
	}
}

// ─────────────────────────────────────────────────────────────
// Element actions
// ─────────────────────────────────────────────────────────────

func TestAddElement_DefaultsAndPlacement(t *testing.T) {
	s := newStore(newBackend())
	first, err := s.AddElement(domain.ElementText, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AddElement(domain.ElementText, nil)
	if err != nil {
		t.Fatal(err)
	}
	pinned, err := s.AddElement(domain.ElementImage, map[string]any{"x": 900, "y": 30})
	if err != nil {
		t.Fatal(err)
	}

	a, _ := s.Element(first)
	b, _ := s.Element(second)
	if a.Props["content"] != "Text" || a.Props["width"] != 300.0 {
		t.Errorf("expected kind defaults, got %v", a.Props)
	}
	if a.Props["x"] == b.Props["x"] && a.Props["y"] == b.Props["y"] {
		t.Errorf("auto placed elements overlap at (%v, %v)", a.Props["x"], a.Props["y"])
	}
	p, _ := s.Element(pinned)
	if p.Props["x"] != 900.0 || p.Props["y"] != 30.0 {
		t.Errorf("explicit position should be kept, got (%v, %v)", p.Props["x"], p.Props["y"])
	}
}

func TestAddElement_TinyGridTerminates(t *testing.T) {
	s := newStore(newBackend())
	if err := s.ImportDocument([]byte(`{"settings":{"gridSize":0.001}}`)); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.Value("settings.gridSize"); v != domain.MinGridSize {
		t.Fatalf("expected the grid size to be clamped, got %v", v)
	}
	if _, err := s.AddElement(domain.ElementRectangle, map[string]any{"x": 0, "y": 0, "width": 1440, "height": 200000}); err != nil {
		t.Fatal(err)
	}

	done := make(chan string, 1)
	go func() {
		id, _ := s.AddElement(domain.ElementText, nil)
		done <- id
	}()
	select {
	case id := <-done:
		el, _ := s.Element(id)
		if y, _ := el.Props["y"].(float64); y < 200000 {
			t.Fatalf("expected the text below the tall box, got y=%v", y)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("placement did not finish")
	}
}

func TestAddElement_UnknownKind(t *testing.T) {
	s := newStore(newBackend())
	if _, err := s.AddElement("hologram", nil); !errors.Is(err, editor.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if s.CanUndo() {
		t.Fatal("rejected add must not touch history")
	}
}

func TestAddElement_IDsNeverReused(t *testing.T) {
	s := editor.New("page", newBackend(), editor.WithIDGenerator(sequentialIDs("a", "a", "b")))
	first, _ := s.AddElement(domain.ElementText, nil)
	if err := s.RemoveElement(first); err != nil {
		t.Fatal(err)
	}
	second, err := s.AddElement(domain.ElementText, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first != "a" || second != "b" {
		t.Fatalf("expected ids a then b, got %s then %s", first, second)
	}
}

func TestAddElement_GeneratorExhausted(t *testing.T) {
	s := editor.New("page", newBackend(), editor.WithIDGenerator(func() string { return "same" }))
	if _, err := s.AddElement(domain.ElementText, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddElement(domain.ElementText, nil); !errors.Is(err, editor.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestUpdateElementProperty(t *testing.T) {
	s := newStore(newBackend())
	id, _ := s.AddElement(domain.ElementButton, nil)

	if err := s.UpdateElementProperty(id, "style.color", "#ff0000"); err != nil {
		t.Fatal(err)
	}
	el, _ := s.Element(id)
	style, _ := el.Props["style"].(map[string]any)
	if style["color"] != "#ff0000" {
		t.Fatalf("expected nested prop, got %v", el.Props)
	}

	if err := s.UpdateElementProperty("missing", "content", "x"); !errors.Is(err, editor.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
	if err := s.UpdateElementProperty(id, "", "x"); !errors.Is(err, docpath.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if got := s.Snapshot().PastLen; got != 2 {
		t.Fatalf("failed updates must not push history, got %d entries", got)
	}
}

func TestRemoveElement(t *testing.T) {
	s := newStore(newBackend())
	a, _ := s.AddElement(domain.ElementText, nil)
	b, _ := s.AddElement(domain.ElementImage, nil)

	if err := s.RemoveElement(a); err != nil {
		t.Fatal(err)
	}
	cfg, _ := s.Config()
	if len(cfg.Elements) != 1 || cfg.Elements[0].ID != b {
		t.Fatalf("unexpected elements %+v", cfg.Elements)
	}
	if err := s.RemoveElement(a); !errors.Is(err, editor.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
}

func TestReorderAndMoveElements(t *testing.T) {
	s := newStore(newBackend())
	a, _ := s.AddElement(domain.ElementText, nil)
	b, _ := s.AddElement(domain.ElementImage, nil)
	c, _ := s.AddElement(domain.ElementButton, nil)

	if err := s.ReorderElements([]string{c, a, b}); err != nil {
		t.Fatal(err)
	}
	if got := kinds(t, s); got[0] != domain.ElementButton || got[2] != domain.ElementImage {
		t.Fatalf("unexpected order %v", got)
	}

	for _, bad := range [][]string{{a, b}, {a, a, b}, {a, b, "zzz"}} {
		if err := s.ReorderElements(bad); !errors.Is(err, editor.ErrInvalidOrder) {
			t.Errorf("%v: expected ErrInvalidOrder, got %v", bad, err)
		}
	}

	if err := s.MoveElement(c, 99); err != nil {
		t.Fatal(err)
	}
	if got := kinds(t, s); got[2] != domain.ElementButton {
		t.Fatalf("expected button on top, got %v", got)
	}
	if err := s.MoveElement(c, -5); err != nil {
		t.Fatal(err)
	}
	if got := kinds(t, s); got[0] != domain.ElementButton {
		t.Fatalf("expected button at the bottom, got %v", got)
	}
}

func TestDuplicateElement(t *testing.T) {
	s := newStore(newBackend())
	a, _ := s.AddElement(domain.ElementText, map[string]any{"x": 60, "y": 90, "content": "copy me"})
	_, _ = s.AddElement(domain.ElementImage, nil)

	dup, err := s.DuplicateElement(a)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _ := s.Config()
	if len(cfg.Elements) != 3 || cfg.Elements[1].ID != dup {
		t.Fatalf("copy should sit right above the original: %+v", cfg.Elements)
	}
	el := cfg.Elements[1]
	if el.Props["content"] != "copy me" || el.Props["x"] != 90.0 || el.Props["y"] != 120.0 {
		t.Fatalf("unexpected copy props %v", el.Props)
	}
}

func TestArrangeElements(t *testing.T) {
	s := newStore(newBackend())
	a, _ := s.AddElement(domain.ElementText, map[string]any{"x": 300, "y": 300})
	b, _ := s.AddElement(domain.ElementText, map[string]any{"x": 900, "y": 600})

	if err := s.ArrangeElements([]string{a, b}); err != nil {
		t.Fatal(err)
	}
	el, _ := s.Element(b)
	if el.Props["x"] != 660.0 || el.Props["y"] != 300.0 {
		t.Fatalf("expected b beside a at (660,300), got (%v,%v)", el.Props["x"], el.Props["y"])
	}

	s.Undo()
	el, _ = s.Element(b)
	if el.Props["x"] != 900.0 {
		t.Fatal("arrange should be a single undoable step")
	}

	if err := s.ArrangeElements([]string{"ghost"}); !errors.Is(err, editor.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
}

func TestSettingsActions(t *testing.T) {
	s := newStore(newBackend())

	_ = s.ToggleGrid()
	if !s.Snapshot().Grid {
		t.Fatal("expected grid on")
	}
	_ = s.ToggleGrid()
	if s.Snapshot().Grid {
		t.Fatal("expected grid off")
	}

	_ = s.SetTheme("midnight")
	if s.Snapshot().Theme != "midnight" {
		t.Fatal("expected theme midnight")
	}

	if err := s.SetGradient("brand", domain.Gradient{Kind: "radial", Colors: []string{"#000", "#fff"}}); err != nil {
		t.Fatal(err)
	}
	cfg, _ := s.Config()
	if g := cfg.Settings.Gradients["brand"]; g.Kind != "radial" || len(g.Colors) != 2 {
		t.Fatalf("unexpected gradient %+v", g)
	}
	if err := s.SetGradient("a.b", domain.Gradient{}); !errors.Is(err, docpath.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Reset / import / export
// ─────────────────────────────────────────────────────────────

func TestReset(t *testing.T) {
	s := newStore(newBackend())
	_, _ = s.AddElement(domain.ElementText, nil)
	s.Reset()

	if !docpath.Equal(s.Document(), domain.DefaultTree()) {
		t.Fatal("expected defaults")
	}
	snap := s.Snapshot()
	if !snap.Dirty || snap.PastLen != 2 || snap.FutureLen != 0 {
		t.Fatalf("unexpected state %+v", snap)
	}
	s.Undo()
	if s.Snapshot().ElementCount != 1 {
		t.Fatal("reset should be undoable")
	}
}

func TestScenario_ImportEmptyDocument(t *testing.T) {
	s := newStore(newBackend())
	_, _ = s.AddElement(domain.ElementText, nil)
	_, _ = s.AddElement(domain.ElementChart, nil)
	_ = s.Save(context.Background())

	if err := s.ImportDocument([]byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if !docpath.Equal(s.Document(), domain.DefaultTree()) {
		t.Fatalf("expected defaults, got %#v", s.Document())
	}
	if !s.HasUnsavedChanges() {
		t.Fatal("import should mark the document dirty")
	}
}

func TestImportDocument_Invalid(t *testing.T) {
	s := newStore(newBackend())
	if err := s.ImportDocument([]byte(`not json`)); !errors.Is(err, editor.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	if s.CanUndo() {
		t.Fatal("rejected import must not touch history")
	}
}

func TestImportTree_ReconcilesMalformedFields(t *testing.T) {
	s := newStore(newBackend())
	err := s.ImportTree(map[string]any{
		"settings": map[string]any{"grid": "sometimes"},
		"elements": []any{map[string]any{"id": "k", "type": "code"}, map[string]any{"type": "text"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.Grid || snap.ElementCount != 1 {
		t.Fatalf("unexpected state %+v", snap)
	}
	el, _ := s.Element("k")
	if el.Props["language"] != "text" {
		t.Fatalf("expected code defaults, got %v", el.Props)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newStore(newBackend())
	_, _ = src.AddElement(domain.ElementText, map[string]any{"content": "héllo"})
	_ = src.SetGradient("brand", domain.Gradient{Kind: "linear", Colors: []string{"#111", "#222"}, Angle: 45})
	_ = src.ToggleGrid()

	data, err := src.ExportDocument()
	if err != nil {
		t.Fatal(err)
	}

	dst := newStore(newBackend())
	if err := dst.ImportDocument(data); err != nil {
		t.Fatal(err)
	}
	if !docpath.Equal(src.Document(), dst.Document()) {
		t.Fatal("export then import should be lossless")
	}
}

// ─────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────

func TestSave_CleanMakesNoCalls(t *testing.T) {
	b := newBackend()
	s := newStore(b)
	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if b.saveCount() != 0 {
		t.Fatalf("expected no backend calls, got %d", b.saveCount())
	}
}

func TestSave_PersistsAndClearsDirty(t *testing.T) {
	b := newBackend()
	s := newStore(b)
	ctx := context.Background()
	id, _ := s.AddElement(domain.ElementText, nil)

	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if snap.Dirty || snap.Saving || snap.LastSavedAt.IsZero() {
		t.Fatalf("unexpected state %+v", snap)
	}
	if !docpath.Equal(b.stored(t, "page"), s.Document()) {
		t.Fatal("stored document differs from the live one")
	}

	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if b.saveCount() != 1 {
		t.Fatalf("second save with nothing dirty should be skipped, got %d calls", b.saveCount())
	}

	reloaded := newStore(b)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := reloaded.Element(id); err != nil {
		t.Fatalf("element lost after reload: %v", err)
	}
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	b := newBackend()
	b.saveErr = errors.New("disk full")
	s := newStore(b)
	_ = s.ToggleGrid()

	err := s.Save(context.Background())
	if !errors.Is(err, b.saveErr) {
		t.Fatalf("expected wrapped save error, got %v", err)
	}
	snap := s.Snapshot()
	if !snap.Dirty || snap.Saving || snap.LastError == "" {
		t.Fatalf("unexpected state after failure %+v", snap)
	}

	b.mu.Lock()
	b.saveErr = nil
	b.mu.Unlock()
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if snap := s.Snapshot(); snap.Dirty || snap.LastError != "" {
		t.Fatalf("unexpected state after retry %+v", snap)
	}
}

func TestSave_EditDuringSaveStaysDirty(t *testing.T) {
	b := newBackend()
	b.block = make(chan struct{})
	b.entered = make(chan struct{}, 4)
	s := newStore(b)
	_ = s.ToggleGrid()

	done := make(chan error, 1)
	go func() { done <- s.Save(context.Background()) }()
	<-b.entered

	if !s.Snapshot().Saving {
		t.Fatal("expected saving while the backend is blocked")
	}
	if err := s.SetTheme("dark"); err != nil {
		t.Fatalf("edits must not be blocked by a save: %v", err)
	}
	b.block <- struct{}{}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if b.saveCount() != 1 {
		t.Fatalf("expected one save, got %d", b.saveCount())
	}
	if !s.HasUnsavedChanges() {
		t.Fatal("an edit made during the save must stay dirty")
	}
	if v, _ := docpath.Get(b.stored(t, "page"), "settings.theme"); v != "default" {
		t.Fatalf("the in-flight save should hold the pre-edit snapshot, got theme %v", v)
	}
}

func TestSave_ConcurrentSavesCoalesce(t *testing.T) {
	b := newBackend()
	b.block = make(chan struct{})
	b.entered = make(chan struct{}, 4)
	s := newStore(b)
	ctx := context.Background()
	_ = s.ToggleGrid()

	done := make(chan error, 1)
	go func() { done <- s.Save(ctx) }()
	<-b.entered

	_ = s.SetTheme("dark")
	for range 3 {
		if err := s.Save(ctx); err != nil {
			t.Fatalf("coalesced save should return nil, got %v", err)
		}
	}

	b.block <- struct{}{}
	select {
	case <-b.entered:
	case <-time.After(time.Second):
		t.Fatal("expected a follow-up save round")
	}
	b.block <- struct{}{}

	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := b.saveCount(); got != 2 {
		t.Fatalf("expected 2 backend saves, got %d", got)
	}
	if s.HasUnsavedChanges() || s.Snapshot().Saving {
		t.Fatalf("unexpected state %+v", s.Snapshot())
	}
	if v, _ := docpath.Get(b.stored(t, "page"), "settings.theme"); v != "dark" {
		t.Fatalf("follow-up round should persist the latest edit, got %v", v)
	}
}

func TestWait(t *testing.T) {
	b := newBackend()
	b.block = make(chan struct{})
	b.entered = make(chan struct{}, 1)
	s := newStore(b)
	_ = s.ToggleGrid()

	go func() { _ = s.Save(context.Background()) }()
	<-b.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while saving, got %v", err)
	}

	b.block <- struct{}{}
	if err := s.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().Saving {
		t.Fatal("expected idle after Wait")
	}
}

// ─────────────────────────────────────────────────────────────
// Subscriptions
// ─────────────────────────────────────────────────────────────

func TestSubscribe(t *testing.T) {
	s := newStore(newBackend())

	var got []editor.Snapshot
	unsubscribe := s.Subscribe(func(snap editor.Snapshot) {
		got = append(got, snap)
		// Reading from a listener must not deadlock.
		_ = s.CanUndo()
	})

	_, _ = s.AddElement(domain.ElementText, nil)
	s.Undo()
	s.Undo() // no-op, no notification

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if !editor.CanUndo(got[0]) || !editor.HasUnsavedChanges(got[0]) {
		t.Errorf("unexpected first snapshot %+v", got[0])
	}
	if !editor.CanRedo(got[1]) || editor.HasUnsavedChanges(got[1]) {
		t.Errorf("unexpected second snapshot %+v", got[1])
	}

	unsubscribe()
	_ = s.ToggleGrid()
	if len(got) != 2 {
		t.Fatal("unsubscribed listener was called")
	}
}
