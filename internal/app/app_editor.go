package app

import (
	"encoding/json"
	"fmt"
	"os"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"pageeditor/internal/command"
	"pageeditor/internal/docpath"
	"pageeditor/internal/domain"
	"pageeditor/internal/editor"
)

// ============================================================
// Documents
// ============================================================

// active returns the store of the active document.
func (a *App) active() (*editor.Store, error) {
	return a.editors.Open(a.ctx, a.activeKey())
}

// OpenDocument opens key and makes it the active document.
func (a *App) OpenDocument(key string) (editor.Snapshot, error) {
	store, err := a.editors.Open(a.ctx, key)
	if err != nil {
		return editor.Snapshot{}, err
	}
	a.mu.Lock()
	a.key = key
	a.mu.Unlock()
	return store.Snapshot(), nil
}

// ListDocuments returns the keys of the open documents.
func (a *App) ListDocuments() []string {
	return a.editors.Keys()
}

// CloseDocument saves and closes key. The active document cannot be closed.
func (a *App) CloseDocument(key string) error {
	if key == a.activeKey() {
		return fmt.Errorf("cannot close the active document %q", key)
	}
	return a.editors.Close(a.ctx, key)
}

// GetState returns the derived state of the active document.
func (a *App) GetState() (editor.Snapshot, error) {
	store, err := a.active()
	if err != nil {
		return editor.Snapshot{}, err
	}
	return store.Snapshot(), nil
}

// GetDocument returns the live document tree.
func (a *App) GetDocument() (map[string]any, error) {
	store, err := a.active()
	if err != nil {
		return nil, err
	}
	return store.Document(), nil
}

// GetValue returns the value at a dotted path, or nil when it is absent.
func (a *App) GetValue(path string) (any, error) {
	store, err := a.active()
	if err != nil {
		return nil, err
	}
	v, err := store.Value(path)
	if err != nil {
		return nil, err
	}
	if v == docpath.NotFound {
		return nil, nil
	}
	return v, nil
}

// ============================================================
// Commands
// ============================================================

// Dispatch runs a command intent with JSON-encoded arguments.
func (a *App) Dispatch(intent, argsJSON string) (command.Result, error) {
	store, err := a.active()
	if err != nil {
		return command.Result{}, err
	}
	return command.NewDispatcher(store).DispatchJSON(a.ctx, intent, argsJSON)
}

// HandleKey runs the command bound to chord. It reports whether a command
// ran.
func (a *App) HandleKey(chord string) (bool, error) {
	store, err := a.active()
	if err != nil {
		return false, err
	}
	return command.NewDispatcher(store).HandleKey(a.ctx, a.keymap, chord)
}

// ============================================================
// Elements
// ============================================================

func (a *App) AddElement(kind string, propsJSON string) (string, error) {
	store, err := a.active()
	if err != nil {
		return "", err
	}
	var props map[string]any
	if propsJSON != "" {
		if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
			return "", fmt.Errorf("decode props: %w", err)
		}
	}
	return store.AddElement(domain.ElementKind(kind), props)
}

func (a *App) UpdateElementProperty(id, propPath string, value any) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.UpdateElementProperty(id, propPath, value)
}

func (a *App) RemoveElement(id string) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.RemoveElement(id)
}

func (a *App) ReorderElements(ids []string) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.ReorderElements(ids)
}

func (a *App) MoveElement(id string, index int) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.MoveElement(id, index)
}

func (a *App) DuplicateElement(id string) (string, error) {
	store, err := a.active()
	if err != nil {
		return "", err
	}
	return store.DuplicateElement(id)
}

// ArrangeElements lays out ids in a grid; no ids arranges every element.
func (a *App) ArrangeElements(ids []string) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.ArrangeElements(ids)
}

// ============================================================
// Settings
// ============================================================

func (a *App) ToggleGrid() error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.ToggleGrid()
}

func (a *App) SetTheme(name string) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.SetTheme(name)
}

func (a *App) SetGradient(name string, g domain.Gradient) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.SetGradient(name, g)
}

// ============================================================
// History and persistence
// ============================================================

func (a *App) Undo() (bool, error) {
	store, err := a.active()
	if err != nil {
		return false, err
	}
	return store.Undo(), nil
}

func (a *App) Redo() (bool, error) {
	store, err := a.active()
	if err != nil {
		return false, err
	}
	return store.Redo(), nil
}

// Save persists the active document and waits for it to land.
func (a *App) Save() error {
	store, err := a.active()
	if err != nil {
		return err
	}
	if err := store.Save(a.ctx); err != nil {
		return err
	}
	return store.Wait(a.ctx)
}

func (a *App) Reset() error {
	store, err := a.active()
	if err != nil {
		return err
	}
	store.Reset()
	return nil
}

func (a *App) ExportDocument() (string, error) {
	store, err := a.active()
	if err != nil {
		return "", err
	}
	raw, err := store.ExportDocument()
	return string(raw), err
}

func (a *App) ImportDocument(data string) error {
	store, err := a.active()
	if err != nil {
		return err
	}
	return store.ImportDocument([]byte(data))
}

var jsonFilter = []wailsRuntime.FileFilter{
	{DisplayName: "Page documents (*.json)", Pattern: "*.json"},
}

// ExportToFile asks for a destination and writes the active document there.
// It returns the chosen path, or "" when the dialog was cancelled.
func (a *App) ExportToFile() (string, error) {
	path, err := wailsRuntime.SaveFileDialog(a.ctx, wailsRuntime.SaveDialogOptions{
		Title:           "Export Page",
		DefaultFilename: a.activeKey() + ".json",
		Filters:         jsonFilter,
	})
	if err != nil || path == "" {
		return "", err
	}
	data, err := a.ExportDocument()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// ImportFromFile asks for a document file and imports it into the active
// document.
func (a *App) ImportFromFile() (string, error) {
	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:   "Import Page",
		Filters: jsonFilter,
	})
	if err != nil || path == "" {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := a.ImportDocument(string(data)); err != nil {
		return "", err
	}
	return path, nil
}

func (a *App) ListRevisions() ([]domain.Revision, error) {
	return a.editors.ListRevisions(a.ctx, a.activeKey())
}

func (a *App) RestoreRevision(revisionID string) error {
	return a.editors.RestoreRevision(a.ctx, a.activeKey(), revisionID)
}

func (a *App) activeKey() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key
}
