package app

import (
	"encoding/base64"
	"fmt"

	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"pageeditor/internal/domain"
)

// ============================================================
// Embedded Terminal (external editor)
// ============================================================

// TerminalWrite sends input from xterm.js to the PTY.
func (a *App) TerminalWrite(data string) error {
	return a.term.Write(data)
}

// TerminalResize resizes the PTY.
func (a *App) TerminalResize(cols, rows int) error {
	return a.term.Resize(uint16(cols), uint16(rows))
}

// OpenElementInEditor checks out the content of an element and opens it in
// the embedded editor. Writes made in the editor are previewed live.
func (a *App) OpenElementInEditor(elementID string, lineNumber int) error {
	if a.ext == nil {
		return fmt.Errorf("external editing is unavailable")
	}
	if a.term.IsRunning() {
		return fmt.Errorf("an element is already open in %s", a.term.Editor())
	}
	store, err := a.active()
	if err != nil {
		return err
	}
	el, err := store.Element(elementID)
	if err != nil {
		return err
	}
	content, _ := el.Props[domain.PropContent].(string)
	language, _ := el.Props["language"].(string)

	path, err := a.ext.Checkout(elementID, el.Kind, language, content)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.editing = editingTarget{key: store.Key(), id: elementID}
	a.mu.Unlock()

	return a.term.OpenFile(path, lineNumber)
}

// CloseEditor closes the embedded terminal session. The exit callback
// applies the final content.
func (a *App) CloseEditor() {
	a.term.Close()
}

// onEditorExit applies the final file content to the element and releases
// the checkout.
func (a *App) onEditorExit() {
	a.mu.Lock()
	target := a.editing
	a.editing = editingTarget{}
	a.mu.Unlock()
	if target.id == "" || a.ext == nil {
		return
	}

	content, err := a.ext.Release(target.id)
	if err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[EXTEDIT] release %s: %v", target.id, err)
		return
	}
	a.applyContent(target.key, target.id, content)
}

// onExternalEdit previews a write made in the external editor.
func (a *App) onExternalEdit(elementID, content string) {
	a.mu.Lock()
	target := a.editing
	a.mu.Unlock()
	if target.id != elementID {
		return
	}
	a.applyContent(target.key, elementID, content)
}

// applyContent sets the content prop when it differs, so a write that
// changes nothing adds no history entry.
func (a *App) applyContent(key, elementID, content string) {
	store, err := a.editors.Session(key)
	if err != nil {
		return
	}
	el, err := store.Element(elementID)
	if err != nil {
		// Removed while being edited.
		return
	}
	if current, _ := el.Props[domain.PropContent].(string); current == content {
		return
	}
	if err := store.UpdateElementProperty(elementID, domain.PropContent, content); err != nil {
		wailsRuntime.LogErrorf(a.ctx, "[EXTEDIT] update %s: %v", elementID, err)
	}
}

// terminalDataCallback returns the callback used to forward PTY output to the frontend.
func terminalDataCallback(a *App) func(data []byte) {
	return func(data []byte) {
		encoded := base64.StdEncoding.EncodeToString(data)
		wailsRuntime.EventsEmit(a.ctx, "terminal:data", encoded)
	}
}

// terminalExitCallback returns the callback used when the editor process exits.
func terminalExitCallback(a *App) func(exitLine int) {
	return func(exitLine int) {
		a.onEditorExit()
		wailsRuntime.EventsEmit(a.ctx, "terminal:exit", map[string]int{
			"cursorLine": exitLine,
		})
	}
}
