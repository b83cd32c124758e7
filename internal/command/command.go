// Package command maps user intents (toolbar, menus, hotkeys, MCP tools) onto
// editor store actions.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pageeditor/internal/domain"
	"pageeditor/internal/editor"
)

// Intent names one command.
type Intent string

const (
	IntentUndo            Intent = "undo"
	IntentRedo            Intent = "redo"
	IntentSave            Intent = "save"
	IntentReset           Intent = "reset"
	IntentExport          Intent = "export"
	IntentImport          Intent = "import"
	IntentToggleGrid      Intent = "toggle-grid"
	IntentSetTheme        Intent = "set-theme"
	IntentAddElement      Intent = "add-element"
	IntentRemoveElement   Intent = "remove-element"
	IntentUpdateElement   Intent = "update-element"
	IntentReorderElements Intent = "reorder-elements"
	IntentDuplicate       Intent = "duplicate-element"
	IntentMoveElement     Intent = "move-element"
	IntentArrange         Intent = "arrange-elements"
)

// ErrUnknownIntent is returned for an intent with no handler.
var ErrUnknownIntent = errors.New("unknown intent")

// ErrMissingArg is returned when an intent is dispatched without a required
// argument.
var ErrMissingArg = errors.New("missing argument")

// Args carries the parameters of an intent. Only the fields the intent uses
// are read.
type Args struct {
	ID       string         `json:"id,omitempty"`
	Kind     string         `json:"kind,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
	Path     string         `json:"path,omitempty"`
	Value    any            `json:"value,omitempty"`
	IDs      []string       `json:"ids,omitempty"`
	Index    int            `json:"index,omitempty"`
	Theme    string         `json:"theme,omitempty"`
	Document string         `json:"document,omitempty"`
}

// Result is what a dispatched intent produced.
type Result struct {
	// Applied is false when the intent was a guarded no-op (undo with no
	// history, save with nothing dirty).
	Applied  bool            `json:"applied"`
	ID       string          `json:"id,omitempty"`
	Document string          `json:"document,omitempty"`
	State    editor.Snapshot `json:"state"`
}

// Dispatcher runs intents against one store.
type Dispatcher struct {
	store *editor.Store
}

// NewDispatcher creates a Dispatcher for store.
func NewDispatcher(store *editor.Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Store returns the store intents are dispatched to.
func (d *Dispatcher) Store() *editor.Store { return d.store }

// Dispatch runs intent with args.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent, args Args) (Result, error) {
	res := Result{Applied: true}
	var err error

	switch intent {
	case IntentUndo:
		res.Applied = d.store.Undo()
	case IntentRedo:
		res.Applied = d.store.Redo()
	case IntentSave:
		res.Applied = d.store.HasUnsavedChanges()
		err = d.store.Save(ctx)
	case IntentReset:
		d.store.Reset()
	case IntentExport:
		var raw []byte
		raw, err = d.store.ExportDocument()
		res.Document = string(raw)
	case IntentImport:
		if args.Document == "" {
			return Result{}, fmt.Errorf("%w: document", ErrMissingArg)
		}
		err = d.store.ImportDocument([]byte(args.Document))
	case IntentToggleGrid:
		err = d.store.ToggleGrid()
	case IntentSetTheme:
		if args.Theme == "" {
			return Result{}, fmt.Errorf("%w: theme", ErrMissingArg)
		}
		err = d.store.SetTheme(args.Theme)
	case IntentAddElement:
		res.ID, err = d.store.AddElement(domain.ElementKind(args.Kind), args.Props)
	case IntentRemoveElement:
		err = d.store.RemoveElement(args.ID)
	case IntentUpdateElement:
		err = d.store.UpdateElementProperty(args.ID, args.Path, args.Value)
	case IntentReorderElements:
		err = d.store.ReorderElements(args.IDs)
	case IntentDuplicate:
		res.ID, err = d.store.DuplicateElement(args.ID)
	case IntentMoveElement:
		err = d.store.MoveElement(args.ID, args.Index)
	case IntentArrange:
		err = d.store.ArrangeElements(args.IDs)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownIntent, intent)
	}

	if err != nil {
		return Result{}, err
	}
	res.State = d.store.Snapshot()
	return res, nil
}

// DispatchJSON decodes args from JSON and dispatches intent.
func (d *Dispatcher) DispatchJSON(ctx context.Context, intent string, argsJSON string) (Result, error) {
	var args Args
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return Result{}, fmt.Errorf("decode args for %s: %w", intent, err)
		}
	}
	return d.Dispatch(ctx, Intent(intent), args)
}
