package command

import (
	"context"
	"sort"
	"strings"

	"pageeditor/internal/editor"
)

// Binding ties a key chord to an intent. Guard, when set, must hold for the
// binding to fire.
type Binding struct {
	Chord  string
	Intent Intent
	Guard  func(editor.Snapshot) bool
}

// Keymap maps normalized chords to bindings.
type Keymap map[string]Binding

// DefaultKeymap returns the conventional undo, redo and save bindings.
func DefaultKeymap() Keymap {
	km := Keymap{}
	km.Bind("mod+z", IntentUndo, editor.CanUndo)
	km.Bind("mod+shift+z", IntentRedo, editor.CanRedo)
	km.Bind("mod+y", IntentRedo, editor.CanRedo)
	km.Bind("mod+s", IntentSave, editor.HasUnsavedChanges)
	km.Bind("mod+g", IntentToggleGrid, nil)
	return km
}

// Bind adds or replaces a binding.
func (k Keymap) Bind(chord string, intent Intent, guard func(editor.Snapshot) bool) {
	c := NormalizeChord(chord)
	k[c] = Binding{Chord: c, Intent: intent, Guard: guard}
}

// Lookup returns the binding for chord.
func (k Keymap) Lookup(chord string) (Binding, bool) {
	b, ok := k[NormalizeChord(chord)]
	return b, ok
}

var modifierOrder = map[string]int{"mod": 0, "alt": 1, "shift": 2}

// NormalizeChord lowercases a chord, maps ctrl, cmd, meta and command to
// "mod" and orders modifiers as mod, alt, shift before the key:
// "Shift+Cmd+Z" becomes "mod+shift+z".
func NormalizeChord(chord string) string {
	parts := strings.Split(strings.ToLower(strings.ReplaceAll(chord, " ", "")), "+")
	var mods []string
	var key string
	for _, p := range parts {
		switch p {
		case "ctrl", "control", "cmd", "command", "meta", "super", "mod":
			mods = append(mods, "mod")
		case "alt", "option", "opt":
			mods = append(mods, "alt")
		case "shift":
			mods = append(mods, "shift")
		case "":
		default:
			key = p
		}
	}
	sort.Slice(mods, func(i, j int) bool { return modifierOrder[mods[i]] < modifierOrder[mods[j]] })
	mods = dedupe(mods)
	return strings.Join(append(mods, key), "+")
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// HandleKey dispatches the binding for chord. It reports false with a nil
// error when no binding matches or the binding's guard does not hold, so a
// hotkey pressed with nothing to undo, redo or save is a no-op.
func (d *Dispatcher) HandleKey(ctx context.Context, km Keymap, chord string) (bool, error) {
	b, ok := km.Lookup(chord)
	if !ok {
		return false, nil
	}
	if b.Guard != nil && !b.Guard(d.store.Snapshot()) {
		return false, nil
	}
	res, err := d.Dispatch(ctx, b.Intent, Args{})
	if err != nil {
		return false, err
	}
	return res.Applied, nil
}
