package domain

import "pageeditor/internal/docpath"

// DefaultTree returns a fresh copy of the canonical seed document. It is
// the base every loaded or imported document is merged onto.
func DefaultTree() map[string]any {
	return map[string]any{
		"version":  float64(CurrentVersion),
		"elements": []any{},
		"settings": map[string]any{
			"grid":       false,
			"gridSize":   30.0,
			"snapToGrid": true,
			"theme":      "default",
			"gradients": map[string]any{
				"primary": map[string]any{"kind": "linear", "colors": []any{"#6366f1", "#8b5cf6"}, "angle": 135.0},
				"accent":  map[string]any{"kind": "linear", "colors": []any{"#f59e0b", "#ef4444"}, "angle": 90.0},
			},
			"layout": map[string]any{
				"width":      1440.0,
				"height":     900.0,
				"background": "#0f0f14",
				"padding":    32.0,
			},
		},
	}
}

// Defaults returns the seed document in typed form.
func Defaults() *EditorConfig {
	cfg, err := FromTree(DefaultTree())
	if err != nil {
		// DefaultTree is a literal; failing to decode it is a programming error.
		panic(err)
	}
	return cfg
}

// Grid size bounds. Reconcile clamps settings.gridSize into this range.
const (
	MinGridSize = 5.0
	MaxGridSize = 500.0
)

var gradientTemplate = map[string]any{"kind": "solid", "colors": []any{}, "angle": 0.0}

// Reconcile merges doc onto the default document and repairs whatever does
// not fit the schema: fields whose type differs from their default take the
// default, the grid size is clamped, gradients are completed, elements without an id or with an unknown
// kind are dropped, later duplicates of an id are dropped, and element props
// are completed from their kind defaults. The result is deterministic and
// never aliases doc.
func Reconcile(doc map[string]any) map[string]any {
	defaults := DefaultTree()
	merged := docpath.MergeMaps(defaults, doc)
	out, _ := conform(defaults, merged).(map[string]any)
	out["version"] = float64(CurrentVersion)

	settings := out["settings"].(map[string]any)
	settings["gridSize"] = max(MinGridSize, min(MaxGridSize, settings["gridSize"].(float64)))
	if gradients, ok := settings["gradients"].(map[string]any); ok {
		fixed := make(map[string]any, len(gradients))
		for name, g := range gradients {
			if _, ok := g.(map[string]any); !ok {
				continue
			}
			fixed[name] = conform(gradientTemplate, docpath.DeepMerge(gradientTemplate, g))
		}
		settings["gradients"] = fixed
	}

	out["elements"] = reconcileElements(out["elements"].([]any))
	return out
}

func reconcileElements(items []any) []any {
	seen := make(map[string]bool, len(items))
	out := make([]any, 0, len(items))
	for _, item := range items {
		el, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := el["id"].(string)
		kind, _ := el["type"].(string)
		if id == "" || seen[id] || !ElementKind(kind).Valid() {
			continue
		}
		seen[id] = true

		props, _ := el["props"].(map[string]any)
		fixed := docpath.CloneMap(el)
		fixed["props"] = docpath.MergeMaps(KindDefaults(ElementKind(kind)), props)
		out = append(out, fixed)
	}
	return out
}

// conform walks got alongside the default def and replaces every value whose
// shape disagrees with the default. Keys unknown to the default are kept.
func conform(def, got any) any {
	switch d := def.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return docpath.DeepClone(d)
		}
		out := make(map[string]any, len(g))
		for k, v := range g {
			if dv, known := d[k]; known {
				out[k] = conform(dv, v)
			} else {
				out[k] = v
			}
		}
		for k, dv := range d {
			if _, ok := out[k]; !ok {
				out[k] = docpath.DeepClone(dv)
			}
		}
		return out
	case []any:
		if g, ok := got.([]any); ok {
			return g
		}
		return docpath.DeepClone(d)
	case string:
		if _, ok := got.(string); ok {
			return got
		}
		return d
	case bool:
		if _, ok := got.(bool); ok {
			return got
		}
		return d
	case float64:
		if _, ok := got.(float64); ok {
			return got
		}
		return d
	}
	return got
}
