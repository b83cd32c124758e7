package editor

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"pageeditor/internal/docpath"
	"pageeditor/internal/domain"
	"pageeditor/internal/layout"
)

// AddElement appends a new element of kind with props completed from the
// kind defaults and returns its id. An element given no x or y is placed on
// the first free grid position.
func (s *Store) AddElement(kind domain.ElementKind, props map[string]any) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	given, err := normalizeProps(props)
	if err != nil {
		return "", err
	}

	var id string
	err = s.apply(func(doc map[string]any) (map[string]any, error) {
		issued, err := s.issueID()
		if err != nil {
			return nil, err
		}
		id = issued
		merged := docpath.MergeMaps(domain.KindDefaults(kind), given)
		_, hasX := given[domain.PropX]
		_, hasY := given[domain.PropY]
		if !hasX || !hasY {
			x, y := s.place(doc, num(merged, domain.PropWidth), num(merged, domain.PropHeight))
			if !hasX {
				merged[domain.PropX] = x
			}
			if !hasY {
				merged[domain.PropY] = y
			}
		}
		el := map[string]any{"id": id, "type": string(kind), "props": merged}
		return setMap(doc, docpath.Join("elements", len(elements(doc))), el)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveElement deletes the element with id.
func (s *Store) RemoveElement(id string) error {
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		idx, err := indexOf(doc, id)
		if err != nil {
			return nil, err
		}
		out, err := docpath.Delete(doc, docpath.Join("elements", idx))
		if err != nil {
			return nil, err
		}
		return out.(map[string]any), nil
	})
}

// UpdateElementProperty stores value at propPath inside the props of the
// element with id. propPath may be nested ("style.color").
func (s *Store) UpdateElementProperty(id, propPath string, value any) error {
	if propPath == "" {
		return fmt.Errorf("%w: empty property path", docpath.ErrInvalidPath)
	}
	v, err := docpath.Normalize(value)
	if err != nil {
		return err
	}
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		idx, err := indexOf(doc, id)
		if err != nil {
			return nil, err
		}
		return setMap(doc, docpath.Join("elements", idx, "props", propPath), v)
	})
}

// ReorderElements sets the render order. ids must name every element once.
func (s *Store) ReorderElements(ids []string) error {
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		els := elements(doc)
		if len(ids) != len(els) || len(lo.Uniq(ids)) != len(ids) {
			return nil, ErrInvalidOrder
		}
		byID := lo.SliceToMap(els, func(item any) (string, any) {
			return elementID(item), item
		})
		ordered := make([]any, 0, len(ids))
		for _, id := range ids {
			el, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, id)
			}
			ordered = append(ordered, el)
		}
		return setMap(doc, "elements", ordered)
	})
}

// MoveElement moves the element with id to index in the render order.
// Out-of-range indexes are clamped.
func (s *Store) MoveElement(id string, index int) error {
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		from, err := indexOf(doc, id)
		if err != nil {
			return nil, err
		}
		els := elements(doc)
		index = max(0, min(index, len(els)-1))
		el := els[from]
		rest := append(append([]any{}, els[:from]...), els[from+1:]...)
		ordered := append(append(append([]any{}, rest[:index]...), el), rest[index:]...)
		return setMap(doc, "elements", ordered)
	})
}

// DuplicateElement inserts a copy of the element with id right above it,
// offset by one grid cell, and returns the copy's id.
func (s *Store) DuplicateElement(id string) (string, error) {
	var newID string
	err := s.apply(func(doc map[string]any) (map[string]any, error) {
		idx, err := indexOf(doc, id)
		if err != nil {
			return nil, err
		}
		if newID, err = s.issueID(); err != nil {
			return nil, err
		}
		els := elements(doc)
		dup := docpath.CloneMap(els[idx].(map[string]any))
		dup["id"] = newID
		props, _ := dup["props"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		step := gridSize(doc)
		props[domain.PropX] = num(props, domain.PropX) + step
		props[domain.PropY] = num(props, domain.PropY) + step
		dup["props"] = props

		ordered := make([]any, 0, len(els)+1)
		ordered = append(ordered, els[:idx+1]...)
		ordered = append(ordered, dup)
		ordered = append(ordered, els[idx+1:]...)
		return setMap(doc, "elements", ordered)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// ToggleGrid flips grid visibility.
func (s *Store) ToggleGrid() error {
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		on, _ := docpath.Get(doc, "settings.grid")
		b, _ := on.(bool)
		return setMap(doc, "settings.grid", !b)
	})
}

// SetTheme selects the active theme.
func (s *Store) SetTheme(name string) error {
	return s.Mutate("settings.theme", name)
}

// SetGradient creates or replaces the named gradient.
func (s *Store) SetGradient(name string, g domain.Gradient) error {
	if name == "" || strings.ContainsAny(name, ".[]") {
		return fmt.Errorf("%w: gradient name %q", docpath.ErrInvalidPath, name)
	}
	if g.Colors == nil {
		g.Colors = []string{}
	}
	return s.Mutate(docpath.Join("settings", "gradients", name), g)
}

// ArrangeElements lays the elements with ids out in rows, in the given
// order, starting from the top-left corner of their current bounding box.
// No ids arranges every element.
func (s *Store) ArrangeElements(ids []string) error {
	return s.apply(func(doc map[string]any) (map[string]any, error) {
		if len(ids) == 0 {
			ids = lo.Map(elements(doc), func(item any, _ int) string { return elementID(item) })
		}
		if len(ids) == 0 {
			return doc, nil
		}
		idxs := make([]int, len(ids))
		boxes := make([]layout.Rect, len(ids))
		for i, id := range ids {
			idx, err := indexOf(doc, id)
			if err != nil {
				return nil, err
			}
			el, _ := elements(doc)[idx].(map[string]any)
			props, _ := el["props"].(map[string]any)
			idxs[i] = idx
			boxes[i] = layout.Rect{
				X: num(props, domain.PropX),
				Y: num(props, domain.PropY),
				W: num(props, domain.PropWidth),
				H: num(props, domain.PropHeight),
			}
		}

		startX := lo.MinBy(boxes, func(a, b layout.Rect) bool { return a.X < b.X }).X
		startY := lo.MinBy(boxes, func(a, b layout.Rect) bool { return a.Y < b.Y }).Y
		engine := s.layout.WithGrid(gridSize(doc))
		if width, ok := docpath.Lookup(doc, "settings.layout.width"); ok {
			if f, ok := width.(float64); ok {
				engine = engine.WithRowWidth(f)
			}
		}

		out := doc
		for i, r := range engine.Arrange(boxes, startX, startY) {
			var err error
			base := docpath.Join("elements", idxs[i], "props")
			if out, err = setMap(out, docpath.Join(base, domain.PropX), r.X); err != nil {
				return nil, err
			}
			if out, err = setMap(out, docpath.Join(base, domain.PropY), r.Y); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// issueID returns an id not yet used in this session. Must hold s.mu.
func (s *Store) issueID() (string, error) {
	for range 8 {
		id := s.newID()
		if _, used := s.issued[id]; id == "" || used {
			continue
		}
		s.issued[id] = struct{}{}
		return id, nil
	}
	return "", ErrDuplicateID
}

func (s *Store) place(doc map[string]any, w, h float64) (float64, float64) {
	rects := lo.Map(elements(doc), func(item any, _ int) layout.Rect {
		el, _ := item.(map[string]any)
		props, _ := el["props"].(map[string]any)
		return layout.Rect{
			X: num(props, domain.PropX),
			Y: num(props, domain.PropY),
			W: num(props, domain.PropWidth),
			H: num(props, domain.PropHeight),
		}
	})
	engine := s.layout.WithGrid(gridSize(doc))
	if width, ok := docpath.Lookup(doc, "settings.layout.width"); ok {
		if f, ok := width.(float64); ok {
			engine = engine.WithRowWidth(f)
		}
	}
	return engine.NextPosition(rects, w, h)
}

func elements(doc map[string]any) []any {
	els, _ := doc["elements"].([]any)
	return els
}

func elementID(item any) string {
	el, _ := item.(map[string]any)
	id, _ := el["id"].(string)
	return id
}

func indexOf(doc map[string]any, id string) (int, error) {
	_, idx, ok := lo.FindIndexOf(elements(doc), func(item any) bool {
		return elementID(item) == id
	})
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	return idx, nil
}

func gridSize(doc map[string]any) float64 {
	v, _ := docpath.Get(doc, "settings.gridSize")
	if f, ok := v.(float64); ok && f > 0 {
		return f
	}
	return layout.GridSize
}

func num(m map[string]any, key string) float64 {
	f, _ := m[key].(float64)
	return f
}

func normalizeProps(props map[string]any) (map[string]any, error) {
	if props == nil {
		return map[string]any{}, nil
	}
	v, err := docpath.Normalize(props)
	if err != nil {
		return nil, err
	}
	m, _ := v.(map[string]any)
	return m, nil
}
