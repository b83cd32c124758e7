package docpath

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

type unset struct{}

// Unset, placed in a DeepMerge override, removes the key from the result
// instead of storing a value.
var Unset any = unset{}

// DeepClone returns a copy of v that shares no mutable structure with it.
func DeepClone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		if t == nil {
			return []any(nil)
		}
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepClone(item)
		}
		return out
	default:
		return v
	}
}

// CloneMap is DeepClone for a keyed root.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepClone(v)
	}
	return out
}

// DeepMerge merges override onto base and returns a new tree. Keyed
// structures merge key by key; sequences in override replace the base
// sequence wholesale; nil in override replaces the base value. Neither input
// is modified.
func DeepMerge(base, override any) any {
	if override == Unset {
		return nil
	}
	ov, ovIsMap := override.(map[string]any)
	bv, baseIsMap := base.(map[string]any)
	if !ovIsMap || !baseIsMap {
		return DeepClone(override)
	}

	out := make(map[string]any, len(bv)+len(ov))
	for k, v := range bv {
		out[k] = DeepClone(v)
	}
	for k, v := range ov {
		if v == Unset {
			delete(out, k)
			continue
		}
		if existing, ok := bv[k]; ok {
			out[k] = DeepMerge(existing, v)
			continue
		}
		out[k] = DeepClone(v)
	}
	return out
}

// MergeMaps is DeepMerge for keyed roots.
func MergeMaps(base, override map[string]any) map[string]any {
	if override == nil {
		return CloneMap(base)
	}
	out, _ := DeepMerge(base, override).(map[string]any)
	return out
}

// Equal reports whether two trees are structurally equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Normalize converts an arbitrary Go value (structs, typed slices and maps,
// integer types) into the canonical tree form so that it can be stored,
// compared and merged alongside decoded JSON. Non-finite floats are
// rejected with ErrInvalidValue.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool:
		return v, nil
	case float64:
		if !finite(t) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, t)
		}
		return v, nil
	}
	if isTree(v) {
		if err := checkFinite(v); err != nil {
			return nil, err
		}
		return DeepClone(v), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docpath: normalize %T: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docpath: normalize %T: %w", v, err)
	}
	return out, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// checkFinite walks a canonical tree looking for NaN or ±Inf.
func checkFinite(v any) error {
	switch t := v.(type) {
	case float64:
		if !finite(t) {
			return fmt.Errorf("%w: %v", ErrInvalidValue, t)
		}
	case map[string]any:
		for k, item := range t {
			if err := checkFinite(item); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
		}
	case []any:
		for i, item := range t {
			if err := checkFinite(item); err != nil {
				return fmt.Errorf("%d: %w", i, err)
			}
		}
	}
	return nil
}

func isTree(v any) bool {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return true
	case map[string]any:
		for _, item := range t {
			if !isTree(item) {
				return false
			}
		}
		return true
	case []any:
		for _, item := range t {
			if !isTree(item) {
				return false
			}
		}
		return true
	}
	return false
}
