// Package docpath reads and writes values inside nested editor documents.
//
// A document is a tree of map[string]any (keyed structures), []any (ordered
// sequences) and scalars (string, float64, bool, nil), the shape produced by
// encoding/json. Writes never mutate their input: every container on the
// written path is copied and untouched branches are shared with the original.
package docpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidPath is returned for paths that cannot be parsed or address
	// an impossible position (empty segment, negative index).
	ErrInvalidPath = errors.New("docpath: invalid path")

	// ErrNotTraversable is returned when the document root is a scalar.
	ErrNotTraversable = errors.New("docpath: document is not traversable")

	// ErrInvalidValue is returned for values JSON cannot encode (NaN, ±Inf).
	ErrInvalidValue = errors.New("docpath: invalid value")
)

// MaxPad is how far past the end of a sequence Set may write. The gap is
// filled with nil.
const MaxPad = 1024

type notFound struct{}

func (notFound) String() string { return "<not found>" }

// NotFound is returned by Get when a path does not resolve.
var NotFound any = notFound{}

// Segment is one step of a parsed path.
type Segment struct {
	Key   string
	Index int // -1 unless Key is a non-negative integer
}

// IsIndex reports whether the segment can address a sequence position.
func (s Segment) IsIndex() bool { return s.Index >= 0 }

// Parse splits a dot/bracket path such as "elements[3].style.color" or
// "elements.3.style.color" into segments. The empty path has no segments and
// addresses the root.
func Parse(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}

	var segs []Segment
	var cur strings.Builder
	flush := func(allowEmpty bool) error {
		if cur.Len() == 0 {
			if allowEmpty {
				return nil
			}
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		segs = append(segs, newSegment(cur.String()))
		cur.Reset()
		return nil
	}

	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			// "a[0].b" leaves the builder empty right after ']'
			if err := flush(i > 0 && path[i-1] == ']'); err != nil {
				return nil, err
			}
		case '[':
			if err := flush(i == 0 || path[i-1] == ']'); err != nil {
				return nil, err
			}
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated bracket in %q", ErrInvalidPath, path)
			}
			inner := strings.Trim(path[i+1:i+end], `"'`)
			if inner == "" {
				return nil, fmt.Errorf("%w: empty brackets in %q", ErrInvalidPath, path)
			}
			segs = append(segs, newSegment(inner))
			i += end
		case ']':
			return nil, fmt.Errorf("%w: unexpected ']' in %q", ErrInvalidPath, path)
		default:
			cur.WriteByte(c)
		}
	}
	if err := flush(path[len(path)-1] == ']'); err != nil {
		return nil, err
	}
	return segs, nil
}

func newSegment(key string) Segment {
	idx := -1
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && key[0] != '+' {
		idx = n
	}
	return Segment{Key: key, Index: idx}
}

// Join builds a dot path from its parts.
func Join(parts ...any) string {
	strs := make([]string, 0, len(parts))
	for _, p := range parts {
		s := fmt.Sprint(p)
		if s != "" {
			strs = append(strs, s)
		}
	}
	return strings.Join(strs, ".")
}

func traversable(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// Get resolves path against doc. A path that does not resolve yields
// NotFound and a nil error; only a scalar doc is an error.
func Get(doc any, path string) (any, error) {
	if !traversable(doc) {
		return nil, ErrNotTraversable
	}
	segs, err := Parse(path)
	if err != nil {
		return nil, err
	}

	cur := doc
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg.Key]
			if !ok {
				return NotFound, nil
			}
			cur = v
		case []any:
			if !seg.IsIndex() || seg.Index >= len(node) {
				return NotFound, nil
			}
			cur = node[seg.Index]
		default:
			return NotFound, nil
		}
	}
	return cur, nil
}

// Lookup is Get in comma-ok form.
func Lookup(doc any, path string) (any, bool) {
	v, err := Get(doc, path)
	if err != nil || v == NotFound {
		return nil, false
	}
	return v, true
}

// Set returns a copy of doc with value stored at path. Containers along the
// path are copied; missing or scalar intermediates are replaced with a []any
// when the following segment is numeric and a map[string]any otherwise.
// A nil doc is treated as an empty container.
func Set(doc any, path string, value any) (any, error) {
	segs, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return value, nil
	}
	if doc != nil && !traversable(doc) {
		return nil, ErrNotTraversable
	}
	return setIn(doc, segs, value)
}

func setIn(node any, segs []Segment, value any) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg := segs[0]

	if !traversable(node) {
		if seg.IsIndex() {
			node = []any{}
		} else {
			node = map[string]any{}
		}
	}

	switch n := node.(type) {
	case map[string]any:
		child, err := setIn(n[seg.Key], segs[1:], value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(n)+1)
		for k, v := range n {
			out[k] = v
		}
		out[seg.Key] = child
		return out, nil
	case []any:
		if !seg.IsIndex() {
			return nil, fmt.Errorf("%w: %q is not a sequence index", ErrInvalidPath, seg.Key)
		}
		if seg.Index-len(n) > MaxPad {
			return nil, fmt.Errorf("%w: index %d is more than %d past the end of a sequence of %d", ErrInvalidPath, seg.Index, MaxPad, len(n))
		}
		size := len(n)
		if seg.Index >= size {
			size = seg.Index + 1
		}
		out := make([]any, size)
		copy(out, n)
		var existing any
		if seg.Index < len(n) {
			existing = n[seg.Index]
		}
		child, err := setIn(existing, segs[1:], value)
		if err != nil {
			return nil, err
		}
		out[seg.Index] = child
		return out, nil
	}
	return nil, ErrNotTraversable
}

// Delete returns a copy of doc without the value at path. Sequence elements
// are spliced out. Deleting a path that does not resolve returns doc as is.
func Delete(doc any, path string) (any, error) {
	if !traversable(doc) {
		return nil, ErrNotTraversable
	}
	segs, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: cannot delete the root", ErrInvalidPath)
	}
	out, _ := deleteIn(doc, segs)
	return out, nil
}

func deleteIn(node any, segs []Segment) (any, bool) {
	seg := segs[0]
	last := len(segs) == 1

	switch n := node.(type) {
	case map[string]any:
		child, ok := n[seg.Key]
		if !ok {
			return node, false
		}
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = v
		}
		if last {
			delete(out, seg.Key)
			return out, true
		}
		updated, changed := deleteIn(child, segs[1:])
		if !changed {
			return node, false
		}
		out[seg.Key] = updated
		return out, true
	case []any:
		if !seg.IsIndex() || seg.Index >= len(n) {
			return node, false
		}
		if last {
			out := make([]any, 0, len(n)-1)
			out = append(out, n[:seg.Index]...)
			return append(out, n[seg.Index+1:]...), true
		}
		updated, changed := deleteIn(n[seg.Index], segs[1:])
		if !changed {
			return node, false
		}
		out := make([]any, len(n))
		copy(out, n)
		out[seg.Index] = updated
		return out, true
	}
	return node, false
}
