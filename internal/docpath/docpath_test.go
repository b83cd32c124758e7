package docpath_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"pageeditor/internal/docpath"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"elements": []any{
			map[string]any{"id": "a", "props": map[string]any{"x": 10.0}},
			map[string]any{"id": "b", "props": map[string]any{"x": 20.0}},
		},
		"settings": map[string]any{
			"grid":   false,
			"layout": map[string]any{"width": 1440.0},
		},
	}
}

func mapPtr(v any) uintptr { return reflect.ValueOf(v).Pointer() }

// ─────────────────────────────────────────────────────────────
// Parse
// ─────────────────────────────────────────────────────────────

func TestParse(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"", nil},
		{"elements", []string{"elements"}},
		{"elements.3.style.color", []string{"elements", "3", "style", "color"}},
		{"elements[3].style.color", []string{"elements", "3", "style", "color"}},
		{"[0][1]", []string{"0", "1"}},
		{`settings["grid"]`, []string{"settings", "grid"}},
	}
	for _, tt := range tests {
		segs, err := docpath.Parse(tt.path)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error %v", tt.path, err)
		}
		var got []string
		for _, s := range segs {
			got = append(got, s.Key)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, p := range []string{"a..b", ".a", "a.", "a[1", "a[]", "a]"} {
		if _, err := docpath.Parse(p); !errors.Is(err, docpath.ErrInvalidPath) {
			t.Errorf("Parse(%q): expected ErrInvalidPath, got %v", p, err)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Get
// ─────────────────────────────────────────────────────────────

func TestGet(t *testing.T) {
	doc := sampleDoc()

	v, err := docpath.Get(doc, "elements.1.props.x")
	if err != nil || v != 20.0 {
		t.Fatalf("expected 20, got %v (%v)", v, err)
	}
	v, err = docpath.Get(doc, "elements[0].id")
	if err != nil || v != "a" {
		t.Fatalf("expected 'a', got %v (%v)", v, err)
	}
}

func TestGet_MissingPathIsNotAnError(t *testing.T) {
	doc := sampleDoc()
	for _, p := range []string{"nope", "elements.9.id", "settings.grid.deeper", "elements.x"} {
		v, err := docpath.Get(doc, p)
		if err != nil {
			t.Errorf("Get(%q): unexpected error %v", p, err)
		}
		if v != docpath.NotFound {
			t.Errorf("Get(%q) = %v, want NotFound", p, v)
		}
	}
}

func TestGet_ScalarDocument(t *testing.T) {
	if _, err := docpath.Get("text", "a"); !errors.Is(err, docpath.ErrNotTraversable) {
		t.Fatalf("expected ErrNotTraversable, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Set
// ─────────────────────────────────────────────────────────────

func TestSet_ThenGetReturnsValue(t *testing.T) {
	doc := sampleDoc()
	before := docpath.DeepClone(doc)

	out, err := docpath.Set(doc, "elements.1.props.x", 99.0)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := docpath.Get(out, "elements.1.props.x"); v != 99.0 {
		t.Fatalf("expected 99 after Set, got %v", v)
	}
	if !docpath.Equal(doc, before) {
		t.Fatal("Set mutated its input")
	}
}

func TestSet_SharesUntouchedBranches(t *testing.T) {
	doc := sampleDoc()
	out, err := docpath.Set(doc, "elements.1.props.x", 99.0)
	if err != nil {
		t.Fatal(err)
	}
	newDoc := out.(map[string]any)

	if mapPtr(newDoc) == mapPtr(doc) {
		t.Fatal("expected a new root")
	}
	if mapPtr(newDoc["settings"]) != mapPtr(doc["settings"]) {
		t.Error("untouched settings branch should be shared")
	}
	oldEls := doc["elements"].([]any)
	newEls := newDoc["elements"].([]any)
	if mapPtr(newEls[0]) != mapPtr(oldEls[0]) {
		t.Error("untouched element 0 should be shared")
	}
	if mapPtr(newEls[1]) == mapPtr(oldEls[1]) {
		t.Error("touched element 1 must be copied")
	}
}

func TestSet_CreatesIntermediates(t *testing.T) {
	out, err := docpath.Set(map[string]any{}, "a.list.2.name", "x")
	if err != nil {
		t.Fatal(err)
	}
	list, ok := docpath.Lookup(out, "a.list")
	if !ok {
		t.Fatal("expected a.list to exist")
	}
	seq, ok := list.([]any)
	if !ok {
		t.Fatalf("expected numeric segment to create a sequence, got %T", list)
	}
	if len(seq) != 3 || seq[0] != nil || seq[1] != nil {
		t.Fatalf("expected padded sequence of 3, got %#v", seq)
	}
	if v, _ := docpath.Get(out, "a.list.2.name"); v != "x" {
		t.Fatalf("expected 'x', got %v", v)
	}
}

func TestSet_ReplacesScalarIntermediate(t *testing.T) {
	doc := map[string]any{"a": 1.0}
	out, err := docpath.Set(doc, "a.b", true)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := docpath.Get(out, "a.b"); v != true {
		t.Fatalf("expected true, got %v", v)
	}
	if doc["a"] != 1.0 {
		t.Fatal("input mutated")
	}
}

func TestSet_Errors(t *testing.T) {
	if _, err := docpath.Set("scalar", "a", 1.0); !errors.Is(err, docpath.ErrNotTraversable) {
		t.Errorf("expected ErrNotTraversable, got %v", err)
	}
	doc := map[string]any{"list": []any{1.0}}
	if _, err := docpath.Set(doc, "list.name", 1.0); !errors.Is(err, docpath.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for keyed access into a sequence, got %v", err)
	}
	if _, err := docpath.Set(doc, "list.-1", 1.0); !errors.Is(err, docpath.ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath for negative index, got %v", err)
	}
}

func TestSet_BoundsPadding(t *testing.T) {
	doc := map[string]any{"rows": []any{"a"}}

	for _, path := range []string{"rows.9223372036854775807", "rows.1026", "fresh.5000"} {
		if _, err := docpath.Set(doc, path, "x"); !errors.Is(err, docpath.ErrInvalidPath) {
			t.Errorf("%s: expected ErrInvalidPath, got %v", path, err)
		}
	}

	out, err := docpath.Set(doc, "rows.1025", "x")
	if err != nil {
		t.Fatal(err)
	}
	rows := out.(map[string]any)["rows"].([]any)
	if len(rows) != 1026 || rows[1025] != "x" || rows[1] != nil {
		t.Fatalf("expected padding up to the limit, got len %d", len(rows))
	}
}

func TestSet_EmptyPathReplacesRoot(t *testing.T) {
	out, err := docpath.Set(sampleDoc(), "", map[string]any{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if !docpath.Equal(out, map[string]any{"k": "v"}) {
		t.Fatalf("unexpected root %v", out)
	}
}

// ─────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────

func TestDelete(t *testing.T) {
	doc := sampleDoc()
	out, err := docpath.Delete(doc, "elements.0")
	if err != nil {
		t.Fatal(err)
	}
	els := out.(map[string]any)["elements"].([]any)
	if len(els) != 1 || els[0].(map[string]any)["id"] != "b" {
		t.Fatalf("expected only element b left, got %v", els)
	}
	if len(doc["elements"].([]any)) != 2 {
		t.Fatal("Delete mutated its input")
	}

	out, err = docpath.Delete(doc, "settings.missing")
	if err != nil {
		t.Fatal(err)
	}
	if !docpath.Equal(out, doc) {
		t.Fatal("deleting a missing path should not change the document")
	}
}

// ─────────────────────────────────────────────────────────────
// DeepClone
// ─────────────────────────────────────────────────────────────

func TestDeepClone_Independent(t *testing.T) {
	doc := sampleDoc()
	clone := docpath.CloneMap(doc)

	clone["settings"].(map[string]any)["grid"] = true
	clone["elements"].([]any)[0].(map[string]any)["id"] = "changed"

	if doc["settings"].(map[string]any)["grid"] != false {
		t.Error("clone shares settings with original")
	}
	if doc["elements"].([]any)[0].(map[string]any)["id"] != "a" {
		t.Error("clone shares elements with original")
	}
}

// ─────────────────────────────────────────────────────────────
// DeepMerge
// ─────────────────────────────────────────────────────────────

func TestDeepMerge_MapsMergeKeyByKey(t *testing.T) {
	base := map[string]any{
		"settings": map[string]any{"grid": false, "theme": "default", "gridSize": 30.0},
		"version":  2.0,
	}
	override := map[string]any{
		"settings": map[string]any{"grid": true, "extra": "x"},
	}
	got := docpath.MergeMaps(base, override)
	want := map[string]any{
		"settings": map[string]any{"grid": true, "theme": "default", "gridSize": 30.0, "extra": "x"},
		"version":  2.0,
	}
	if !docpath.Equal(got, want) {
		t.Fatalf("merge mismatch:\nwant: %#v\n got: %#v", want, got)
	}
	if base["settings"].(map[string]any)["grid"] != false {
		t.Fatal("DeepMerge mutated base")
	}
}

func TestDeepMerge_SequencesReplaceWholesale(t *testing.T) {
	base := map[string]any{"elements": []any{
		map[string]any{"id": "a", "props": map[string]any{"x": 1.0, "y": 1.0}},
		map[string]any{"id": "b"},
	}}
	override := map[string]any{"elements": []any{
		map[string]any{"id": "c", "props": map[string]any{"x": 5.0}},
	}}
	got := docpath.MergeMaps(base, override)
	want := map[string]any{"elements": []any{
		map[string]any{"id": "c", "props": map[string]any{"x": 5.0}},
	}}
	if !docpath.Equal(got, want) {
		t.Fatalf("expected override sequence verbatim, got %#v", got)
	}
}

func TestDeepMerge_NilReplacesAndUnsetDeletes(t *testing.T) {
	base := map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}
	got := docpath.MergeMaps(base, map[string]any{"a": nil, "b": docpath.Unset})

	v, ok := got["a"]
	if !ok || v != nil {
		t.Errorf("expected nil to replace a, got %v (present=%v)", v, ok)
	}
	if _, ok := got["b"]; ok {
		t.Error("expected Unset to delete b")
	}
	if got["c"] != 3.0 {
		t.Error("expected base-only key c to survive")
	}
}

func TestDeepMerge_KeepsEveryBaseKey(t *testing.T) {
	base := map[string]any{
		"version":  2.0,
		"elements": []any{},
		"settings": map[string]any{
			"grid": false, "theme": "default",
			"layout": map[string]any{"width": 1440.0, "height": 900.0},
		},
	}
	partials := []map[string]any{
		{},
		{"settings": map[string]any{}},
		{"settings": map[string]any{"layout": map[string]any{"width": 800.0}}},
		{"elements": []any{map[string]any{"id": "x"}}, "unknown": true},
	}
	for _, p := range partials {
		got := docpath.MergeMaps(base, p)
		assertKeysPresent(t, base, got, "")
	}
}

func assertKeysPresent(t *testing.T, want, got map[string]any, prefix string) {
	t.Helper()
	for k, v := range want {
		g, ok := got[k]
		if !ok {
			t.Errorf("missing key %s%s", prefix, k)
			continue
		}
		if wm, ok := v.(map[string]any); ok {
			gm, ok := g.(map[string]any)
			if !ok {
				t.Errorf("key %s%s is no longer a map", prefix, k)
				continue
			}
			assertKeysPresent(t, wm, gm, prefix+k+".")
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Normalize
// ─────────────────────────────────────────────────────────────

func TestNormalize(t *testing.T) {
	type pt struct {
		X int `json:"x"`
	}
	got, err := docpath.Normalize(map[string]any{"p": pt{X: 3}, "tags": []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"p": map[string]any{"x": 3.0}, "tags": []any{"a"}}
	if !docpath.Equal(got, want) {
		t.Fatalf("want %#v, got %#v", want, got)
	}

	if v, _ := docpath.Normalize(7); v != 7.0 {
		t.Fatalf("expected ints to become float64, got %#v", v)
	}
}

func TestNormalize_RejectsNonFinite(t *testing.T) {
	values := []any{
		math.NaN(),
		math.Inf(1),
		map[string]any{"layout": map[string]any{"width": math.Inf(-1)}},
		[]any{1.0, math.NaN()},
		struct{ W float64 }{W: math.NaN()},
	}
	for _, v := range values {
		if _, err := docpath.Normalize(v); err == nil {
			t.Errorf("expected an error for %#v", v)
		}
	}
	if _, err := docpath.Normalize(math.NaN()); !errors.Is(err, docpath.ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
