package domain

// ElementKind discriminates the editable units placed on the canvas.
type ElementKind string

const (
	ElementText      ElementKind = "text"
	ElementImage     ElementKind = "image"
	ElementVideo     ElementKind = "video"
	ElementRectangle ElementKind = "rectangle"
	ElementEllipse   ElementKind = "ellipse"
	ElementLine      ElementKind = "line"
	ElementButton    ElementKind = "button"
	ElementLink      ElementKind = "link"
	ElementCheckbox  ElementKind = "checkbox"
	ElementTable     ElementKind = "table"
	ElementChart     ElementKind = "chart"
	ElementStat      ElementKind = "stat"
	ElementContainer ElementKind = "container"
	ElementCode      ElementKind = "code"
	ElementEffect    ElementKind = "effect"
)

// ElementKinds lists every supported kind in toolbar order.
var ElementKinds = []ElementKind{
	ElementText, ElementImage, ElementVideo, ElementRectangle, ElementEllipse,
	ElementLine, ElementButton, ElementLink, ElementCheckbox, ElementTable,
	ElementChart, ElementStat, ElementContainer, ElementCode, ElementEffect,
}

// Valid reports whether k is a known element kind.
func (k ElementKind) Valid() bool {
	for _, known := range ElementKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Element is a single editable unit on the canvas. Props holds the
// kind-specific property bag (position, size, content, colour or gradient
// reference).
type Element struct {
	ID    string         `json:"id"`
	Kind  ElementKind    `json:"type"`
	Props map[string]any `json:"props"`
}

// Property keys shared by every kind.
const (
	PropX        = "x"
	PropY        = "y"
	PropWidth    = "width"
	PropHeight   = "height"
	PropContent  = "content"
	PropGradient = "gradient"
)

// kindDefaults holds the props a freshly added element of each kind starts
// with. Sizes follow the canvas grid (30px).
var kindDefaults = map[ElementKind]map[string]any{
	ElementText:      {PropWidth: 300.0, PropHeight: 60.0, PropContent: "Text", "fontSize": 16.0, "color": "#ffffff", "align": "left"},
	ElementImage:     {PropWidth: 300.0, PropHeight: 300.0, "src": "", "alt": "", "fit": "cover"},
	ElementVideo:     {PropWidth: 480.0, PropHeight: 270.0, "src": "", "autoplay": false, "controls": true},
	ElementRectangle: {PropWidth: 240.0, PropHeight: 150.0, "fill": "#2a2a35", "radius": 0.0, "stroke": ""},
	ElementEllipse:   {PropWidth: 180.0, PropHeight: 180.0, "fill": "#2a2a35", "stroke": ""},
	ElementLine:      {PropWidth: 300.0, PropHeight: 2.0, "stroke": "#666666", "thickness": 2.0, "style": "solid"},
	ElementButton:    {PropWidth: 180.0, PropHeight: 60.0, PropContent: "Start", "href": "", PropGradient: "primary"},
	ElementLink:      {PropWidth: 180.0, PropHeight: 30.0, PropContent: "Link", "href": "", "newTab": true},
	ElementCheckbox:  {PropWidth: 240.0, PropHeight: 30.0, PropContent: "Option", "checked": false},
	ElementTable:     {PropWidth: 480.0, PropHeight: 240.0, "columns": []any{"Column 1", "Column 2"}, "rows": []any{}},
	ElementChart:     {PropWidth: 540.0, PropHeight: 420.0, "chartType": "bar", "series": []any{}, "title": ""},
	ElementStat:      {PropWidth: 180.0, PropHeight: 120.0, "value": 0.0, "label": "", "suffix": ""},
	ElementContainer: {PropWidth: 600.0, PropHeight: 420.0, "fill": "", "padding": 30.0, "radius": 8.0},
	ElementCode:      {PropWidth: 480.0, PropHeight: 360.0, PropContent: "", "language": "text"},
	ElementEffect:    {PropWidth: 300.0, PropHeight: 300.0, "effect": "glow", PropGradient: "accent", "opacity": 0.6},
}

// KindDefaults returns a fresh copy of the default props for kind, or nil
// for an unknown kind.
func KindDefaults(kind ElementKind) map[string]any {
	defs, ok := kindDefaults[kind]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(defs)+2)
	for k, v := range defs {
		if list, ok := v.([]any); ok {
			v = append([]any{}, list...)
		}
		out[k] = v
	}
	out[PropX] = 0.0
	out[PropY] = 0.0
	return out
}
