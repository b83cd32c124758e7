// Package layout places new canvas elements so they don't overlap the ones
// already on the page.
package layout

import (
	"math"
	"slices"
)

const (
	GridSize = 30.0 // matches frontend GRID_SIZE
	Padding  = 60.0 // 2 grid cells between elements
	MaxRowW  = 1440.0
	MinGrid  = 1.0
)

// Rect is an axis-aligned bounding box in canvas coordinates.
type Rect struct {
	X, Y, W, H float64
}

func (a Rect) intersects(b Rect) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X &&
		a.Y < b.Y+b.H && a.Y+a.H > b.Y
}

// Engine finds free grid positions on the canvas.
type Engine struct {
	gridSize float64
	padding  float64
	maxRowW  float64
}

// NewEngine creates an Engine with the default grid, padding and row width.
func NewEngine() *Engine {
	return &Engine{
		gridSize: GridSize,
		padding:  Padding,
		maxRowW:  MaxRowW,
	}
}

// WithRowWidth returns a copy of e that wraps rows at width (the page width).
func (e *Engine) WithRowWidth(width float64) *Engine {
	out := *e
	if width > 0 {
		out.maxRowW = width
	}
	return &out
}

// WithGrid returns a copy of e snapping to size, raised to MinGrid.
func (e *Engine) WithGrid(size float64) *Engine {
	out := *e
	if size > 0 {
		out.gridSize = max(size, MinGrid)
	}
	return &out
}

func (e *Engine) snap(v float64) float64 {
	return math.Round(v/e.gridSize) * e.gridSize
}

func (e *Engine) snapUp(v float64) float64 {
	return math.Ceil(v/e.gridSize) * e.gridSize
}

// NextPosition finds the first grid position, scanning rows top to bottom and
// columns left to right, where a w×h box clears every existing box by the
// padding.
//
// Only rows at the top or just below a padded box and columns at the left or
// just right of a padded box are tried: the first free position in scan order
// always lies on one of them, so the search is bounded by the number of boxes
// rather than by the canvas size.
func (e *Engine) NextPosition(existing []Rect, w, h float64) (float64, float64) {
	if len(existing) == 0 {
		return 0, 0
	}

	ys := []float64{0}
	xs := []float64{0}
	for _, r := range existing {
		ys = append(ys, e.snapUp(r.Y+r.H+e.padding))
		xs = append(xs, e.snapUp(r.X+r.W+e.padding))
	}
	slices.Sort(ys)
	slices.Sort(xs)
	ys = slices.Compact(ys)
	xs = slices.Compact(xs)

	candidate := Rect{W: w, H: h}
	for _, y := range ys {
		if y < 0 {
			continue
		}
		for _, x := range xs {
			if x < 0 || (x > 0 && x+w > e.maxRowW) {
				continue
			}
			candidate.X, candidate.Y = x, y
			if !e.overlapsAny(candidate, existing) {
				return x, y
			}
		}
	}

	// Fallback: below everything
	maxY := 0.0
	for _, r := range existing {
		if r.Y+r.H > maxY {
			maxY = r.Y + r.H
		}
	}
	return 0, e.snapUp(maxY + e.padding)
}

func (e *Engine) overlapsAny(candidate Rect, existing []Rect) bool {
	for _, occ := range existing {
		padded := Rect{
			X: occ.X - e.padding,
			Y: occ.Y - e.padding,
			W: occ.W + e.padding*2,
			H: occ.H + e.padding*2,
		}
		if candidate.intersects(padded) {
			return true
		}
	}
	return false
}

// Arrange lays boxes out left to right in rows starting at (startX, startY)
// and returns their new positions in input order.
func (e *Engine) Arrange(boxes []Rect, startX, startY float64) []Rect {
	out := make([]Rect, len(boxes))
	x := e.snap(startX)
	y := e.snap(startY)
	rowHeight := 0.0

	for i, b := range boxes {
		if x > e.snap(startX) && x+b.W > e.maxRowW {
			x = e.snap(startX)
			y += e.snap(rowHeight + e.padding)
			rowHeight = 0
		}
		out[i] = Rect{X: x, Y: y, W: b.W, H: b.H}
		if b.H > rowHeight {
			rowHeight = b.H
		}
		x += e.snap(b.W + e.padding)
	}
	return out
}
