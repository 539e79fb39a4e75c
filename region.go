package trellis

import (
	"image"
	"math"
	"slices"
)

// Region is a set of integer pixels described by non-overlapping rectangles.
//
// Rectangles are kept in canonical banded form: sorted by Y then X, every
// rectangle in a band shares the same vertical extent, horizontally adjacent
// spans within a band are merged, and vertically adjacent bands with identical
// spans are coalesced. Two regions covering the same pixels therefore always
// hold identical rectangle lists.
//
// The zero value is an empty region.
type Region struct {
	rects []image.Rectangle
}

// NewRegion returns a region covering the union of the given rectangles.
// Empty rectangles are ignored.
func NewRegion(rects ...image.Rectangle) Region {
	var r Region
	for _, rect := range rects {
		r.UnionRect(rect)
	}
	return r
}

// RegionFromRect returns a region covering a single rectangle.
func RegionFromRect(rect image.Rectangle) Region {
	rect = rect.Canon()
	if rect.Empty() {
		return Region{}
	}
	return Region{rects: []image.Rectangle{rect}}
}

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	return len(r.rects) == 0
}

// NumRects returns the number of rectangles in canonical form.
func (r Region) NumRects() int {
	return len(r.rects)
}

// Rects returns a copy of the region's rectangles.
func (r Region) Rects() []image.Rectangle {
	return slices.Clone(r.rects)
}

// Rect returns the i-th rectangle.
func (r Region) Rect(i int) image.Rectangle {
	return r.rects[i]
}

// Extents returns the bounding rectangle of the region.
func (r Region) Extents() image.Rectangle {
	var ext image.Rectangle
	for _, rect := range r.rects {
		ext = ext.Union(rect)
	}
	return ext
}

// Copy returns an independent copy of r.
func (r Region) Copy() Region {
	return Region{rects: slices.Clone(r.rects)}
}

// Equal reports whether r and o cover exactly the same pixels.
func (r Region) Equal(o Region) bool {
	return slices.Equal(r.rects, o.rects)
}

// ContainsRect reports whether every pixel of rect is inside r.
func (r Region) ContainsRect(rect image.Rectangle) bool {
	if rect.Empty() {
		return true
	}
	rest := RegionFromRect(rect)
	rest.Subtract(r)
	return rest.IsEmpty()
}

// ContainsRegion reports whether o is a subset of r.
func (r Region) ContainsRegion(o Region) bool {
	rest := o.Copy()
	rest.Subtract(r)
	return rest.IsEmpty()
}

// Union adds every pixel of o to r.
func (r *Region) Union(o Region) {
	if o.IsEmpty() {
		return
	}
	if r.IsEmpty() {
		r.rects = slices.Clone(o.rects)
		return
	}
	r.rects = combineRegions(r.rects, o.rects, opUnion)
}

// UnionRect adds rect to r.
func (r *Region) UnionRect(rect image.Rectangle) {
	rect = rect.Canon()
	if rect.Empty() {
		return
	}
	if r.IsEmpty() {
		r.rects = []image.Rectangle{rect}
		return
	}
	r.rects = combineRegions(r.rects, []image.Rectangle{rect}, opUnion)
}

// Intersect keeps only the pixels of r that are also in o.
func (r *Region) Intersect(o Region) {
	if r.IsEmpty() || o.IsEmpty() {
		r.rects = nil
		return
	}
	r.rects = combineRegions(r.rects, o.rects, opIntersect)
}

// IntersectRect keeps only the pixels of r inside rect.
func (r *Region) IntersectRect(rect image.Rectangle) {
	r.Intersect(RegionFromRect(rect))
}

// Subtract removes every pixel of o from r.
func (r *Region) Subtract(o Region) {
	if r.IsEmpty() || o.IsEmpty() {
		return
	}
	r.rects = combineRegions(r.rects, o.rects, opSubtract)
}

// SubtractRect removes rect from r.
func (r *Region) SubtractRect(rect image.Rectangle) {
	r.Subtract(RegionFromRect(rect))
}

// Translate moves the region by (dx, dy).
func (r *Region) Translate(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	d := image.Pt(dx, dy)
	moved := make([]image.Rectangle, len(r.rects))
	for i, rect := range r.rects {
		moved[i] = rect.Add(d)
	}
	r.rects = moved
}

// --- Scaling ---

// RoundingMode selects how fractional edges are snapped when a region is
// scaled by a non-integer factor.
type RoundingMode uint8

const (
	RoundGrow    RoundingMode = iota // floor the origin, ceil the far edge
	RoundShrink                      // ceil the origin, floor the far edge
	RoundNearest                     // round both edges to nearest
)

// roundBox snaps a float box to an integer rectangle.
func roundBox(x1, y1, x2, y2 float64, mode RoundingMode) image.Rectangle {
	switch mode {
	case RoundShrink:
		return image.Rect(int(math.Ceil(x1)), int(math.Ceil(y1)), int(math.Floor(x2)), int(math.Floor(y2)))
	case RoundNearest:
		return image.Rect(int(math.Round(x1)), int(math.Round(y1)), int(math.Round(x2)), int(math.Round(y2)))
	default:
		return image.Rect(int(math.Floor(x1)), int(math.Floor(y1)), int(math.Ceil(x2)), int(math.Ceil(y2)))
	}
}

// ScaleRegion returns r scaled by scale, snapping edges with mode.
func ScaleRegion(r Region, scale float64, mode RoundingMode) Region {
	if scale == 1 {
		return r.Copy()
	}
	var out Region
	for _, rect := range r.rects {
		out.UnionRect(roundBox(
			float64(rect.Min.X)*scale, float64(rect.Min.Y)*scale,
			float64(rect.Max.X)*scale, float64(rect.Max.Y)*scale,
			mode))
	}
	return out
}

// offsetScaleAndClamp translates r by (dx, dy), scales it and grows any
// fractional edge outward. Used to map stage space into framebuffer space.
func offsetScaleAndClamp(r Region, dx, dy int, scale float64) Region {
	moved := r.Copy()
	moved.Translate(dx, dy)
	return ScaleRegion(moved, scale, RoundGrow)
}

// scaleOffsetAndClamp scales r, grows fractional edges outward and then
// translates by (dx, dy). Used to map framebuffer space back to stage space.
func scaleOffsetAndClamp(r Region, scale float64, dx, dy int) Region {
	out := ScaleRegion(r, scale, RoundGrow)
	out.Translate(dx, dy)
	return out
}

// --- Band sweep ---

type regionOp uint8

const (
	opUnion regionOp = iota
	opIntersect
	opSubtract
)

func (op regionOp) keep(inA, inB bool) bool {
	switch op {
	case opUnion:
		return inA || inB
	case opIntersect:
		return inA && inB
	default:
		return inA && !inB
	}
}

// span is a half-open horizontal interval [x0, x1).
type span struct{ x0, x1 int }

// combineRegions applies op to two rectangle sets and returns the result in
// canonical banded form. Every rectangle edge becomes a band boundary, so a
// rectangle either fully covers a band or does not touch it.
func combineRegions(a, b []image.Rectangle, op regionOp) []image.Rectangle {
	ys := make([]int, 0, 2*(len(a)+len(b)))
	for _, r := range a {
		ys = append(ys, r.Min.Y, r.Max.Y)
	}
	for _, r := range b {
		ys = append(ys, r.Min.Y, r.Max.Y)
	}
	slices.Sort(ys)
	ys = slices.Compact(ys)

	var (
		out       []image.Rectangle
		prevSpans []span
		prevStart int // index in out of the previous band's first rect
		prevY1    int
	)
	for i := 0; i+1 < len(ys); i++ {
		y0, y1 := ys[i], ys[i+1]
		spans := combineSpans(bandSpans(a, y0, y1), bandSpans(b, y0, y1), op)
		if len(spans) == 0 {
			prevSpans = nil
			continue
		}
		if prevSpans != nil && prevY1 == y0 && slices.Equal(prevSpans, spans) {
			for j := prevStart; j < len(out); j++ {
				out[j].Max.Y = y1
			}
			prevY1 = y1
			continue
		}
		prevStart = len(out)
		for _, s := range spans {
			out = append(out, image.Rect(s.x0, y0, s.x1, y1))
		}
		prevSpans = spans
		prevY1 = y1
	}
	return out
}

// bandSpans returns the sorted, merged horizontal spans of rects that cover
// the band [y0, y1).
func bandSpans(rects []image.Rectangle, y0, y1 int) []span {
	var spans []span
	for _, r := range rects {
		if r.Min.Y <= y0 && r.Max.Y >= y1 {
			spans = append(spans, span{r.Min.X, r.Max.X})
		}
	}
	if len(spans) < 2 {
		return spans
	}
	slices.SortFunc(spans, func(p, q span) int { return p.x0 - q.x0 })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.x0 <= last.x1 {
			last.x1 = max(last.x1, s.x1)
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// combineSpans applies op to two sorted span lists.
func combineSpans(a, b []span, op regionOp) []span {
	xs := make([]int, 0, 2*(len(a)+len(b)))
	for _, s := range a {
		xs = append(xs, s.x0, s.x1)
	}
	for _, s := range b {
		xs = append(xs, s.x0, s.x1)
	}
	slices.Sort(xs)
	xs = slices.Compact(xs)

	var out []span
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		if !op.keep(spansCover(a, x0), spansCover(b, x0)) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].x1 == x0 {
			out[n-1].x1 = x1
			continue
		}
		out = append(out, span{x0, x1})
	}
	return out
}

// spansCover reports whether x lies inside one of the spans.
func spansCover(spans []span, x int) bool {
	for _, s := range spans {
		if x >= s.x0 && x < s.x1 {
			return true
		}
	}
	return false
}
