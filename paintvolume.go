package trellis

import (
	"math"

	"golang.org/x/image/math/f64"
)

// PaintVolume is a cuboid bounding everything an actor paints, in the
// actor's coordinate space.
//
// Only the key vertices are maintained eagerly: 0 (origin), 1 (right), 3
// (bottom) and 4 (back). The remaining vertices are derived on demand by
// Complete:
//
//	    4-----5
//	   /|    /|
//	  0-----1 |
//	  | 7---|-6
//	  |/    |/
//	  3-----2
//
// The zero value is not valid; use NewPaintVolume.
type PaintVolume struct {
	vertices [8]f64.Vec3

	isEmpty       bool // degenerate on every axis; only vertex 0 is meaningful
	isAxisAligned bool
	isComplete    bool // vertices 2, 5, 6 and 7 are up to date
	is2D          bool // front and back faces coincide
}

// keyVertices are the vertices the setters maintain.
var keyVertices = [4]int{0, 1, 3, 4}

// NewPaintVolume returns an empty volume at the origin.
func NewPaintVolume() PaintVolume {
	return PaintVolume{
		isEmpty:       true,
		isAxisAligned: true,
		isComplete:    true,
		is2D:          true,
	}
}

// PaintVolumeFromBox returns a flat volume covering b.
func PaintVolumeFromBox(b Box) PaintVolume {
	pv := NewPaintVolume()
	pv.SetOrigin(f64.Vec3{b.X1, b.Y1, 0})
	pv.SetWidth(b.Width())
	pv.SetHeight(b.Height())
	return pv
}

// IsEmpty reports whether the volume is degenerate on every axis.
func (pv *PaintVolume) IsEmpty() bool { return pv.isEmpty }

// IsAxisAligned reports whether the volume's edges are parallel to the axes.
func (pv *PaintVolume) IsAxisAligned() bool { return pv.isAxisAligned }

// IsComplete reports whether the derived vertices are up to date.
func (pv *PaintVolume) IsComplete() bool { return pv.isComplete }

// Is2D reports whether the volume has no depth. Only meaningful when the
// volume is not empty.
func (pv *PaintVolume) Is2D() bool { return pv.is2D }

// Vertex returns vertex i. Derived vertices are only valid after Complete.
func (pv *PaintVolume) Vertex(i int) f64.Vec3 { return pv.vertices[i] }

// Origin returns vertex 0.
func (pv *PaintVolume) Origin() f64.Vec3 { return pv.vertices[0] }

// SetOrigin moves the volume so that vertex 0 is at origin, keeping its size.
func (pv *PaintVolume) SetOrigin(origin f64.Vec3) {
	dx := origin[0] - pv.vertices[0][0]
	dy := origin[1] - pv.vertices[0][1]
	dz := origin[2] - pv.vertices[0][2]
	for _, i := range keyVertices {
		pv.vertices[i][0] += dx
		pv.vertices[i][1] += dy
		pv.vertices[i][2] += dz
	}
	pv.isComplete = false
}

// prepareSetter collapses an empty volume onto its origin and aligns the
// volume to the axes so a single coordinate of a key vertex can be changed.
func (pv *PaintVolume) prepareSetter() {
	if pv.isEmpty {
		pv.vertices[1] = pv.vertices[0]
		pv.vertices[3] = pv.vertices[0]
		pv.vertices[4] = pv.vertices[0]
	}
	if !pv.isAxisAligned {
		pv.AxisAlign()
	}
}

func (pv *PaintVolume) updateIsEmpty() {
	pv.isEmpty = pv.vertices[0][0] == pv.vertices[1][0] &&
		pv.vertices[0][1] == pv.vertices[3][1] &&
		pv.vertices[0][2] == pv.vertices[4][2]
}

// SetWidth sets the extent along x.
// Panics if width is negative.
func (pv *PaintVolume) SetWidth(width float64) {
	if width < 0 {
		panic("trellis: paint volume width must not be negative")
	}
	pv.prepareSetter()
	pv.vertices[1][0] = pv.vertices[0][0] + width
	pv.isComplete = false
	pv.updateIsEmpty()
}

// SetHeight sets the extent along y.
// Panics if height is negative.
func (pv *PaintVolume) SetHeight(height float64) {
	if height < 0 {
		panic("trellis: paint volume height must not be negative")
	}
	pv.prepareSetter()
	pv.vertices[3][1] = pv.vertices[0][1] + height
	pv.isComplete = false
	pv.updateIsEmpty()
}

// SetDepth sets the extent along z.
// Panics if depth is negative.
func (pv *PaintVolume) SetDepth(depth float64) {
	if depth < 0 {
		panic("trellis: paint volume depth must not be negative")
	}
	pv.prepareSetter()
	pv.vertices[4][2] = pv.vertices[0][2] + depth
	pv.isComplete = false
	pv.is2D = depth == 0
	pv.updateIsEmpty()
}

// aligned returns pv itself when already axis-aligned, else an aligned copy.
func (pv *PaintVolume) aligned() *PaintVolume {
	if pv.isAxisAligned {
		return pv
	}
	tmp := *pv
	tmp.AxisAlign()
	return &tmp
}

// Width returns the width of the volume's axis-aligned bounds.
func (pv *PaintVolume) Width() float64 {
	if pv.isEmpty {
		return 0
	}
	a := pv.aligned()
	return a.vertices[1][0] - a.vertices[0][0]
}

// Height returns the height of the volume's axis-aligned bounds.
func (pv *PaintVolume) Height() float64 {
	if pv.isEmpty {
		return 0
	}
	a := pv.aligned()
	return a.vertices[3][1] - a.vertices[0][1]
}

// Depth returns the depth of the volume's axis-aligned bounds.
func (pv *PaintVolume) Depth() float64 {
	if pv.isEmpty {
		return 0
	}
	a := pv.aligned()
	return a.vertices[4][2] - a.vertices[0][2]
}

// vertexCount is the number of vertices that describe the volume.
func (pv *PaintVolume) vertexCount() int {
	if pv.is2D {
		return 4
	}
	return 8
}

// Complete derives vertices 2, 5, 6 and 7 from the key vertices.
func (pv *PaintVolume) Complete() {
	if pv.isEmpty || pv.isComplete {
		return
	}
	v := &pv.vertices
	var l2r, t2b f64.Vec3
	for a := 0; a < 3; a++ {
		l2r[a] = v[1][a] - v[0][a]
		t2b[a] = v[3][a] - v[0][a]
	}
	for a := 0; a < 3; a++ {
		v[2][a] = v[3][a] + l2r[a]
	}
	if !pv.is2D {
		for a := 0; a < 3; a++ {
			v[5][a] = v[4][a] + l2r[a]
			v[6][a] = v[5][a] + t2b[a]
			v[7][a] = v[4][a] + t2b[a]
		}
	}
	pv.isComplete = true
}

// AxisAlign replaces the volume with the axis-aligned cuboid bounding it.
func (pv *PaintVolume) AxisAlign() {
	if pv.isEmpty || pv.isAxisAligned {
		return
	}
	v := &pv.vertices
	if edgesOnAxes(v) {
		pv.isAxisAligned = true
		return
	}
	pv.Complete()

	lo, hi := pv.bounds3D()
	v[0] = lo
	v[1] = f64.Vec3{hi[0], lo[1], lo[2]}
	v[3] = f64.Vec3{lo[0], hi[1], lo[2]}
	v[4] = f64.Vec3{lo[0], lo[1], hi[2]}

	pv.isComplete = false
	pv.isAxisAligned = true
	pv.is2D = v[4][2] == v[0][2]
}

// edgesOnAxes reports whether the key edges already run along x, y and z
// with non-negative extents.
func edgesOnAxes(v *[8]f64.Vec3) bool {
	return v[1][1] == v[0][1] && v[1][2] == v[0][2] && v[1][0] >= v[0][0] &&
		v[3][0] == v[0][0] && v[3][2] == v[0][2] && v[3][1] >= v[0][1] &&
		v[4][0] == v[0][0] && v[4][1] == v[0][1] && v[4][2] >= v[0][2]
}

// bounds3D returns the min and max corners over the describing vertices.
func (pv *PaintVolume) bounds3D() (lo, hi f64.Vec3) {
	lo, hi = pv.vertices[0], pv.vertices[0]
	for i := 1; i < pv.vertexCount(); i++ {
		p := pv.vertices[i]
		for a := 0; a < 3; a++ {
			lo[a] = math.Min(lo[a], p[a])
			hi[a] = math.Max(hi[a], p[a])
		}
	}
	return lo, hi
}

// Union grows pv to also enclose src. Unioning into an empty volume copies
// src rather than enclosing the empty volume's origin.
func (pv *PaintVolume) Union(src *PaintVolume) {
	if src.isEmpty {
		return
	}
	if pv.isEmpty {
		*pv = *src
		pv.isEmpty = false
		pv.isComplete = false
		return
	}

	pv.AxisAlign()
	pv.Complete()

	other := src
	if !src.isAxisAligned || !src.isComplete {
		tmp := *src
		tmp.AxisAlign()
		tmp.Complete()
		other = &tmp
	}

	lo, hi := pv.bounds3D()
	olo, ohi := other.bounds3D()
	for a := 0; a < 3; a++ {
		lo[a] = math.Min(lo[a], olo[a])
		hi[a] = math.Max(hi[a], ohi[a])
	}
	pv.vertices[0] = lo
	pv.vertices[1] = f64.Vec3{hi[0], lo[1], lo[2]}
	pv.vertices[3] = f64.Vec3{lo[0], hi[1], lo[2]}
	pv.vertices[4] = f64.Vec3{lo[0], lo[1], hi[2]}
	pv.is2D = hi[2] == lo[2]

	pv.isEmpty = false
	pv.isComplete = false
}

// UnionBox grows pv to also enclose the flat box b.
func (pv *PaintVolume) UnionBox(b Box) {
	v := PaintVolumeFromBox(b)
	pv.Union(&v)
}

// BoundingBox returns the 2D axis-aligned bounds of the volume in its
// current space. An empty volume yields a zero-size box at its origin.
func (pv *PaintVolume) BoundingBox() Box {
	if pv.isEmpty {
		o := pv.vertices[0]
		return Box{o[0], o[1], o[0], o[1]}
	}
	pv.Complete()
	lo, hi := pv.bounds3D()
	return Box{lo[0], lo[1], hi[0], hi[1]}
}

// Box3D returns the min and max corners of the volume. The second result is
// false for an empty volume.
func (pv *PaintVolume) Box3D() (lo, hi f64.Vec3, ok bool) {
	if pv.isEmpty {
		return lo, hi, false
	}
	pv.Complete()
	lo, hi = pv.bounds3D()
	return lo, hi, true
}

// Transform applies m to the volume. An empty volume only moves its origin.
// Axis alignment survives only a scale/translate matrix with positive scale.
func (pv *PaintVolume) Transform(m Matrix) {
	if pv.isEmpty {
		pv.vertices[0] = m.TransformPoint(pv.vertices[0])
		return
	}
	pv.Complete()
	for i := 0; i < pv.vertexCount(); i++ {
		pv.vertices[i] = m.TransformPoint(pv.vertices[i])
	}
	if pv.is2D {
		pv.vertices[4] = pv.vertices[0]
	}
	if !m.IsScaleTranslate() || m[0] < 0 || m[5] < 0 || m[10] < 0 {
		pv.isAxisAligned = false
	}
}

// --- Culling ---

// CullResult is the outcome of testing a volume against a frustum.
type CullResult uint8

const (
	CullIn      CullResult = iota // entirely inside
	CullOut                       // entirely outside
	CullPartial                   // straddles at least one plane
)

func (r CullResult) String() string {
	switch r {
	case CullIn:
		return "in"
	case CullOut:
		return "out"
	default:
		return "partial"
	}
}

// Plane is the half-space dot(Normal, p) + Constant >= 0.
type Plane struct {
	Normal   f64.Vec3
	Constant float64
}

func (p Plane) distance(v f64.Vec3) float64 {
	return p.Normal[0]*v[0] + p.Normal[1]*v[1] + p.Normal[2]*v[2] + p.Constant
}

// Frustum is a convex volume bounded by six planes.
type Frustum struct {
	Planes [6]Plane
}

// NewBoxFrustum returns the frustum of an orthographic view onto b, spanning
// z in [zNear, zFar].
func NewBoxFrustum(b Box, zNear, zFar float64) *Frustum {
	return &Frustum{Planes: [6]Plane{
		{Normal: f64.Vec3{1, 0, 0}, Constant: -b.X1},
		{Normal: f64.Vec3{-1, 0, 0}, Constant: b.X2},
		{Normal: f64.Vec3{0, 1, 0}, Constant: -b.Y1},
		{Normal: f64.Vec3{0, -1, 0}, Constant: b.Y2},
		{Normal: f64.Vec3{0, 0, 1}, Constant: -zNear},
		{Normal: f64.Vec3{0, 0, -1}, Constant: zFar},
	}}
}

// Cull tests the volume against f. An empty volume is always outside. The
// volume must already be in the frustum's space.
func (pv *PaintVolume) Cull(f *Frustum) CullResult {
	if pv.isEmpty {
		return CullOut
	}
	pv.Complete()
	n := pv.vertexCount()
	result := CullIn
	for _, plane := range f.Planes {
		outside := 0
		for i := 0; i < n; i++ {
			if plane.distance(pv.vertices[i]) < 0 {
				outside++
			}
		}
		if outside == n {
			return CullOut
		}
		if outside > 0 {
			result = CullPartial
		}
	}
	return result
}

// --- Stage paint box ---

// StagePaintBox maps the volume into stage space with toStage and returns
// its pixel-aligned bounds. Flat volumes are snapped to 1/256 of a pixel and
// then rounded outward; volumes with depth are padded with
// EnlargeForEffects.
func (pv *PaintVolume) StagePaintBox(toStage Matrix) Box {
	projected := *pv
	projected.Transform(toStage)
	b := projected.BoundingBox()

	if pv.is2D {
		b.X1 = math.Floor(roundTo256ths(b.X1))
		b.Y1 = math.Floor(roundTo256ths(b.Y1))
		b.X2 = math.Ceil(roundTo256ths(b.X2))
		b.Y2 = math.Ceil(roundTo256ths(b.Y2))
		return b
	}
	return EnlargeForEffects(b)
}

func roundTo256ths(v float64) float64 {
	return math.Round(v*256) / 256
}

// EnlargeForEffects pads b so that effects sampling neighboring pixels
// (blur, filtering of sub-pixel positions) stay inside the box. The width
// and height are rounded to whole pixels and grown by 3; the far edge is
// pushed out by at least 0.75. Boxes with zero width or height are returned
// unchanged.
func EnlargeForEffects(b Box) Box {
	if b.Width() == 0 || b.Height() == 0 {
		return b
	}
	width := math.RoundToEven(b.Width())
	height := math.RoundToEven(b.Height())
	b.X2 = math.Ceil(b.X2 + 0.75)
	b.Y2 = math.Ceil(b.Y2 + 0.75)
	b.X1 = b.X2 - width - 3
	b.Y1 = b.Y2 - height - 3
	return b
}
