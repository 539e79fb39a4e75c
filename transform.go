package trellis

import (
	"image"
	"math"

	"golang.org/x/image/math/f64"
)

// Matrix is a 4x4 transformation matrix in row-major order. Points are
// column vectors, so m.Mul(n) applies n first and then m.
//
//	| m[0]  m[1]  m[2]  m[3]  |
//	| m[4]  m[5]  m[6]  m[7]  |
//	| m[8]  m[9]  m[10] m[11] |
//	| m[12] m[13] m[14] m[15] |
type Matrix f64.Mat4

// IdentityMatrix returns the identity matrix.
func IdentityMatrix() Matrix {
	return Matrix{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TranslationMatrix returns a matrix translating by (x, y, z).
func TranslationMatrix(x, y, z float64) Matrix {
	m := IdentityMatrix()
	m[3], m[7], m[11] = x, y, z
	return m
}

// ScaleMatrix returns a matrix scaling by (x, y, z).
func ScaleMatrix(x, y, z float64) Matrix {
	m := IdentityMatrix()
	m[0], m[5], m[10] = x, y, z
	return m
}

// Mul returns m * n.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = m[r*4]*n[c] + m[r*4+1]*n[4+c] + m[r*4+2]*n[8+c] + m[r*4+3]*n[12+c]
		}
	}
	return out
}

// Translate returns m * TranslationMatrix(x, y, z).
func (m Matrix) Translate(x, y, z float64) Matrix {
	return m.Mul(TranslationMatrix(x, y, z))
}

// Scale returns m * ScaleMatrix(x, y, z).
func (m Matrix) Scale(x, y, z float64) Matrix {
	return m.Mul(ScaleMatrix(x, y, z))
}

// IsIdentity reports whether m is exactly the identity matrix.
func (m Matrix) IsIdentity() bool {
	return m == IdentityMatrix()
}

// IsScaleTranslate reports whether m only scales and translates, so that an
// axis-aligned box stays axis-aligned under it.
func (m Matrix) IsScaleTranslate() bool {
	return m[1] == 0 && m[2] == 0 &&
		m[4] == 0 && m[6] == 0 &&
		m[8] == 0 && m[9] == 0 &&
		m[12] == 0 && m[13] == 0 && m[14] == 0 && m[15] == 1
}

// TransformPoint applies m to p, dividing by w when the matrix is projective.
func (m Matrix) TransformPoint(p f64.Vec3) f64.Vec3 {
	x := m[0]*p[0] + m[1]*p[1] + m[2]*p[2] + m[3]
	y := m[4]*p[0] + m[5]*p[1] + m[6]*p[2] + m[7]
	z := m[8]*p[0] + m[9]*p[1] + m[10]*p[2] + m[11]
	w := m[12]*p[0] + m[13]*p[1] + m[14]*p[2] + m[15]
	if w != 1 && w != 0 {
		x, y, z = x/w, y/w, z/w
	}
	return f64.Vec3{x, y, z}
}

// TransformBox returns the axis-aligned bounds of b's corners after
// applying m in the z = 0 plane.
func (m Matrix) TransformBox(b Box) Box {
	corners := [4]f64.Vec3{
		{b.X1, b.Y1, 0},
		{b.X2, b.Y1, 0},
		{b.X1, b.Y2, 0},
		{b.X2, b.Y2, 0},
	}
	out := Box{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, c := range corners {
		p := m.TransformPoint(c)
		out.X1 = math.Min(out.X1, p[0])
		out.Y1 = math.Min(out.Y1, p[1])
		out.X2 = math.Max(out.X2, p[0])
		out.Y2 = math.Max(out.Y2, p[1])
	}
	return out
}

// Invert returns the inverse of m. The second result is false if m is
// singular, in which case the identity is returned.
func (m Matrix) Invert() (Matrix, bool) {
	var inv Matrix
	inv[0] = m[5]*m[10]*m[15] - m[5]*m[11]*m[14] - m[9]*m[6]*m[15] + m[9]*m[7]*m[14] + m[13]*m[6]*m[11] - m[13]*m[7]*m[10]
	inv[4] = -m[4]*m[10]*m[15] + m[4]*m[11]*m[14] + m[8]*m[6]*m[15] - m[8]*m[7]*m[14] - m[12]*m[6]*m[11] + m[12]*m[7]*m[10]
	inv[8] = m[4]*m[9]*m[15] - m[4]*m[11]*m[13] - m[8]*m[5]*m[15] + m[8]*m[7]*m[13] + m[12]*m[5]*m[11] - m[12]*m[7]*m[9]
	inv[12] = -m[4]*m[9]*m[14] + m[4]*m[10]*m[13] + m[8]*m[5]*m[14] - m[8]*m[6]*m[13] - m[12]*m[5]*m[10] + m[12]*m[6]*m[9]
	inv[1] = -m[1]*m[10]*m[15] + m[1]*m[11]*m[14] + m[9]*m[2]*m[15] - m[9]*m[3]*m[14] - m[13]*m[2]*m[11] + m[13]*m[3]*m[10]
	inv[5] = m[0]*m[10]*m[15] - m[0]*m[11]*m[14] - m[8]*m[2]*m[15] + m[8]*m[3]*m[14] + m[12]*m[2]*m[11] - m[12]*m[3]*m[10]
	inv[9] = -m[0]*m[9]*m[15] + m[0]*m[11]*m[13] + m[8]*m[1]*m[15] - m[8]*m[3]*m[13] - m[12]*m[1]*m[11] + m[12]*m[3]*m[9]
	inv[13] = m[0]*m[9]*m[14] - m[0]*m[10]*m[13] - m[8]*m[1]*m[14] + m[8]*m[2]*m[13] + m[12]*m[1]*m[10] - m[12]*m[2]*m[9]
	inv[2] = m[1]*m[6]*m[15] - m[1]*m[7]*m[14] - m[5]*m[2]*m[15] + m[5]*m[3]*m[14] + m[13]*m[2]*m[7] - m[13]*m[3]*m[6]
	inv[6] = -m[0]*m[6]*m[15] + m[0]*m[7]*m[14] + m[4]*m[2]*m[15] - m[4]*m[3]*m[14] - m[12]*m[2]*m[7] + m[12]*m[3]*m[6]
	inv[10] = m[0]*m[5]*m[15] - m[0]*m[7]*m[13] - m[4]*m[1]*m[15] + m[4]*m[3]*m[13] + m[12]*m[1]*m[7] - m[12]*m[3]*m[5]
	inv[14] = -m[0]*m[5]*m[14] + m[0]*m[6]*m[13] + m[4]*m[1]*m[14] - m[4]*m[2]*m[13] - m[12]*m[1]*m[6] + m[12]*m[2]*m[5]
	inv[3] = -m[1]*m[6]*m[11] + m[1]*m[7]*m[10] + m[5]*m[2]*m[11] - m[5]*m[3]*m[10] - m[9]*m[2]*m[7] + m[9]*m[3]*m[6]
	inv[7] = m[0]*m[6]*m[11] - m[0]*m[7]*m[10] - m[4]*m[2]*m[11] + m[4]*m[3]*m[10] + m[8]*m[2]*m[7] - m[8]*m[3]*m[6]
	inv[11] = -m[0]*m[5]*m[11] + m[0]*m[7]*m[9] + m[4]*m[1]*m[11] - m[4]*m[3]*m[9] - m[8]*m[1]*m[7] + m[8]*m[3]*m[5]
	inv[15] = m[0]*m[5]*m[10] - m[0]*m[6]*m[9] - m[4]*m[1]*m[10] + m[4]*m[2]*m[9] + m[8]*m[1]*m[6] - m[8]*m[2]*m[5]

	det := m[0]*inv[0] + m[1]*inv[4] + m[2]*inv[8] + m[3]*inv[12]
	if det > -1e-12 && det < 1e-12 {
		return IdentityMatrix(), false
	}
	invDet := 1.0 / det
	for i := range inv {
		inv[i] *= invDet
	}
	return inv, true
}

// --- Matrix stack ---

// MatrixStack is a modelview stack for framebuffer implementations. The zero
// value holds the identity.
type MatrixStack struct {
	top   Matrix
	saved []Matrix
	init  bool
}

// Top returns the current matrix.
func (s *MatrixStack) Top() Matrix {
	if !s.init {
		return IdentityMatrix()
	}
	return s.top
}

// Push saves the current matrix.
func (s *MatrixStack) Push() {
	s.saved = append(s.saved, s.Top())
}

// Pop restores the most recently pushed matrix.
func (s *MatrixStack) Pop() {
	n := len(s.saved)
	if n == 0 {
		panic("trellis: matrix stack underflow")
	}
	s.top = s.saved[n-1]
	s.init = true
	s.saved = s.saved[:n-1]
}

// Set replaces the current matrix.
func (s *MatrixStack) Set(m Matrix) {
	s.top = m
	s.init = true
}

// Multiply post-multiplies the current matrix by m.
func (s *MatrixStack) Multiply(m Matrix) {
	s.Set(s.Top().Mul(m))
}

// Depth returns the number of saved matrices.
func (s *MatrixStack) Depth() int {
	return len(s.saved)
}

// --- Box ---

// Box is an axis-aligned float rectangle given by its two corners. The
// coordinate system has its origin at the top-left, with Y increasing
// downward.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// BoxFromRect converts an integer rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}

// Width returns X2 - X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns Y2 - Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// IsEmpty reports whether the box has no area.
func (b Box) IsEmpty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Union returns the smallest box containing b and o. An empty operand is
// ignored.
func (b Box) Union(o Box) Box {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return Box{
		math.Min(b.X1, o.X1), math.Min(b.Y1, o.Y1),
		math.Max(b.X2, o.X2), math.Max(b.Y2, o.Y2),
	}
}

// Scale multiplies all coordinates by s.
func (b Box) Scale(s float64) Box {
	return Box{b.X1 * s, b.Y1 * s, b.X2 * s, b.Y2 * s}
}

// Translate offsets the box by (dx, dy).
func (b Box) Translate(dx, dy float64) Box {
	return Box{b.X1 + dx, b.Y1 + dy, b.X2 + dx, b.Y2 + dy}
}

// Rect returns the smallest integer rectangle containing b.
func (b Box) Rect() image.Rectangle {
	return roundBox(b.X1, b.Y1, b.X2, b.Y2, RoundGrow)
}

// Contains reports whether the point (x, y) lies inside the box.
// Points on the edge are considered inside.
func (b Box) Contains(x, y float64) bool {
	return x >= b.X1 && x <= b.X2 && y >= b.Y1 && y <= b.Y2
}
