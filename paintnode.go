package trellis

import "fmt"

// PaintOpType identifies a recorded paint operation.
type PaintOpType uint8

const (
	OpTexRect      PaintOpType = iota // one textured rectangle
	OpMultiTexRect                    // one rectangle with per-layer texture coordinates
	OpTexRects                        // batch of textured rectangles, one draw call
	OpPrimitive                       // opaque triangle list
	OpBlitRect                        // framebuffer-to-framebuffer copy
)

// PaintOp is one recorded drawing operation on a PaintNode.
type PaintOp struct {
	Type PaintOpType

	// Rect holds x1, y1, x2, y2, tx1, ty1, tx2, ty2 for OpTexRect, and the
	// rectangle in its first four entries for OpMultiTexRect.
	Rect [8]float64
	// Coords holds the flattened batch for OpTexRects (eight floats per
	// rectangle) and the per-layer texture coordinates for OpMultiTexRect.
	Coords []float64
	// Primitive is set for OpPrimitive.
	Primitive Primitive
	// Blit holds srcX, srcY, dstX, dstY, width, height for OpBlitRect.
	Blit [6]int
}

// box returns the rectangle part of a single-rect op.
func (op *PaintOp) box() Box {
	return Box{op.Rect[0], op.Rect[1], op.Rect[2], op.Rect[3]}
}

// paintNodeKind is the capability set a node kind implements.
type paintNodeKind interface {
	preDraw(n *PaintNode, ctx *PaintContext) bool
	draw(n *PaintNode, ctx *PaintContext)
	postDraw(n *PaintNode, ctx *PaintContext)
	// framebuffer returns the target this node redirects painting to, or nil.
	framebuffer() Framebuffer
}

// PaintNode is one element of the per-frame render graph. Actors build a tree
// of nodes describing what to draw; the tree is then walked once with Paint.
// Nodes are not reused across frames.
type PaintNode struct {
	Name string

	parent   *PaintNode
	children []*PaintNode
	ops      []PaintOp
	kind     paintNodeKind
}

func newPaintNode(name string, kind paintNodeKind) *PaintNode {
	return &PaintNode{Name: name, kind: kind}
}

// --- Tree ---

// AddChild appends child to this node's children. The tree takes exclusive
// ownership of child.
// Panics if child is nil, already has a parent, or is n itself.
func (n *PaintNode) AddChild(child *PaintNode) {
	if child == nil {
		panic("trellis: cannot add nil paint node")
	}
	if child == n {
		panic("trellis: paint node cannot be its own child")
	}
	if child.parent != nil {
		panic(fmt.Sprintf("trellis: paint node %q already has a parent", child.Name))
	}
	child.parent = n
	n.children = append(n.children, child)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// RemoveAllChildren detaches every child of n.
func (n *PaintNode) RemoveAllChildren() {
	for i, c := range n.children {
		c.parent = nil
		n.children[i] = nil
	}
	n.children = n.children[:0]
}

// Parent returns the node's parent, or nil for a root.
func (n *PaintNode) Parent() *PaintNode {
	return n.parent
}

// NumChildren returns the number of direct children.
func (n *PaintNode) NumChildren() int {
	return len(n.children)
}

// Children returns the node's children in paint order. The returned slice
// is a copy.
func (n *PaintNode) Children() []*PaintNode {
	out := make([]*PaintNode, len(n.children))
	copy(out, n.children)
	return out
}

// Ops returns the recorded operations. The returned slice must not be
// modified.
func (n *PaintNode) Ops() []PaintOp {
	return n.ops
}

// Framebuffer returns the framebuffer this node paints into: the nearest
// node on the path to the root that declares its own target. Returns nil if
// no ancestor does.
func (n *PaintNode) Framebuffer() Framebuffer {
	for p := n; p != nil; p = p.parent {
		if p.kind == nil {
			continue
		}
		if fb := p.kind.framebuffer(); fb != nil {
			return fb
		}
	}
	return nil
}

// Paint walks the subtree rooted at n. Each node's pre-draw decides whether
// its own draw and post-draw run; children are always visited.
func (n *PaintNode) Paint(ctx *PaintContext) {
	drew := n.kind.preDraw(n, ctx)
	if drew {
		n.kind.draw(n, ctx)
	}
	for _, c := range n.children {
		c.Paint(ctx)
	}
	if drew {
		n.kind.postDraw(n, ctx)
	}
}

// --- Operations ---

func (n *PaintNode) addOp(op PaintOp) {
	if n.ops == nil {
		n.ops = make([]PaintOp, 0, 4)
	}
	n.ops = append(n.ops, op)
}

// AddRectangle records a rectangle with the default texture coordinates
// (0, 0, 1, 1).
func (n *PaintNode) AddRectangle(b Box) {
	n.AddTextureRectangle(b, 0, 0, 1, 1)
}

// AddTextureRectangle records a rectangle with explicit texture coordinates.
func (n *PaintNode) AddTextureRectangle(b Box, tx1, ty1, tx2, ty2 float64) {
	n.addOp(PaintOp{
		Type: OpTexRect,
		Rect: [8]float64{b.X1, b.Y1, b.X2, b.Y2, tx1, ty1, tx2, ty2},
	})
}

// AddMultitextureRectangle records a rectangle with four texture
// coordinates per pipeline layer.
// Panics if len(texCoords) is not a multiple of 4.
func (n *PaintNode) AddMultitextureRectangle(b Box, texCoords []float64) {
	if len(texCoords)%4 != 0 {
		panic("trellis: multitexture coordinates must come in groups of 4")
	}
	op := PaintOp{Type: OpMultiTexRect, Coords: append([]float64(nil), texCoords...)}
	op.Rect[0], op.Rect[1], op.Rect[2], op.Rect[3] = b.X1, b.Y1, b.X2, b.Y2
	n.addOp(op)
}

// AddRectangles records a batch of rectangles given as x1, y1, x2, y2
// quadruples. Each rectangle gets the default texture coordinates.
// Panics if len(coords) is not a multiple of 4.
func (n *PaintNode) AddRectangles(coords []float64) {
	if len(coords)%4 != 0 {
		panic("trellis: rectangle coordinates must come in groups of 4")
	}
	if len(coords) == 0 {
		return
	}
	batch := make([]float64, 0, len(coords)*2)
	for i := 0; i < len(coords); i += 4 {
		batch = append(batch, coords[i], coords[i+1], coords[i+2], coords[i+3], 0, 0, 1, 1)
	}
	n.addOp(PaintOp{Type: OpTexRects, Coords: batch})
}

// AddTextureRectangles records a batch of textured rectangles given as
// x1, y1, x2, y2, tx1, ty1, tx2, ty2 groups.
// Panics if len(coords) is not a multiple of 8.
func (n *PaintNode) AddTextureRectangles(coords []float64) {
	if len(coords)%8 != 0 {
		panic("trellis: texture rectangle coordinates must come in groups of 8")
	}
	if len(coords) == 0 {
		return
	}
	n.addOp(PaintOp{Type: OpTexRects, Coords: append([]float64(nil), coords...)})
}

// AddPrimitive records a triangle list.
func (n *PaintNode) AddPrimitive(p Primitive) {
	n.addOp(PaintOp{Type: OpPrimitive, Primitive: p})
}

// AddBlitRectangle records a copy of a width x height pixel rectangle.
func (n *PaintNode) AddBlitRectangle(srcX, srcY, dstX, dstY, width, height int) {
	n.addOp(PaintOp{Type: OpBlitRect, Blit: [6]int{srcX, srcY, dstX, dstY, width, height}})
}

// drawOps submits ops to fb with pipeline p.
func drawOps(fb Framebuffer, p *Pipeline, ops []PaintOp) {
	for i := range ops {
		op := &ops[i]
		switch op.Type {
		case OpTexRect:
			fb.DrawTexturedRectangle(p, op.box(), op.Rect[4], op.Rect[5], op.Rect[6], op.Rect[7])
		case OpMultiTexRect:
			fb.DrawMultiTexturedRectangle(p, op.box(), op.Coords)
		case OpTexRects:
			fb.DrawTexturedRectangles(p, op.Coords)
		case OpPrimitive:
			fb.DrawPrimitive(p, op.Primitive)
		}
	}
}

// --- Paint context ---

// PaintFlag modifies how a stage paints a view.
type PaintFlag uint8

const (
	PaintNoCursors    PaintFlag = 1 << iota // skip overlays on this view
	PaintForceCursors                       // paint overlays even when hidden
)

// PaintContext carries per-walk state: the framebuffer stack, the view being
// painted and the stage-space redraw clip.
type PaintContext struct {
	framebuffers []Framebuffer
	view         *StageView
	redrawClip   Region
	hasClip      bool
	flags        PaintFlag
	frame        *Frame
}

// NewPaintContext returns a context painting into fb. A nil redraw clip
// means the whole view is being painted.
func NewPaintContext(fb Framebuffer, view *StageView, redrawClip *Region, flags PaintFlag) *PaintContext {
	ctx := &PaintContext{view: view, flags: flags}
	if fb != nil {
		ctx.framebuffers = append(ctx.framebuffers, fb)
	}
	if redrawClip != nil {
		ctx.redrawClip = redrawClip.Copy()
		ctx.hasClip = true
	}
	return ctx
}

// Framebuffer returns the framebuffer on top of the stack.
func (c *PaintContext) Framebuffer() Framebuffer {
	if len(c.framebuffers) == 0 {
		return nil
	}
	return c.framebuffers[len(c.framebuffers)-1]
}

// PushFramebuffer redirects painting to fb.
func (c *PaintContext) PushFramebuffer(fb Framebuffer) {
	c.framebuffers = append(c.framebuffers, fb)
}

// PopFramebuffer restores the previous framebuffer.
func (c *PaintContext) PopFramebuffer() {
	if len(c.framebuffers) == 0 {
		panic("trellis: framebuffer stack underflow")
	}
	c.framebuffers[len(c.framebuffers)-1] = nil
	c.framebuffers = c.framebuffers[:len(c.framebuffers)-1]
}

// View returns the view being painted, or nil when painting off-stage.
func (c *PaintContext) View() *StageView {
	return c.view
}

// RedrawClip returns the stage-space clip of this paint. The second result
// is false when the whole view is being painted.
func (c *PaintContext) RedrawClip() (Region, bool) {
	return c.redrawClip, c.hasClip
}

// Flags returns the paint flags.
func (c *PaintContext) Flags() PaintFlag {
	return c.flags
}

// Frame returns the frame being painted, which may be nil.
func (c *PaintContext) Frame() *Frame {
	return c.frame
}
