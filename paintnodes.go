package trellis

// --- Root ---

type rootNode struct {
	fb         Framebuffer
	clearColor Color
	clear      bool
}

// NewRootNode returns a node that paints its subtree into fb. If clear is
// true the framebuffer is cleared to clearColor first. The clear honors any
// clip already pushed on fb.
func NewRootNode(fb Framebuffer, clearColor Color, clear bool) *PaintNode {
	return newPaintNode("root", &rootNode{fb: fb, clearColor: clearColor, clear: clear})
}

func (k *rootNode) preDraw(n *PaintNode, ctx *PaintContext) bool {
	ctx.PushFramebuffer(k.fb)
	if k.clear {
		k.fb.Clear(k.clearColor)
	}
	return true
}

func (k *rootNode) draw(n *PaintNode, ctx *PaintContext) {}

func (k *rootNode) postDraw(n *PaintNode, ctx *PaintContext) {
	ctx.PopFramebuffer()
}

func (k *rootNode) framebuffer() Framebuffer { return k.fb }

// --- Transform ---

type transformNode struct {
	m Matrix
}

// NewTransformNode returns a node that multiplies the modelview by m while
// its subtree paints.
func NewTransformNode(m Matrix) *PaintNode {
	return newPaintNode("transform", &transformNode{m: m})
}

func (k *transformNode) preDraw(n *PaintNode, ctx *PaintContext) bool {
	fb := ctx.Framebuffer()
	fb.PushMatrix()
	fb.Transform(k.m)
	return true
}

func (k *transformNode) draw(n *PaintNode, ctx *PaintContext) {}

func (k *transformNode) postDraw(n *PaintNode, ctx *PaintContext) {
	ctx.Framebuffer().PopMatrix()
}

func (k *transformNode) framebuffer() Framebuffer { return nil }

// --- Pipeline, color, texture ---

type pipelineNode struct {
	pipeline *Pipeline
}

// NewPipelineNode returns a node drawing its operations with p.
func NewPipelineNode(p *Pipeline) *PaintNode {
	return newPaintNode("pipeline", &pipelineNode{pipeline: p})
}

// NewColorNode returns a node drawing its operations in a solid color.
func NewColorNode(c Color) *PaintNode {
	p := NewPipeline()
	p.Color = c.Premultiply()
	return newPaintNode("color", &pipelineNode{pipeline: p})
}

// NewTextureNode returns a node drawing its operations with tex tinted by
// color.
func NewTextureNode(tex Texture, color Color, minFilter, magFilter Filter) *PaintNode {
	p := NewPipeline()
	p.Color = color.Premultiply()
	p.SetLayerTexture(0, tex)
	p.SetLayerFilters(minFilter, magFilter)
	return newPaintNode("texture", &pipelineNode{pipeline: p})
}

// Pipeline returns the node's pipeline for pipeline, color and texture
// nodes, or nil for other kinds.
func (n *PaintNode) Pipeline() *Pipeline {
	if k, ok := n.kind.(*pipelineNode); ok {
		return k.pipeline
	}
	return nil
}

func (k *pipelineNode) preDraw(n *PaintNode, ctx *PaintContext) bool {
	return len(n.ops) > 0 && k.pipeline != nil
}

func (k *pipelineNode) draw(n *PaintNode, ctx *PaintContext) {
	drawOps(ctx.Framebuffer(), k.pipeline, n.ops)
}

func (k *pipelineNode) postDraw(n *PaintNode, ctx *PaintContext) {}

func (k *pipelineNode) framebuffer() Framebuffer { return nil }

// --- Clip ---

type clipNode struct {
	pushed int
}

// NewClipNode returns a node that clips its subtree to the intersection of
// its rectangle operations. Add rectangles with AddRectangle.
func NewClipNode() *PaintNode {
	return newPaintNode("clip", &clipNode{})
}

func (k *clipNode) preDraw(n *PaintNode, ctx *PaintContext) bool {
	fb := ctx.Framebuffer()
	k.pushed = 0
	for i := range n.ops {
		op := &n.ops[i]
		if op.Type != OpTexRect {
			continue
		}
		fb.PushRectangleClip(op.box())
		k.pushed++
	}
	return k.pushed > 0
}

func (k *clipNode) draw(n *PaintNode, ctx *PaintContext) {}

func (k *clipNode) postDraw(n *PaintNode, ctx *PaintContext) {
	fb := ctx.Framebuffer()
	for ; k.pushed > 0; k.pushed-- {
		fb.PopClip()
	}
}

func (k *clipNode) framebuffer() Framebuffer { return nil }

// --- Grouping: actor, effect, dummy ---

type groupNode struct {
	fb Framebuffer
}

func (k *groupNode) preDraw(n *PaintNode, ctx *PaintContext) bool { return false }
func (k *groupNode) draw(n *PaintNode, ctx *PaintContext)         {}
func (k *groupNode) postDraw(n *PaintNode, ctx *PaintContext)     {}
func (k *groupNode) framebuffer() Framebuffer                     { return k.fb }

// NewActorNode returns a grouping node populated by a.Paint. The actor adds
// whatever child nodes it needs; the actor node itself draws nothing.
func NewActorNode(a Actor, ctx *PaintContext) *PaintNode {
	n := newPaintNode("actor", &groupNode{})
	a.Paint(n, ctx)
	return n
}

// NewEffectNode returns a grouping node holding the output of an effect.
func NewEffectNode(name string) *PaintNode {
	return newPaintNode(name, &groupNode{})
}

// NewDummyNode returns a grouping node. If fb is non-nil, descendants paint
// into it.
func NewDummyNode(fb Framebuffer) *PaintNode {
	return newPaintNode("dummy", &groupNode{fb: fb})
}

// --- Layer ---

type layerNode struct {
	offscreen  Offscreen
	pipeline   *Pipeline
	projection Matrix
	modelview  Matrix

	savedProjection Matrix
}

// NewLayerNode returns a node that redirects its subtree into offscreen.
// The subtree paints with the given projection and modelview. Afterwards the
// node's own rectangle operations are drawn into the parent framebuffer with
// the offscreen's texture, modulated by opacity.
func NewLayerNode(offscreen Offscreen, projection, modelview Matrix, opacity float64) *PaintNode {
	k := &layerNode{offscreen: offscreen, projection: projection, modelview: modelview}
	if offscreen != nil {
		k.pipeline = NewPipeline()
		k.pipeline.Color = Color{opacity, opacity, opacity, opacity}
		k.pipeline.SetLayerTexture(0, offscreen.Texture())
	}
	return newPaintNode("layer", k)
}

func (k *layerNode) preDraw(n *PaintNode, ctx *PaintContext) bool {
	if k.offscreen == nil {
		return false
	}
	ctx.PushFramebuffer(k.offscreen)
	k.savedProjection = k.offscreen.Projection()
	k.offscreen.PushMatrix()
	k.offscreen.SetProjection(k.projection)
	k.offscreen.SetModelView(k.modelview)
	k.offscreen.Clear(ColorTransparent)
	return true
}

func (k *layerNode) draw(n *PaintNode, ctx *PaintContext) {}

func (k *layerNode) postDraw(n *PaintNode, ctx *PaintContext) {
	k.offscreen.PopMatrix()
	k.offscreen.SetProjection(k.savedProjection)
	ctx.PopFramebuffer()
	drawOps(ctx.Framebuffer(), k.pipeline, n.ops)
}

func (k *layerNode) framebuffer() Framebuffer {
	if k.offscreen == nil {
		return nil
	}
	return k.offscreen
}

// --- Blit ---

type blitNode struct {
	src Framebuffer
}

// NewBlitNode returns a node copying pixel rectangles from src into the
// current framebuffer. Add rectangles with AddBlitRectangle.
func NewBlitNode(src Framebuffer) *PaintNode {
	return newPaintNode("blit", &blitNode{src: src})
}

func (k *blitNode) preDraw(n *PaintNode, ctx *PaintContext) bool {
	return k.src != nil && len(n.ops) > 0
}

func (k *blitNode) draw(n *PaintNode, ctx *PaintContext) {
	dst := ctx.Framebuffer()
	for i := range n.ops {
		op := &n.ops[i]
		if op.Type != OpBlitRect {
			continue
		}
		b := op.Blit
		if err := k.src.Blit(dst, b[0], b[1], b[2], b[3], b[4], b[5]); err != nil {
			Logger().WithError(err).Warn("blit node failed")
		}
	}
}

func (k *blitNode) postDraw(n *PaintNode, ctx *PaintContext) {}

func (k *blitNode) framebuffer() Framebuffer { return nil }
