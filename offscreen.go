package trellis

import (
	"math"

	"github.com/sirupsen/logrus"
)

// EffectPaintFlag tells an effect how the actor changed since its last
// paint.
type EffectPaintFlag uint8

const (
	// EffectPaintActorDirty means the actor's content changed and any cached
	// capture is stale.
	EffectPaintActorDirty EffectPaintFlag = 1 << iota
	// EffectPaintBypass asks the effect to paint the actor directly.
	EffectPaintBypass
)

// OffscreenEffectHooks customizes how an OffscreenEffect allocates its
// target. Nil hooks use the defaults.
type OffscreenEffectHooks struct {
	// CreateTexture returns the texture the actor is captured into. The
	// default allocates a width x height texture, at least 1x1.
	CreateTexture func(backend Backend, width, height int) (Texture, error)
	// CreatePipeline returns the pipeline used to composite the captured
	// texture. The default samples tex on layer 0.
	CreatePipeline func(tex Texture) *Pipeline
}

// OffscreenEffect paints an actor into an offscreen framebuffer and
// composites the result. The capture is kept across frames and replayed
// until the actor is marked dirty.
type OffscreenEffect struct {
	backend Backend
	hooks   OffscreenEffectHooks

	actor   Actor
	enabled bool

	offscreen Offscreen
	texture   Texture
	pipeline  *Pipeline

	targetWidth  int
	targetHeight int

	// box is the enlarged capture area in stage coordinates. fboOffsetX/Y
	// is how far its origin sits from the actor's own paint box.
	box        Box
	fboOffsetX float64
	fboOffsetY float64

	resourceScale float64

	stage   *Stage
	purgeID int
}

// NewOffscreenEffect returns an enabled effect allocating through backend.
func NewOffscreenEffect(backend Backend, hooks *OffscreenEffectHooks) *OffscreenEffect {
	e := &OffscreenEffect{
		backend:       backend,
		enabled:       true,
		resourceScale: 1,
	}
	if hooks != nil {
		e.hooks = *hooks
	}
	return e
}

// SetActor attaches the effect to a, dropping any cached capture.
func (e *OffscreenEffect) SetActor(a Actor) {
	e.actor = a
	e.dropFBO()
	if a == nil {
		e.unbindStage()
	}
}

// Actor returns the actor the effect is attached to.
func (e *OffscreenEffect) Actor() Actor { return e.actor }

// SetEnabled turns the effect on or off. Either way the cached capture is
// dropped.
func (e *OffscreenEffect) SetEnabled(enabled bool) {
	e.enabled = enabled
	e.dropFBO()
}

// Enabled reports whether the effect is enabled.
func (e *OffscreenEffect) Enabled() bool { return e.enabled }

// HasTarget reports whether a capture framebuffer is allocated.
func (e *OffscreenEffect) HasTarget() bool { return e.offscreen != nil }

// Offscreen returns the capture framebuffer, or nil.
func (e *OffscreenEffect) Offscreen() Offscreen { return e.offscreen }

// Texture returns the capture texture, or nil.
func (e *OffscreenEffect) Texture() Texture { return e.texture }

// Pipeline returns the compositing pipeline, or nil.
func (e *OffscreenEffect) Pipeline() *Pipeline { return e.pipeline }

// TargetSize returns the size the capture was allocated at.
func (e *OffscreenEffect) TargetSize() (width, height int) {
	return e.targetWidth, e.targetHeight
}

// FBOOffset returns the offset of the capture origin from the actor's paint
// box, introduced by enlarging the box for effects.
func (e *OffscreenEffect) FBOOffset() (x, y float64) {
	return e.fboOffsetX, e.fboOffsetY
}

// VideoMemoryPurged drops the capture framebuffer. It is recreated on the
// next paint.
func (e *OffscreenEffect) VideoMemoryPurged() {
	e.offscreen = nil
}

// Destroy releases the capture and unsubscribes from the stage.
func (e *OffscreenEffect) Destroy() {
	e.dropFBO()
	e.unbindStage()
}

func (e *OffscreenEffect) dropFBO() {
	if r, ok := e.backend.(TextureReleaser); ok && e.texture != nil {
		r.ReleaseTexture(e.texture)
	}
	e.offscreen = nil
	e.texture = nil
}

func (e *OffscreenEffect) unbindStage() {
	if e.stage != nil {
		e.stage.RemoveVideoMemoryPurgedListener(e.purgeID)
	}
	e.stage = nil
	e.purgeID = 0
}

// PrePaint prepares the capture target for the actor's current geometry.
// It returns false when the actor should be painted without the effect.
func (e *OffscreenEffect) PrePaint(ctx *PaintContext) bool {
	if !e.enabled || e.actor == nil {
		return false
	}

	var raw Box
	if pv, ok := e.actor.PaintVolume(); ok && !pv.IsEmpty() {
		raw = pv.BoundingBox()
	} else {
		raw = e.actor.AllocationBox()
	}
	box := EnlargeForEffects(raw)
	e.box = box
	e.fboOffsetX = box.X1 - raw.X1
	e.fboOffsetY = box.Y1 - raw.Y1

	e.resourceScale = e.actor.ResourceScale()
	if e.resourceScale <= 0 {
		e.resourceScale = 1
	}
	ceiled := math.Ceil(e.resourceScale)
	width := int(math.Ceil(box.Width() * ceiled))
	height := int(math.Ceil(box.Height() * ceiled))

	return e.updateFBO(width, height)
}

func (e *OffscreenEffect) updateFBO(width, height int) bool {
	if stage := e.actor.Stage(); stage != e.stage {
		e.unbindStage()
		if stage != nil {
			e.stage = stage
			e.purgeID = stage.OnVideoMemoryPurged(e.VideoMemoryPurged)
		}
	}
	if e.stage == nil {
		e.log().Warn("unable to set up offscreen effect: actor is not on a stage")
		return false
	}

	if e.targetWidth == width && e.targetHeight == height && e.offscreen != nil {
		e.refreshFilter()
		return true
	}

	e.dropFBO()

	tex, err := e.createTexture(width, height)
	if err == nil {
		var off Offscreen
		off, err = e.backend.NewOffscreen(tex)
		if err == nil {
			e.texture = tex
			e.offscreen = off
		} else if r, ok := e.backend.(TextureReleaser); ok {
			r.ReleaseTexture(tex)
		}
	}
	if err != nil {
		e.log().WithError(err).WithFields(logrus.Fields{
			"width":  width,
			"height": height,
		}).Warn("failed to create offscreen effect framebuffer")
		e.pipeline = nil
		e.targetWidth = 0
		e.targetHeight = 0
		return false
	}

	e.targetWidth = width
	e.targetHeight = height
	e.pipeline = e.createPipeline(e.texture)
	e.refreshFilter()
	return true
}

func (e *OffscreenEffect) createTexture(width, height int) (Texture, error) {
	if e.hooks.CreateTexture != nil {
		return e.hooks.CreateTexture(e.backend, width, height)
	}
	return e.backend.NewTexture(max(width, 1), max(height, 1))
}

func (e *OffscreenEffect) createPipeline(tex Texture) *Pipeline {
	if e.hooks.CreatePipeline != nil {
		return e.hooks.CreatePipeline(tex)
	}
	p := NewPipeline()
	p.SetLayerTexture(0, tex)
	return p
}

// refreshFilter samples nearest when the capture maps 1:1 onto device
// pixels, linear otherwise.
func (e *OffscreenEffect) refreshFilter() {
	if e.pipeline == nil {
		return
	}
	if _, frac := math.Modf(e.resourceScale); frac == 0 {
		e.pipeline.SetLayerFilters(FilterNearest, FilterNearest)
	} else {
		e.pipeline.SetLayerFilters(FilterLinear, FilterLinear)
	}
}

// Paint adds the effect's output for the actor to parent. A clean cached
// capture is replayed; otherwise the actor is captured first. If the target
// cannot be set up the actor is painted directly.
func (e *OffscreenEffect) Paint(parent *PaintNode, ctx *PaintContext, flags EffectPaintFlag) {
	if e.actor == nil {
		return
	}
	if flags&EffectPaintBypass != 0 {
		parent.AddChild(NewActorNode(e.actor, ctx))
		e.offscreen = nil
		return
	}
	if e.offscreen == nil || flags&EffectPaintActorDirty != 0 {
		if !e.PrePaint(ctx) {
			parent.AddChild(NewActorNode(e.actor, ctx))
			return
		}
		e.capture(parent, ctx)
	}
	e.paintTarget(parent)
}

func (e *OffscreenEffect) captureScale() float64 {
	return math.Ceil(e.resourceScale)
}

// capture redirects a fresh paint of the actor into the offscreen.
func (e *OffscreenEffect) capture(parent *PaintNode, ctx *PaintContext) {
	s := e.captureScale()
	modelview := ScaleMatrix(s, s, 1).Translate(-e.box.X1, -e.box.Y1, 0)
	layer := NewLayerNode(e.offscreen, IdentityMatrix(), modelview, 1)
	layer.Name = "offscreen-effect-capture"
	layer.AddChild(NewActorNode(e.actor, ctx))
	parent.AddChild(layer)
}

// paintTarget composites the captured texture back at the capture box.
func (e *OffscreenEffect) paintTarget(parent *PaintNode) {
	opacity := 1.0
	if o, ok := e.actor.(interface{ Opacity() float64 }); ok {
		opacity = o.Opacity()
	}
	p := e.pipeline.Copy()
	p.Color = Color{opacity, opacity, opacity, opacity}

	node := NewPipelineNode(p)
	node.Name = "offscreen-effect-target"
	node.AddRectangle(Box{0, 0, float64(e.texture.Width()), float64(e.texture.Height())})

	s := e.captureScale()
	m := TranslationMatrix(e.box.X1, e.box.Y1, 0).Scale(1/s, 1/s, 1)
	if m.IsIdentity() {
		parent.AddChild(node)
		return
	}
	t := NewTransformNode(m)
	t.AddChild(node)
	parent.AddChild(t)
}

func (e *OffscreenEffect) log() *logrus.Entry { return componentLog("offscreen-effect") }
