package trellis

import (
	"image"

	"github.com/sirupsen/logrus"
)

// StageViewConfig describes one output of a stage.
type StageViewConfig struct {
	Name string
	// Layout is the view's rectangle in stage coordinates.
	Layout image.Rectangle
	// Scale is the number of framebuffer pixels per stage unit. Zero means 1.
	Scale float64
	// Onscreen is the presentable target. It is usually an Onscreen; any
	// other Framebuffer (for example a virtual output) gets fake swaps.
	Onscreen Framebuffer
	// Offscreen is an optional intermediate target the stage is painted
	// into before being transformed onto the onscreen.
	Offscreen Offscreen
	// OffscreenTransform maps offscreen pixels to onscreen pixels. The zero
	// value stretches the offscreen over the whole onscreen.
	OffscreenTransform Matrix
	// Shadow is an optional shadow framebuffer. The stage (or the
	// offscreen) is composed into it and the result is copied to the
	// onscreen in one blit.
	Shadow Offscreen
	// PaintFlags are the default flags for painting this view.
	PaintFlags PaintFlag
}

// StageView is one output of a stage: a rectangle of stage space shown on
// a framebuffer at some scale, with its own damage history and pending
// redraw clip.
type StageView struct {
	name       string
	layout     image.Rectangle
	scale      float64
	onscreen   Framebuffer
	offscreen  Offscreen
	shadow     Offscreen
	paintFlags PaintFlag

	offscreenTransform Matrix
	offscreenPipeline  *Pipeline

	history *DamageHistory

	hasRedrawClip bool
	redrawClip    *Region // nil with hasRedrawClip means full

	hasAccumulatedClip bool
	accumulatedClip    *Region

	nextScanout ScanoutBuffer

	// presentedFrames counts swaps on this view's onscreen.
	presentedFrames int64
}

// NewStageView creates a view from cfg.
// Panics if cfg.Onscreen is nil or the layout is empty.
func NewStageView(cfg StageViewConfig) *StageView {
	if cfg.Onscreen == nil {
		panic("trellis: stage view requires an onscreen framebuffer")
	}
	if cfg.Layout.Empty() {
		panic("trellis: stage view layout is empty")
	}
	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	v := &StageView{
		name:               cfg.Name,
		layout:             cfg.Layout,
		scale:              scale,
		onscreen:           cfg.Onscreen,
		offscreen:          cfg.Offscreen,
		shadow:             cfg.Shadow,
		paintFlags:         cfg.PaintFlags,
		offscreenTransform: cfg.OffscreenTransform,
		history:            NewDamageHistory(),
	}
	if v.offscreen != nil && v.offscreenTransform == (Matrix{}) {
		ow, oh := v.offscreen.Size()
		dw, dh := v.onscreen.Size()
		v.offscreenTransform = ScaleMatrix(float64(dw)/float64(ow), float64(dh)/float64(oh), 1)
	}
	return v
}

// Name returns the view's name.
func (v *StageView) Name() string { return v.name }

// Layout returns the view's rectangle in stage coordinates.
func (v *StageView) Layout() image.Rectangle { return v.layout }

// Scale returns the framebuffer pixels per stage unit.
func (v *StageView) Scale() float64 { return v.scale }

// PaintFlags returns the view's default paint flags.
func (v *StageView) PaintFlags() PaintFlag { return v.paintFlags }

// SetPaintFlags replaces the view's default paint flags.
func (v *StageView) SetPaintFlags(f PaintFlag) { v.paintFlags = f }

// History returns the view's damage history.
func (v *StageView) History() *DamageHistory { return v.history }

// Onscreen returns the presentable framebuffer.
func (v *StageView) Onscreen() Framebuffer { return v.onscreen }

// Framebuffer returns the framebuffer the stage is painted into: the
// offscreen if there is one, else the shadow framebuffer, else the onscreen.
func (v *StageView) Framebuffer() Framebuffer {
	if v.offscreen != nil {
		return v.offscreen
	}
	if v.shadow != nil {
		return v.shadow
	}
	return v.onscreen
}

// paintsOnscreen reports whether the stage is painted straight into the
// onscreen.
func (v *StageView) paintsOnscreen() bool {
	return v.offscreen == nil && v.shadow == nil
}

// HasShadowfb reports whether the view paints through a shadow framebuffer.
func (v *StageView) HasShadowfb() bool { return v.shadow != nil }

// PresentedFrames returns the number of frames swapped on this view.
func (v *StageView) PresentedFrames() int64 { return v.presentedFrames }

// stageToFramebuffer maps stage coordinates to view framebuffer pixels.
func (v *StageView) stageToFramebuffer() Matrix {
	return ScaleMatrix(v.scale, v.scale, 1).Translate(float64(-v.layout.Min.X), float64(-v.layout.Min.Y), 0)
}

// Resize changes the view's layout and scale. Back buffer contents no
// longer match, so the damage history is invalidated and a full redraw is
// queued.
func (v *StageView) Resize(layout image.Rectangle, scale float64) {
	if scale == 0 {
		scale = 1
	}
	v.layout = layout
	v.scale = scale
	v.history.Invalidate()
	v.AddRedrawClip(nil)
}

// --- Redraw clip ---

// AddRedrawClip queues clip (in stage coordinates) for repaint. A nil clip
// queues the whole view. Empty clips are ignored. The pending clip collapses
// to a full redraw once it covers the whole layout.
func (v *StageView) AddRedrawClip(clip *image.Rectangle) {
	if v.hasRedrawClip && v.redrawClip == nil {
		return
	}
	if clip == nil || *clip == v.layout {
		v.redrawClip = nil
		v.hasRedrawClip = true
		return
	}
	if clip.Empty() {
		return
	}
	if v.redrawClip == nil {
		r := RegionFromRect(*clip)
		v.redrawClip = &r
	} else {
		v.redrawClip.UnionRect(*clip)
		if v.redrawClip.NumRects() == 1 && v.redrawClip.Extents() == v.layout {
			v.redrawClip = nil
		}
	}
	v.hasRedrawClip = true
}

// HasRedrawClip reports whether any repaint is pending.
func (v *StageView) HasRedrawClip() bool {
	return v.hasRedrawClip
}

// HasPendingUpdate reports whether the view needs a frame: either damage is
// queued or a scanout candidate is waiting.
func (v *StageView) HasPendingUpdate() bool {
	return v.hasRedrawClip || v.nextScanout != nil
}

// HasFullRedrawClip reports whether the whole view is pending repaint.
func (v *StageView) HasFullRedrawClip() bool {
	return v.hasRedrawClip && v.redrawClip == nil
}

// PeekRedrawClip returns the pending clip without consuming it. The second
// result is false when the whole view is pending or nothing is.
func (v *StageView) PeekRedrawClip() (Region, bool) {
	if v.redrawClip == nil {
		return Region{}, false
	}
	return v.redrawClip.Copy(), true
}

// TakeRedrawClip consumes the pending clip. It returns full = true when the
// whole view must be repainted.
func (v *StageView) TakeRedrawClip() (clip Region, full bool) {
	had := v.hasRedrawClip
	r := v.redrawClip
	v.hasRedrawClip = false
	v.redrawClip = nil
	if !had {
		return Region{}, false
	}
	if r == nil {
		return Region{}, true
	}
	return *r, false
}

// AccumulateRedrawClip moves the pending clip into the accumulated clip.
// Used when a frame was presented without compositing (direct scanout), so
// the skipped damage is painted by the next composited frame.
func (v *StageView) AccumulateRedrawClip() {
	clip, full := v.TakeRedrawClip()
	v.mergeAccumulated(clip, full)
}

func (v *StageView) mergeAccumulated(clip Region, full bool) {
	if v.hasAccumulatedClip && v.accumulatedClip == nil {
		return
	}
	if full {
		v.hasAccumulatedClip = true
		v.accumulatedClip = nil
		return
	}
	if clip.IsEmpty() {
		return
	}
	if v.accumulatedClip == nil {
		c := clip.Copy()
		v.accumulatedClip = &c
	} else {
		v.accumulatedClip.Union(clip)
	}
	v.hasAccumulatedClip = true
}

// TakeAccumulatedRedrawClip consumes both the accumulated and the pending
// clip and returns their union. full is true when the whole view must be
// repainted, including when nothing at all was queued.
func (v *StageView) TakeAccumulatedRedrawClip() (clip Region, full bool) {
	v.AccumulateRedrawClip()
	had := v.hasAccumulatedClip
	r := v.accumulatedClip
	v.hasAccumulatedClip = false
	v.accumulatedClip = nil
	if !had || r == nil {
		return Region{}, true
	}
	return *r, false
}

// --- Scanout ---

// AssignNextScanout makes buf the candidate for direct scanout on the next
// frame.
func (v *StageView) AssignNextScanout(buf ScanoutBuffer) {
	v.nextScanout = buf
}

// TakeScanout consumes the pending scanout candidate.
func (v *StageView) TakeScanout() ScanoutBuffer {
	buf := v.nextScanout
	v.nextScanout = nil
	return buf
}

// --- Onscreen mapping ---

// TransformRectToOnscreen maps a rectangle in view framebuffer pixels to
// onscreen pixels, rounding outward and clamping to the onscreen.
func (v *StageView) TransformRectToOnscreen(r image.Rectangle) image.Rectangle {
	if v.offscreen == nil {
		return r
	}
	w, h := v.onscreen.Size()
	out := v.offscreenTransform.TransformBox(BoxFromRect(r)).Rect()
	return out.Intersect(image.Rect(0, 0, w, h))
}

// transformRegionToOnscreen maps every rectangle of r to onscreen pixels.
func (v *StageView) transformRegionToOnscreen(r Region) Region {
	var out Region
	for _, rect := range r.rects {
		out.UnionRect(v.TransformRectToOnscreen(rect))
	}
	return out
}

// --- After paint ---

func (v *StageView) ensureOffscreenPipeline() {
	if v.offscreenPipeline != nil {
		return
	}
	p := NewPipeline()
	p.SetLayerTexture(0, v.offscreen.Texture())
	p.SetLayerFilters(FilterNearest, FilterNearest)
	v.offscreenPipeline = p
}

// InvalidateOffscreenBlitPipeline drops the cached pipeline used to draw
// the offscreen onto the onscreen.
func (v *StageView) InvalidateOffscreenBlitPipeline() {
	v.offscreenPipeline = nil
}

// AfterPaint composes the offscreen (if any) onto the shadow framebuffer or
// the onscreen, then copies the shadow framebuffer to the onscreen. Blit
// failures are logged and leave the onscreen as it was.
func (v *StageView) AfterPaint() {
	if v.offscreen != nil {
		v.ensureOffscreenPipeline()
		var dst Framebuffer = v.onscreen
		if v.shadow != nil {
			dst = v.shadow
		}
		w, h := v.offscreen.Size()
		dst.PushMatrix()
		dst.SetModelView(v.offscreenTransform)
		dst.DrawTexturedRectangle(v.offscreenPipeline, Box{0, 0, float64(w), float64(h)}, 0, 0, 1, 1)
		dst.PopMatrix()
	}

	if v.shadow != nil {
		w, h := v.onscreen.Size()
		if err := v.shadow.Blit(v.onscreen, 0, 0, 0, 0, w, h); err != nil {
			v.log().WithError(err).Warn("failed to blit shadow buffer")
		}
	}
}

// log resolves the package logger on each call so SetLogger reaches views
// built before it.
func (v *StageView) log() *logrus.Entry {
	return componentLog("view").WithField("view", v.name)
}
