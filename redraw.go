package trellis

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"
)

// DebugFlag changes how the renderer redraws, for debugging damage tracking.
type DebugFlag uint8

const (
	// DebugDisableClippedRedraws forces every frame to be a full redraw.
	DebugDisableClippedRedraws DebugFlag = 1 << iota
	// DebugPaintDamageRegion repaints whole views and tints what would have
	// been swapped (blue) and what was queued for redraw (red).
	DebugPaintDamageRegion
)

// clippedRedrawWarmupFrames is the number of frames an onscreen must have
// presented before clipped redraws are used. Some drivers produce junk in
// the first frames after startup.
const clippedRedrawWarmupFrames = 3

// Frame is the frame clock's token for one update of a view.
type Frame struct {
	TargetPresentationTime time.Time
}

// RendererOptions configures a Renderer.
type RendererOptions struct {
	// CanClipRedraws reports whether the stage window supports presenting
	// partial updates at all.
	CanClipRedraws bool
	DebugFlags     DebugFlag
}

// RedrawResult describes what one RedrawView call did.
type RedrawResult struct {
	View       string
	ScannedOut bool
	Clipped    bool
	BufferAge  int
	// FBClip is the repainted region in view framebuffer pixels, including
	// damage replayed from history.
	FBClip Region
	// RedrawClip is the painted region in stage coordinates. It always
	// covers FBClip.
	RedrawClip Region
	// SwapRegion is the region handed to the swap, in onscreen pixels.
	// Empty means the whole buffer.
	SwapRegion     Region
	SwapWithDamage bool
	// FrameCounter is the global frame counter assigned to the swap.
	FrameCounter int64
}

// Renderer redraws the views of a stage: it picks between full and clipped
// redraws, replays buffer-age damage, paints, and presents.
type Renderer struct {
	backend        Backend
	stage          *Stage
	canClipRedraws bool
	debugFlags     DebugFlag

	globalFrameCounter int64

	overlayBlue *Pipeline
	overlayRed  *Pipeline
}

// NewRenderer returns a renderer drawing stage through backend.
func NewRenderer(backend Backend, stage *Stage, opts RendererOptions) (*Renderer, error) {
	if backend == nil {
		return nil, ErrNoGPUContext
	}
	if stage == nil {
		return nil, fmt.Errorf("trellis: renderer requires a stage")
	}
	return &Renderer{
		backend:        backend,
		stage:          stage,
		canClipRedraws: opts.CanClipRedraws,
		debugFlags:     opts.DebugFlags,
	}, nil
}

// DebugFlags returns the active debug flags.
func (r *Renderer) DebugFlags() DebugFlag { return r.debugFlags }

// SetDebugFlags replaces the debug flags.
func (r *Renderer) SetDebugFlags(f DebugFlag) { r.debugFlags = f }

// GlobalFrameCounter returns the counter the next swap will carry.
func (r *Renderer) GlobalFrameCounter() int64 { return r.globalFrameCounter }

// RedrawAll redraws every view that has a pending update.
func (r *Renderer) RedrawAll(frame *Frame) []RedrawResult {
	var results []RedrawResult
	for _, v := range r.stage.Views() {
		if !v.HasPendingUpdate() {
			continue
		}
		results = append(results, r.RedrawView(v, frame))
	}
	return results
}

// RedrawView produces one frame for view. If the view holds a scanout
// candidate it is presented directly and painting is skipped; otherwise the
// stage is painted and swapped.
func (r *Renderer) RedrawView(view *StageView, frame *Frame) RedrawResult {
	if frame == nil {
		frame = &Frame{}
	}
	if buf := view.TakeScanout(); buf != nil {
		if counter, ok := r.scanoutView(view, buf, frame); ok {
			view.AccumulateRedrawClip()
			r.debugLog(redrawStats{view: view.Name(), scannedOut: true})
			return RedrawResult{View: view.Name(), ScannedOut: true, FrameCounter: counter}
		}
	}
	return r.redrawViewPrimary(view, frame)
}

func (r *Renderer) scanoutView(view *StageView, buf ScanoutBuffer, frame *Frame) (int64, bool) {
	log := r.log().WithField("view", view.Name())
	onscreen, ok := view.Onscreen().(Onscreen)
	if !ok {
		log.Warn("direct scanout needs an onscreen framebuffer")
		return 0, false
	}
	info := &FrameInfo{
		GlobalFrameCounter:     r.globalFrameCounter,
		TargetPresentationTime: frame.TargetPresentationTime,
	}
	if err := onscreen.DirectScanout(buf, info); err != nil {
		if !errors.Is(err, ErrScanoutInhibited) {
			log.WithError(err).Warn("failed to scan out client buffer")
		}
		return 0, false
	}
	counter := r.globalFrameCounter
	r.globalFrameCounter++
	view.presentedFrames++
	return counter, true
}

func (r *Renderer) shouldUseClippedRedraw(view *StageView, isFullRedraw, hasBufferAge, validHistory bool) bool {
	if isFullRedraw {
		return false
	}
	if r.debugFlags&DebugDisableClippedRedraws != 0 {
		return false
	}
	if _, ok := view.Onscreen().(Onscreen); !ok {
		return true
	}
	if hasBufferAge && !validHistory {
		r.log().WithField("view", view.Name()).Debug("invalid back buffer age, forcing full redraw")
		return false
	}
	canUseClipped := r.canClipRedraws && (r.backend.HasFeature(FeatureSwapRegion) || hasBufferAge)
	warmedUp := view.presentedFrames > clippedRedrawWarmupFrames
	return warmedUp && canUseClipped
}

func (r *Renderer) redrawViewPrimary(view *StageView, frame *Frame) RedrawResult {
	log := r.log().WithField("view", view.Name())
	layout := view.Layout()
	scale := view.Scale()
	fb := view.Framebuffer()
	fbWidth, fbHeight := fb.Size()

	onscreen, isOnscreen := view.Onscreen().(Onscreen)
	hasBufferAge := isOnscreen && r.backend.HasFeature(FeatureBufferAge)

	redrawClip, isFullRedraw := view.TakeAccumulatedRedrawClip()

	history := view.History()
	bufferAge := 0
	validHistory := false
	if hasBufferAge {
		bufferAge = onscreen.BufferAge()
		validHistory = history.IsAgeValid(bufferAge)
	}

	useClipped := r.shouldUseClippedRedraw(view, isFullRedraw, hasBufferAge, validHistory)
	paintDamage := r.debugFlags&DebugPaintDamageRegion != 0

	var (
		fbClip     Region
		queuedClip *Region
	)
	if useClipped {
		fbClip = offsetScaleAndClamp(redrawClip, -layout.Min.X, -layout.Min.Y, scale)
		if paintDamage {
			q := scaleOffsetAndClamp(fbClip, 1/scale, layout.Min.X, layout.Min.Y)
			queuedClip = &q
		}
	} else {
		fbClip = RegionFromRect(image.Rect(0, 0, fbWidth, fbHeight))
		redrawClip = RegionFromRect(layout)
		if paintDamage {
			q := redrawClip.Copy()
			queuedClip = &q
		}
	}

	result := RedrawResult{View: view.Name(), Clipped: useClipped, BufferAge: bufferAge}
	if fbClip.IsEmpty() {
		log.Warn("empty framebuffer clip, skipping frame")
		return result
	}

	// The swap region is this frame's own damage. Shadowfb views widen it to
	// the history union below, since the shadow blit rewrites that much of
	// the onscreen.
	var swapRegion Region
	if useClipped {
		swapRegion = fbClip.Copy()
	}

	swapWithDamage := false
	if hasBufferAge {
		history.Record(fbClip)
		if useClipped {
			last := min(bufferAge, DamageHistoryLength-1)
			for age := 1; age <= last; age++ {
				fbClip.Union(history.Lookup(age))
			}
			log.WithFields(logrus.Fields{
				"age":   bufferAge,
				"rects": fbClip.NumRects(),
			}).Debug("reusing back buffer")
			swapWithDamage = true
		}
		history.Step()
	}
	if useClipped && view.HasShadowfb() {
		swapRegion = fbClip.Copy()
	}

	if useClipped {
		// The history union may have grown the clip and scaling may have
		// snapped it outward; re-derive the stage clip so it covers
		// everything that is about to be drawn.
		redrawClip = scaleOffsetAndClamp(fbClip, 1/scale, layout.Min.X, layout.Min.Y)
	}

	switch {
	case paintDamage:
		whole := RegionFromRect(layout)
		r.paintStage(view, &whole, frame)
	case useClipped:
		r.queueDamageRegion(view, fbClip)
		fb.PushRegionClip(fbClip)
		r.paintStage(view, &redrawClip, frame)
		fb.PopClip()
	default:
		log.Trace("unclipped stage paint")
		r.paintStage(view, &redrawClip, frame)
	}

	if queuedClip != nil {
		swapInStage := scaleOffsetAndClamp(swapRegion, 1/scale, layout.Min.X, layout.Min.Y)
		swapInStage.Subtract(*queuedClip)
		r.paintDamageRegion(view, swapInStage, *queuedClip)
	}

	if !view.paintsOnscreen() && !swapRegion.IsEmpty() {
		swapRegion = view.transformRegionToOnscreen(swapRegion)
	}

	result.FBClip = fbClip
	result.RedrawClip = redrawClip
	result.SwapRegion = swapRegion
	result.SwapWithDamage = swapWithDamage
	result.FrameCounter = r.swapFramebuffer(view, swapRegion, swapWithDamage, frame)

	r.debugLog(redrawStats{
		view:      view.Name(),
		clipped:   useClipped,
		bufferAge: bufferAge,
		fbRects:   fbClip.NumRects(),
		swapRects: swapRegion.NumRects(),
	})
	return result
}

// paintStage paints the stage into the view's framebuffer and composes the
// result onto the onscreen.
func (r *Renderer) paintStage(view *StageView, redrawClip *Region, frame *Frame) {
	r.stage.PaintView(view, redrawClip, frame)
	view.AfterPaint()
}

// queueDamageRegion hands the about-to-change pixels to the window system,
// in onscreen pixels with y flipped when the onscreen is y-inverted.
func (r *Renderer) queueDamageRegion(view *StageView, damage Region) {
	if damage.IsEmpty() {
		return
	}
	onscreen, ok := view.Onscreen().(Onscreen)
	if !ok {
		return
	}
	_, fbHeight := onscreen.Size()
	rects := make([]image.Rectangle, 0, damage.NumRects())
	for _, rect := range damage.rects {
		rect = view.TransformRectToOnscreen(rect)
		if onscreen.IsYInverted() {
			y := fbHeight - rect.Min.Y - rect.Dy()
			rect = image.Rect(rect.Min.X, y, rect.Max.X, y+rect.Dy())
		}
		rects = append(rects, rect)
	}
	onscreen.QueueDamageRegion(rects)
}

// paintDamageRegion tints swapRegion blue and queuedClip red, both in stage
// coordinates, on top of the view's framebuffer.
func (r *Renderer) paintDamageRegion(view *StageView, swapRegion, queuedClip Region) {
	fb := view.Framebuffer()
	if r.overlayBlue == nil {
		r.overlayBlue = NewPipeline()
		r.overlayBlue.Color = Color{0, 0, 0.2, 0.2}
	}
	if r.overlayRed == nil {
		r.overlayRed = NewPipeline()
		r.overlayRed.Color = Color{0.2, 0, 0, 0.2}
	}

	fb.PushMatrix()
	fb.SetModelView(view.stageToFramebuffer())
	for _, rect := range swapRegion.rects {
		fb.DrawRectangle(r.overlayBlue, BoxFromRect(rect))
	}
	for _, rect := range queuedClip.rects {
		fb.DrawRectangle(r.overlayRed, BoxFromRect(rect))
	}
	fb.PopMatrix()
}

// swapFramebuffer presents the view and returns the frame counter assigned
// to the swap.
func (r *Renderer) swapFramebuffer(view *StageView, swapRegion Region, swapWithDamage bool, frame *Frame) int64 {
	log := r.log().WithField("view", view.Name())
	counter := r.globalFrameCounter
	r.globalFrameCounter++
	view.presentedFrames++

	onscreen, ok := view.Onscreen().(Onscreen)
	if !ok {
		log.Trace("fake offscreen swap")
		return counter
	}

	info := &FrameInfo{
		GlobalFrameCounter:     counter,
		TargetPresentationTime: frame.TargetPresentationTime,
	}
	rects := swapRegion.Rects()
	if len(rects) > 0 && !swapWithDamage {
		log.Trace("swap region")
		onscreen.SwapRegion(rects, info)
		return counter
	}
	log.Trace("swap buffers with damage")
	onscreen.SwapBuffersWithDamage(rects, info)
	return counter
}

func (r *Renderer) log() *logrus.Entry { return componentLog("renderer") }
