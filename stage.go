package trellis

import (
	"image"
	"math"

	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

// WatchPhase is a point in a view's paint where stage watches run.
type WatchPhase uint8

const (
	WatchBeforePaint       WatchPhase = iota // before any node is painted
	WatchAfterActorPaint                     // after actors, before overlays
	WatchAfterOverlayPaint                   // after overlays
	WatchAfterPaint                          // after everything
	numWatchPhases
)

// WatchFunc is called at a paint phase with the view being painted.
type WatchFunc func(stage *Stage, view *StageView, ctx *PaintContext)

// StageWatch is a registered watch. Keep it to remove the watch later.
type StageWatch struct {
	view  *StageView
	phase WatchPhase
	fn    WatchFunc
}

type purgeListener struct {
	id int
	fn func()
}

// Stage is the root of the scene. It owns the top-level actors, the views
// that show it, and the overlays painted above it.
type Stage struct {
	// ClearColor is painted under the actors.
	ClearColor Color

	width  int
	height int

	actors []Actor
	views  []*StageView

	watches [numWatchPhases][]*StageWatch

	cursor        *Overlay
	cursorVisible bool
	dnd           *Overlay
	dragFailed    []*DragFailedAnimation

	paintFlags PaintFlag

	purgeListeners []purgeListener
	nextPurgeID    int

	debug bool
}

// NewStage creates an empty stage of the given size in stage coordinates.
func NewStage(width, height int) *Stage {
	return &Stage{
		ClearColor:    Color{0, 0, 0, 1},
		width:         width,
		height:        height,
		cursor:        NewOverlay(),
		cursorVisible: true,
		dnd:           NewOverlay(),
	}
}

// Size returns the stage size.
func (s *Stage) Size() (width, height int) { return s.width, s.height }

// SetDebugMode enables or disables debug checks and verbose logging.
func (s *Stage) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
	if enabled {
		Logger().SetLevel(logrus.DebugLevel)
	}
}

// PaintFlags returns the stage-wide paint flags.
func (s *Stage) PaintFlags() PaintFlag { return s.paintFlags }

// SetPaintFlags replaces the stage-wide paint flags. They are combined with
// each view's own flags.
func (s *Stage) SetPaintFlags(f PaintFlag) {
	if s.paintFlags == f {
		return
	}
	s.paintFlags = f
	s.queueRedrawForOverlay(s.cursor)
}

// --- Views ---

// AddView adds a view and queues a full redraw of it.
func (s *Stage) AddView(v *StageView) {
	s.views = append(s.views, v)
	v.AddRedrawClip(nil)
}

// Views returns the stage's views.
func (s *Stage) Views() []*StageView {
	return s.views
}

// ResourceScaleFor returns the largest scale of the views b is visible on,
// or 1 if it is on none.
func (s *Stage) ResourceScaleFor(b Box) float64 {
	scale := 0.0
	r := b.Rect()
	for _, v := range s.views {
		if r.Overlaps(v.Layout()) {
			scale = max(scale, v.Scale())
		}
	}
	if scale == 0 {
		return 1
	}
	return scale
}

// --- Actors ---

// AddActor adds a top-level actor, painted above those added before it.
func (s *Stage) AddActor(a Actor) {
	s.actors = append(s.actors, a)
	if ra, ok := a.(*RectActor); ok {
		ra.setStage(s)
		ra.QueueRedraw()
		return
	}
	s.queueActorRedraw(a)
}

// RemoveActor removes a from the stage and damages where it was.
func (s *Stage) RemoveActor(a Actor) {
	for i, o := range s.actors {
		if o != a {
			continue
		}
		s.queueActorRedraw(a)
		s.actors = append(s.actors[:i], s.actors[i+1:]...)
		if ra, ok := a.(*RectActor); ok {
			ra.setStage(nil)
		}
		return
	}
}

// Actors returns the top-level actors in paint order.
func (s *Stage) Actors() []Actor {
	return s.actors
}

func (s *Stage) queueActorRedraw(a Actor) {
	pv, ok := a.PaintVolume()
	if !ok {
		s.AddRedrawClip(nil)
		return
	}
	s.QueueRedrawVolume(&pv, IdentityMatrix())
}

// --- Redraw clip ---

// AddRedrawClip queues clip (stage coordinates) on every view it touches.
// A nil clip queues every view in full.
func (s *Stage) AddRedrawClip(clip *image.Rectangle) {
	for _, v := range s.views {
		if clip == nil {
			v.AddRedrawClip(nil)
			continue
		}
		vc := clip.Intersect(v.Layout())
		if vc.Empty() {
			continue
		}
		v.AddRedrawClip(&vc)
	}
}

// QueueFullRedraw queues every view in full.
func (s *Stage) QueueFullRedraw() {
	s.AddRedrawClip(nil)
}

// QueueRedrawVolume damages the stage area covered by pv, which is given in
// the space toStage maps from.
func (s *Stage) QueueRedrawVolume(pv *PaintVolume, toStage Matrix) {
	if pv.IsEmpty() {
		return
	}
	b := pv.StagePaintBox(toStage)
	x1 := max(math.Floor(b.X1), 0)
	y1 := max(math.Floor(b.Y1), 0)
	x2 := min(math.Ceil(b.X2), float64(s.width))
	y2 := min(math.Ceil(b.Y2), float64(s.height))
	if x2 <= x1 || y2 <= y1 {
		return
	}
	clip := image.Rect(int(x1), int(y1), int(x2), int(y2))
	s.AddRedrawClip(&clip)
}

// HasPendingRedraw reports whether any view needs a frame.
func (s *Stage) HasPendingRedraw() bool {
	for _, v := range s.views {
		if v.HasPendingUpdate() {
			return true
		}
	}
	return false
}

// --- Watches ---

// AddWatch registers fn to run at phase while view is painted. A nil view
// matches every view.
func (s *Stage) AddWatch(view *StageView, phase WatchPhase, fn WatchFunc) *StageWatch {
	if phase >= numWatchPhases {
		panic("trellis: invalid watch phase")
	}
	w := &StageWatch{view: view, phase: phase, fn: fn}
	s.watches[phase] = append(s.watches[phase], w)
	return w
}

// RemoveWatch unregisters w.
func (s *Stage) RemoveWatch(w *StageWatch) {
	if w == nil {
		return
	}
	s.watches[w.phase] = sliceutils.Filter(s.watches[w.phase], func(o *StageWatch) bool {
		return o != w
	})
}

func (s *Stage) runWatches(phase WatchPhase, view *StageView, ctx *PaintContext) {
	for _, w := range s.watches[phase] {
		if w.view != nil && w.view != view {
			continue
		}
		w.fn(s, view, ctx)
	}
}

// --- Video memory ---

// OnVideoMemoryPurged subscribes fn to video memory purge notifications and
// returns an id for RemoveVideoMemoryPurgedListener.
func (s *Stage) OnVideoMemoryPurged(fn func()) int {
	s.nextPurgeID++
	s.purgeListeners = append(s.purgeListeners, purgeListener{id: s.nextPurgeID, fn: fn})
	return s.nextPurgeID
}

// RemoveVideoMemoryPurgedListener unsubscribes the listener with id.
func (s *Stage) RemoveVideoMemoryPurgedListener(id int) {
	s.purgeListeners = sliceutils.Filter(s.purgeListeners, func(l purgeListener) bool {
		return l.id != id
	})
}

// NotifyVideoMemoryPurged tells every listener that GPU memory was lost,
// then queues a full redraw.
func (s *Stage) NotifyVideoMemoryPurged() {
	s.log().Warn("video memory purged")
	for _, l := range s.purgeListeners {
		l.fn()
	}
	s.QueueFullRedraw()
}

// --- Paint ---

// PaintView paints the stage into view's framebuffer. redrawClip is the
// stage-space area being repainted; nil means the whole view.
func (s *Stage) PaintView(view *StageView, redrawClip *Region, frame *Frame) {
	fb := view.Framebuffer()
	flags := s.paintFlags | view.PaintFlags()
	ctx := NewPaintContext(fb, view, redrawClip, flags)
	ctx.frame = frame

	s.runWatches(WatchBeforePaint, view, ctx)

	root := NewRootNode(fb, s.ClearColor, true)
	xform := NewTransformNode(view.stageToFramebuffer())
	root.AddChild(xform)

	cullBox := BoxFromRect(view.Layout())
	if clip, ok := ctx.RedrawClip(); ok && !clip.IsEmpty() {
		cullBox = BoxFromRect(clip.Extents())
	}
	frustum := NewBoxFrustum(cullBox, -1e4, 1e4)

	culled := 0
	for _, a := range s.actors {
		if pv, ok := a.PaintVolume(); ok {
			if pv.IsEmpty() || pv.Cull(frustum) == CullOut {
				culled++
				continue
			}
		}
		xform.AddChild(NewActorNode(a, ctx))
	}
	root.Paint(ctx)

	s.runWatches(WatchAfterActorPaint, view, ctx)

	var overlayRoot *PaintNode
	if flags&PaintNoCursors == 0 {
		overlayRoot = NewRootNode(fb, ColorTransparent, false)
		overlayXform := NewTransformNode(view.stageToFramebuffer())
		overlayRoot.AddChild(overlayXform)
		s.paintOverlays(overlayXform, flags)
		overlayRoot.Paint(ctx)
	}

	s.runWatches(WatchAfterOverlayPaint, view, ctx)
	s.runWatches(WatchAfterPaint, view, ctx)

	if s.debug {
		fields := logrus.Fields{
			"view":      view.Name(),
			"actors":    len(s.actors),
			"culled":    culled,
			"paint_ops": countPaintOps(root),
		}
		if overlayRoot != nil {
			fields["overlay_ops"] = countPaintOps(overlayRoot)
		}
		s.log().WithFields(fields).Trace("paint view")
	}
}

func (s *Stage) log() *logrus.Entry { return componentLog("stage") }
