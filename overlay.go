package trellis

import (
	"image"
	"math"

	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"
)

// Overlay is a textured rectangle painted above the scene, such as the
// cursor or a drag-and-drop icon. It remembers where it was last painted so
// that moving it damages both the old and the new position.
type Overlay struct {
	texture  Texture
	pipeline *Pipeline
	enabled  bool

	currentRect     Box
	previousRect    Box
	previousIsValid bool
}

// NewOverlay returns an overlay with no texture.
func NewOverlay() *Overlay {
	return &Overlay{pipeline: NewPipeline()}
}

// Set updates the overlay's texture and rectangle. The overlay is enabled
// while it has a texture.
func (o *Overlay) Set(tex Texture, rect Box) {
	if o.texture != tex {
		o.texture = tex
		o.pipeline.SetLayerTexture(0, tex)
		o.enabled = tex != nil
	}
	o.currentRect = rect
}

// Texture returns the overlay's texture, or nil.
func (o *Overlay) Texture() Texture { return o.texture }

// Enabled reports whether the overlay has a texture.
func (o *Overlay) Enabled() bool { return o.enabled }

// CurrentRect returns where the overlay will be painted next.
func (o *Overlay) CurrentRect() Box { return o.currentRect }

// PreviousRect returns where the overlay was last painted. The second
// result is false if that area has already been damaged.
func (o *Overlay) PreviousRect() (Box, bool) { return o.previousRect, o.previousIsValid }

func (o *Overlay) paint(parent *PaintNode, visible bool, flags PaintFlag) {
	if o.texture == nil {
		return
	}
	if !visible && flags&PaintForceCursors == 0 {
		return
	}
	n := NewPipelineNode(o.pipeline)
	n.Name = "overlay"
	n.AddRectangle(o.currentRect)
	parent.AddChild(n)

	if !o.previousIsValid || o.previousRect != o.currentRect {
		o.previousRect = o.currentRect
		o.previousIsValid = true
	}
}

// --- Stage overlay management ---

// queueRedrawRect damages rect on every view that shows overlays. The rect
// is grown to whole pixels, plus one pixel on each side when it straddles a
// pixel boundary, to cover filtering.
func (s *Stage) queueRedrawRect(rect Box) {
	x := math.Floor(rect.X1)
	y := math.Floor(rect.Y1)
	w := math.Ceil(rect.Width())
	h := math.Ceil(rect.Height())
	w += math.Ceil(rect.X1-x) * 2
	h += math.Ceil(rect.Y1-y) * 2
	clip := image.Rect(int(x), int(y), int(x+w), int(y+h))

	for _, v := range s.views {
		if v.PaintFlags()&PaintNoCursors != 0 {
			continue
		}
		vc := clip.Intersect(v.Layout())
		if vc.Empty() {
			continue
		}
		v.AddRedrawClip(&vc)
	}
}

// queueRedrawForOverlay damages where o was last painted and where it is
// going to be painted.
func (s *Stage) queueRedrawForOverlay(o *Overlay) {
	if o.previousIsValid {
		s.queueRedrawRect(o.previousRect)
		o.previousIsValid = false
	}
	if o.enabled && (o != s.cursor || s.cursorVisible) {
		s.queueRedrawRect(o.currentRect)
	}
}

// SetCursor sets the cursor image and rectangle in stage coordinates. A nil
// texture hides the cursor.
func (s *Stage) SetCursor(tex Texture, rect Box) {
	s.cursor.Set(tex, rect)
	s.queueRedrawForOverlay(s.cursor)
}

// SetCursorVisible shows or hides the cursor overlay.
func (s *Stage) SetCursorVisible(visible bool) {
	if s.cursorVisible == visible {
		return
	}
	s.cursorVisible = visible
	if visible {
		s.queueRedrawForOverlay(s.cursor)
	} else if s.cursor.previousIsValid {
		s.queueRedrawRect(s.cursor.previousRect)
		s.cursor.previousIsValid = false
	}
}

// CursorOverlay returns the cursor overlay.
func (s *Stage) CursorOverlay() *Overlay { return s.cursor }

// SetDnDSurface sets the drag-and-drop icon. A nil texture removes it.
func (s *Stage) SetDnDSurface(tex Texture, rect Box) {
	s.dnd.Set(tex, rect)
	s.queueRedrawForOverlay(s.dnd)
}

// DnDOverlay returns the drag-and-drop overlay.
func (s *Stage) DnDOverlay() *Overlay { return s.dnd }

// StartDragFailedAnimation animates a dropped surface from rect back to
// (toX, toY). Animations advance with Update and are removed when done.
func (s *Stage) StartDragFailedAnimation(tex Texture, rect Box, toX, toY float64) *DragFailedAnimation {
	a := newDragFailedAnimation(tex, rect, toX, toY)
	s.dragFailed = append(s.dragFailed, a)
	s.queueRedrawForOverlay(a.overlay)
	s.log().WithFields(logrus.Fields{
		"from_x": rect.X1,
		"from_y": rect.Y1,
		"to_x":   toX,
		"to_y":   toY,
	}).Debug("drag failed animation started")
	return a
}

// NumDragFailedAnimations returns the number of running animations.
func (s *Stage) NumDragFailedAnimations() int { return len(s.dragFailed) }

// DragFailedAnimations returns the running animations, oldest first.
func (s *Stage) DragFailedAnimations() []*DragFailedAnimation {
	return append([]*DragFailedAnimation(nil), s.dragFailed...)
}

// Update advances the stage's animations by dt seconds.
func (s *Stage) Update(dt float32) {
	if len(s.dragFailed) == 0 {
		return
	}
	for _, a := range s.dragFailed {
		a.update(dt)
		s.queueRedrawForOverlay(a.overlay)
	}
	s.dragFailed = sliceutils.Filter(s.dragFailed, func(a *DragFailedAnimation) bool {
		return !a.Done()
	})
}

// paintOverlays adds every overlay to parent in stacking order: drag-failed
// animations oldest first, then the DnD icon, then the cursor on top.
func (s *Stage) paintOverlays(parent *PaintNode, flags PaintFlag) {
	for _, a := range s.dragFailed {
		a.overlay.paint(parent, true, flags)
	}
	s.dnd.paint(parent, true, flags)
	s.cursor.paint(parent, s.cursorVisible, flags)
}
