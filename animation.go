package trellis

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// DragFailedDuration is how long a failed drag takes to slide back.
const DragFailedDuration = 500 * time.Millisecond

// tweenGroup animates a set of float64 fields together. Call Update(dt)
// each frame; the group writes the current values into the fields.
type tweenGroup struct {
	tweens []*gween.Tween
	fields []*float64
	Done   bool
}

// add animates *field from its current value to `to`.
func (g *tweenGroup) add(field *float64, to float64, duration time.Duration, fn ease.TweenFunc) {
	g.tweens = append(g.tweens, gween.New(float32(*field), float32(to), float32(duration.Seconds()), fn))
	g.fields = append(g.fields, field)
}

// Update advances all tweens by dt seconds and writes the values to the
// target fields.
func (g *tweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	allDone := true
	for i, tw := range g.tweens {
		val, finished := tw.Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
}

// DragFailedAnimation slides a dropped surface back to where the drag
// started while fading it out.
type DragFailedAnimation struct {
	overlay *Overlay
	texture Texture

	width  float64
	height float64

	x     float64
	y     float64
	alpha float64

	tweens tweenGroup
}

func newDragFailedAnimation(tex Texture, from Box, toX, toY float64) *DragFailedAnimation {
	a := &DragFailedAnimation{
		overlay: NewOverlay(),
		texture: tex,
		width:   from.Width(),
		height:  from.Height(),
		x:       from.X1,
		y:       from.Y1,
		alpha:   1,
	}
	a.tweens.add(&a.x, toX, DragFailedDuration, ease.OutCubic)
	a.tweens.add(&a.y, toY, DragFailedDuration, ease.OutCubic)
	a.tweens.add(&a.alpha, 0, DragFailedDuration, ease.OutCubic)
	a.apply()
	return a
}

// Overlay returns the overlay the animation draws with.
func (a *DragFailedAnimation) Overlay() *Overlay { return a.overlay }

// Rect returns the surface's current rectangle.
func (a *DragFailedAnimation) Rect() Box {
	return Box{a.x, a.y, a.x + a.width, a.y + a.height}
}

// Alpha returns the current opacity.
func (a *DragFailedAnimation) Alpha() float64 { return a.alpha }

// Done reports whether the animation has finished.
func (a *DragFailedAnimation) Done() bool { return a.tweens.Done }

func (a *DragFailedAnimation) update(dt float32) {
	a.tweens.Update(dt)
	if a.tweens.Done {
		a.overlay.Set(nil, a.Rect())
		return
	}
	a.apply()
}

// apply pushes the animated values into the overlay. The alpha fades the
// texture through the pipeline's constant color.
func (a *DragFailedAnimation) apply() {
	a.overlay.Set(a.texture, a.Rect())
	a.overlay.pipeline.Color = Color{a.alpha, a.alpha, a.alpha, a.alpha}
}
