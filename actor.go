package trellis

// Actor is anything the stage can paint. Stage-level actors report their
// geometry in stage coordinates.
type Actor interface {
	// PaintVolume returns the region the actor may touch when painted. The
	// second result is false when the volume is unknown; such actors are
	// never culled and damage the whole stage when they change.
	PaintVolume() (PaintVolume, bool)
	// AllocationBox returns the actor's layout box.
	AllocationBox() Box
	// ResourceScale returns the scale the actor's resources should be
	// rendered at, typically the largest scale of the views it is on.
	ResourceScale() float64
	// Stage returns the stage the actor is on, or nil.
	Stage() *Stage
	// Paint adds the nodes describing the actor to parent.
	Paint(parent *PaintNode, ctx *PaintContext)
}

// RectActor is a solid or textured rectangle. It is the simplest Actor and
// the one the example compositor is built from.
type RectActor struct {
	Name string

	box     Box
	color   Color
	texture Texture
	opacity float64
	visible bool

	stage  *Stage
	effect *OffscreenEffect

	// dirty is set when the actor's appearance changes and cleared when an
	// effect has captured it.
	dirty        bool
	inEffect     bool
	bypassEffect bool
}

// NewRectActor creates a visible, fully opaque rectangle.
func NewRectActor(name string, box Box, color Color) *RectActor {
	return &RectActor{
		Name:    name,
		box:     box,
		color:   color,
		opacity: 1,
		visible: true,
		dirty:   true,
	}
}

// Box returns the actor's rectangle in stage coordinates.
func (a *RectActor) Box() Box { return a.box }

// AllocationBox implements Actor.
func (a *RectActor) AllocationBox() Box { return a.box }

// PaintVolume implements Actor.
func (a *RectActor) PaintVolume() (PaintVolume, bool) {
	if !a.visible {
		return NewPaintVolume(), true
	}
	return PaintVolumeFromBox(a.box), true
}

// ResourceScale implements Actor.
func (a *RectActor) ResourceScale() float64 {
	if a.stage == nil {
		return 1
	}
	return a.stage.ResourceScaleFor(a.box)
}

// Stage implements Actor.
func (a *RectActor) Stage() *Stage { return a.stage }

func (a *RectActor) setStage(s *Stage) {
	a.stage = s
	a.dirty = true
}

// SetBox moves or resizes the actor, damaging the old and new areas.
func (a *RectActor) SetBox(b Box) {
	if a.box == b {
		return
	}
	a.QueueRedraw()
	a.box = b
	a.dirty = true
	a.QueueRedraw()
}

// SetPosition moves the actor keeping its size.
func (a *RectActor) SetPosition(x, y float64) {
	a.SetBox(Box{x, y, x + a.box.Width(), y + a.box.Height()})
}

// SetColor changes the fill color, or the tint when textured.
func (a *RectActor) SetColor(c Color) {
	if a.color == c {
		return
	}
	a.color = c
	a.dirty = true
	a.QueueRedraw()
}

// Color returns the fill color.
func (a *RectActor) Color() Color { return a.color }

// SetTexture sets the texture drawn over the box. Nil draws a solid fill.
func (a *RectActor) SetTexture(tex Texture) {
	a.texture = tex
	a.dirty = true
	a.QueueRedraw()
}

// SetOpacity sets the paint opacity in [0, 1].
func (a *RectActor) SetOpacity(o float64) {
	o = min(max(o, 0), 1)
	if a.opacity == o {
		return
	}
	a.opacity = o
	a.QueueRedraw()
}

// Opacity returns the paint opacity.
func (a *RectActor) Opacity() float64 { return a.opacity }

// SetVisible shows or hides the actor.
func (a *RectActor) SetVisible(visible bool) {
	if a.visible == visible {
		return
	}
	if a.visible {
		a.QueueRedraw()
	}
	a.visible = visible
	a.QueueRedraw()
}

// Visible reports whether the actor is shown.
func (a *RectActor) Visible() bool { return a.visible }

// SetEffect wraps the actor in an offscreen effect. Nil removes it.
func (a *RectActor) SetEffect(e *OffscreenEffect) {
	if a.effect == e {
		return
	}
	if a.effect != nil {
		a.effect.SetActor(nil)
	}
	a.effect = e
	if e != nil {
		e.SetActor(a)
	}
	a.dirty = true
	a.QueueRedraw()
}

// Effect returns the actor's effect, or nil.
func (a *RectActor) Effect() *OffscreenEffect { return a.effect }

// SetBypassEffect makes the attached effect paint the actor directly
// instead of through its capture. The effect stays attached.
func (a *RectActor) SetBypassEffect(bypass bool) {
	if a.bypassEffect == bypass {
		return
	}
	a.bypassEffect = bypass
	a.QueueRedraw()
}

// QueueRedraw damages the actor's current paint volume on its stage.
func (a *RectActor) QueueRedraw() {
	if a.stage == nil || !a.visible {
		return
	}
	pv, ok := a.PaintVolume()
	if !ok {
		a.stage.AddRedrawClip(nil)
		return
	}
	a.stage.QueueRedrawVolume(&pv, IdentityMatrix())
}

// Paint implements Actor. With an effect the effect decides how the content
// reaches the parent; painting through the effect's own actor node draws
// the content directly.
func (a *RectActor) Paint(parent *PaintNode, ctx *PaintContext) {
	if !a.visible {
		return
	}
	if a.effect != nil && !a.inEffect {
		a.inEffect = true
		defer func() { a.inEffect = false }()

		var flags EffectPaintFlag
		if a.dirty {
			flags |= EffectPaintActorDirty
		}
		if a.bypassEffect {
			flags |= EffectPaintBypass
		}
		a.effect.Paint(parent, ctx, flags)
		if a.effect.HasTarget() {
			a.dirty = false
		}
		return
	}
	a.paintContent(parent)
}

func (a *RectActor) paintContent(parent *PaintNode) {
	opacity := a.opacity
	if a.inEffect {
		// The effect applies opacity when compositing.
		opacity = 1
	}
	tint := Color{a.color.R, a.color.G, a.color.B, a.color.A * opacity}
	var n *PaintNode
	if a.texture != nil {
		n = NewTextureNode(a.texture, tint, FilterLinear, FilterLinear)
	} else {
		n = NewColorNode(tint)
	}
	n.AddRectangle(a.box)
	parent.AddChild(n)
}
