package trellis

import (
	"image"
)

// --- Recording backend used across tests ---

type fakeTexture struct {
	w, h int
}

func (t *fakeTexture) Width() int  { return t.w }
func (t *fakeTexture) Height() int { return t.h }

type drawCall struct {
	kind     string // "rect", "texrect", "texrects", "multitex", "primitive"
	pipeline *Pipeline
	box      Box
	coords   []float64
	mvp      Matrix
	clipped  bool
}

type fakeFramebuffer struct {
	name       string
	w, h       int
	modelview  MatrixStack
	projection Matrix
	clips      []Region
	rectClips  []Box

	calls  []drawCall
	clears []Color
	blits  [][6]int

	blitErr error
}

func newFakeFramebuffer(name string, w, h int) *fakeFramebuffer {
	return &fakeFramebuffer{name: name, w: w, h: h, projection: IdentityMatrix()}
}

func (f *fakeFramebuffer) Size() (int, int)       { return f.w, f.h }
func (f *fakeFramebuffer) Clear(c Color)          { f.clears = append(f.clears, c) }
func (f *fakeFramebuffer) PushMatrix()            { f.modelview.Push() }
func (f *fakeFramebuffer) PopMatrix()             { f.modelview.Pop() }
func (f *fakeFramebuffer) Transform(m Matrix)     { f.modelview.Multiply(m) }
func (f *fakeFramebuffer) ModelView() Matrix      { return f.modelview.Top() }
func (f *fakeFramebuffer) SetModelView(m Matrix)  { f.modelview.Set(m) }
func (f *fakeFramebuffer) Projection() Matrix     { return f.projection }
func (f *fakeFramebuffer) SetProjection(m Matrix) { f.projection = m }

func (f *fakeFramebuffer) PushRectangleClip(b Box) {
	f.rectClips = append(f.rectClips, b)
	f.clips = append(f.clips, RegionFromRect(f.projection.Mul(f.modelview.Top()).TransformBox(b).Rect()))
}

func (f *fakeFramebuffer) PushRegionClip(r Region) { f.clips = append(f.clips, r.Copy()) }

func (f *fakeFramebuffer) PopClip() {
	if len(f.clips) == 0 {
		panic("fake: clip underflow")
	}
	f.clips = f.clips[:len(f.clips)-1]
}

func (f *fakeFramebuffer) record(kind string, p *Pipeline, b Box, coords []float64) {
	f.calls = append(f.calls, drawCall{
		kind:     kind,
		pipeline: p,
		box:      b,
		coords:   append([]float64(nil), coords...),
		mvp:      f.projection.Mul(f.modelview.Top()),
		clipped:  len(f.clips) > 0,
	})
}

func (f *fakeFramebuffer) DrawRectangle(p *Pipeline, b Box) { f.record("rect", p, b, nil) }

func (f *fakeFramebuffer) DrawTexturedRectangle(p *Pipeline, b Box, tx1, ty1, tx2, ty2 float64) {
	f.record("texrect", p, b, []float64{tx1, ty1, tx2, ty2})
}

func (f *fakeFramebuffer) DrawTexturedRectangles(p *Pipeline, coords []float64) {
	f.record("texrects", p, Box{}, coords)
}

func (f *fakeFramebuffer) DrawMultiTexturedRectangle(p *Pipeline, b Box, texCoords []float64) {
	f.record("multitex", p, b, texCoords)
}

func (f *fakeFramebuffer) DrawPrimitive(p *Pipeline, prim Primitive) {
	f.record("primitive", p, Box{}, nil)
}

func (f *fakeFramebuffer) Blit(dst Framebuffer, srcX, srcY, dstX, dstY, width, height int) error {
	if f.blitErr != nil {
		return f.blitErr
	}
	f.blits = append(f.blits, [6]int{srcX, srcY, dstX, dstY, width, height})
	return nil
}

// boxes returns the boxes of the recorded single-rectangle draws.
func (f *fakeFramebuffer) boxes() []Box {
	var out []Box
	for _, c := range f.calls {
		if c.kind == "rect" || c.kind == "texrect" || c.kind == "multitex" {
			out = append(out, c.box)
		}
	}
	return out
}

type fakeOffscreen struct {
	*fakeFramebuffer
	tex *fakeTexture
}

func (o *fakeOffscreen) Texture() Texture { return o.tex }

func newFakeOffscreen(name string, w, h int) *fakeOffscreen {
	return &fakeOffscreen{fakeFramebuffer: newFakeFramebuffer(name, w, h), tex: &fakeTexture{w, h}}
}

type fakeSwap struct {
	region bool // SwapRegion rather than SwapBuffersWithDamage
	rects  []image.Rectangle
	info   FrameInfo
}

type fakeOnscreen struct {
	*fakeFramebuffer

	age       int
	yInverted bool

	queuedDamage [][]image.Rectangle
	swaps        []fakeSwap

	scanoutErr error
	scanouts   []FrameInfo
}

func newFakeOnscreen(w, h int) *fakeOnscreen {
	return &fakeOnscreen{fakeFramebuffer: newFakeFramebuffer("onscreen", w, h)}
}

func (o *fakeOnscreen) BufferAge() int    { return o.age }
func (o *fakeOnscreen) IsYInverted() bool { return o.yInverted }

func (o *fakeOnscreen) QueueDamageRegion(rects []image.Rectangle) {
	o.queuedDamage = append(o.queuedDamage, append([]image.Rectangle(nil), rects...))
}

func (o *fakeOnscreen) SwapRegion(rects []image.Rectangle, info *FrameInfo) {
	o.swaps = append(o.swaps, fakeSwap{region: true, rects: rects, info: *info})
}

func (o *fakeOnscreen) SwapBuffersWithDamage(rects []image.Rectangle, info *FrameInfo) {
	o.swaps = append(o.swaps, fakeSwap{rects: rects, info: *info})
}

func (o *fakeOnscreen) DirectScanout(buf ScanoutBuffer, info *FrameInfo) error {
	if o.scanoutErr != nil {
		return o.scanoutErr
	}
	o.scanouts = append(o.scanouts, *info)
	return nil
}

type fakeScanoutBuffer struct{}

func (fakeScanoutBuffer) ScanoutSize() (int, int) { return 64, 64 }

type fakeBackend struct {
	features map[Feature]bool

	textures   []*fakeTexture
	offscreens []*fakeOffscreen
	released   int

	textureErr   error
	offscreenErr error
}

func newFakeBackend(features ...Feature) *fakeBackend {
	b := &fakeBackend{features: map[Feature]bool{}}
	for _, f := range features {
		b.features[f] = true
	}
	return b
}

func (b *fakeBackend) HasFeature(f Feature) bool { return b.features[f] }

func (b *fakeBackend) NewTexture(w, h int) (Texture, error) {
	if b.textureErr != nil {
		return nil, b.textureErr
	}
	t := &fakeTexture{w, h}
	b.textures = append(b.textures, t)
	return t, nil
}

func (b *fakeBackend) NewOffscreen(tex Texture) (Offscreen, error) {
	if b.offscreenErr != nil {
		return nil, b.offscreenErr
	}
	ft := tex.(*fakeTexture)
	o := &fakeOffscreen{fakeFramebuffer: newFakeFramebuffer("offscreen", ft.w, ft.h), tex: ft}
	b.offscreens = append(b.offscreens, o)
	return o, nil
}

func (b *fakeBackend) ReleaseTexture(tex Texture) { b.released++ }

// --- Scene helpers ---

// newTestView returns a stage view over a fake onscreen covering layout at
// the given scale.
func newTestView(name string, layout image.Rectangle, scale float64) (*StageView, *fakeOnscreen) {
	on := newFakeOnscreen(int(float64(layout.Dx())*scale), int(float64(layout.Dy())*scale))
	v := NewStageView(StageViewConfig{Name: name, Layout: layout, Scale: scale, Onscreen: on})
	return v, on
}

// warmUp pretends the view has already presented enough frames for clipped
// redraws to be allowed.
func warmUp(v *StageView) {
	v.presentedFrames = clippedRedrawWarmupFrames + 1
}

func rectPtr(x0, y0, x1, y1 int) *image.Rectangle {
	r := image.Rect(x0, y0, x1, y1)
	return &r
}
