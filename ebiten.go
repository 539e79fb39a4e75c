package trellis

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/math/f64"
)

// whitePixel is a 1x1 white image used as the source for untextured draws.
var whitePixel *ebiten.Image

func ensureWhitePixel() *ebiten.Image {
	if whitePixel == nil {
		whitePixel = ebiten.NewImage(1, 1)
		whitePixel.Fill(color.White)
	}
	return whitePixel
}

// maxTextureSize bounds texture allocations.
const maxTextureSize = 8192

// --- Backend ---

// EbitenBackend implements Backend on Ebitengine images.
type EbitenBackend struct {
	features map[Feature]bool
	pool     texturePool
}

// NewEbitenBackend returns a backend reporting the given window-system
// features. Onscreens it creates emulate them.
func NewEbitenBackend(features ...Feature) *EbitenBackend {
	b := &EbitenBackend{
		features: make(map[Feature]bool, len(features)),
	}
	for _, f := range features {
		b.features[f] = true
	}
	return b
}

// HasFeature implements Backend.
func (b *EbitenBackend) HasFeature(f Feature) bool { return b.features[f] }

// NewTexture implements Backend. Textures come from a pool of power-of-two
// images; the returned texture covers exactly width x height pixels.
func (b *EbitenBackend) NewTexture(width, height int) (Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("texture %dx%d: %w", width, height, ErrAllocationFailed)
	}
	if width > maxTextureSize || height > maxTextureSize {
		return nil, fmt.Errorf("texture %dx%d exceeds %d: %w", width, height, maxTextureSize, ErrAllocationFailed)
	}
	img := b.pool.Acquire(width, height)
	return &ebitenTexture{
		backing: img,
		img:     img.SubImage(image.Rect(0, 0, width, height)).(*ebiten.Image),
	}, nil
}

// ReleaseTexture implements TextureReleaser.
func (b *EbitenBackend) ReleaseTexture(tex Texture) {
	t, ok := tex.(*ebitenTexture)
	if !ok || t.backing == nil {
		return
	}
	b.pool.Release(t.backing)
	t.backing = nil
}

// NewOffscreen implements Backend.
func (b *EbitenBackend) NewOffscreen(tex Texture) (Offscreen, error) {
	t, ok := tex.(*ebitenTexture)
	if !ok {
		return nil, fmt.Errorf("offscreen needs an ebiten texture, got %T: %w", tex, ErrAllocationFailed)
	}
	return &ebitenOffscreen{
		ebitenFramebuffer: newEbitenFramebuffer(t.img),
		tex:               t,
	}, nil
}

// NewOnscreen returns an onscreen of the given size with a swap chain of
// bufferCount back buffers. pos is where Present draws it in the window.
func (b *EbitenBackend) NewOnscreen(width, height, bufferCount int, pos image.Point) *EbitenOnscreen {
	bufferCount = max(bufferCount, 1)
	o := &EbitenOnscreen{
		Position:    pos,
		front:       newUnmanagedImage(width, height),
		buffers:     make([]*ebiten.Image, bufferCount),
		lastPresent: make([]int64, bufferCount),
		backend:     b,
	}
	for i := range o.buffers {
		o.buffers[i] = newUnmanagedImage(width, height)
	}
	o.ebitenFramebuffer = newEbitenFramebuffer(o.buffers[0])
	return o
}

func newUnmanagedImage(w, h int) *ebiten.Image {
	return ebiten.NewImageWithOptions(image.Rect(0, 0, w, h), &ebiten.NewImageOptions{Unmanaged: true})
}

// --- Texture pool ---

// texturePool manages reusable offscreen images keyed by power-of-two
// dimensions.
type texturePool struct {
	buckets map[uint64][]*ebiten.Image
}

func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared image with at least (w, h) pixels.
func (p *texturePool) Acquire(w, h int) *ebiten.Image {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	if stack := p.buckets[key]; len(stack) > 0 {
		img := stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		img.Clear()
		return img
	}
	return newUnmanagedImage(pw, ph)
}

// Release returns an image to the pool. It is cleared on the next Acquire.
func (p *texturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	key := poolKey(b.Dx(), b.Dy())
	p.buckets[key] = append(p.buckets[key], img)
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}

// --- Texture ---

type ebitenTexture struct {
	backing *ebiten.Image // pooled image, nil once released
	img     *ebiten.Image // exact-size view of backing
}

func (t *ebitenTexture) Width() int  { return t.img.Bounds().Dx() }
func (t *ebitenTexture) Height() int { return t.img.Bounds().Dy() }

// NewEbitenTexture wraps an existing image, for example a decoded cursor
// sprite, as a Texture.
func NewEbitenTexture(img *ebiten.Image) Texture {
	return &ebitenTexture{img: img}
}

// --- Framebuffer ---

type ebitenFramebuffer struct {
	img        *ebiten.Image
	modelview  MatrixStack
	projection Matrix
	clips      []Region // in framebuffer pixels; empty stack means unclipped

	verts []ebiten.Vertex
	inds  []uint32
}

func newEbitenFramebuffer(img *ebiten.Image) *ebitenFramebuffer {
	return &ebitenFramebuffer{img: img, projection: IdentityMatrix()}
}

func (f *ebitenFramebuffer) bounds() image.Rectangle { return f.img.Bounds() }

func (f *ebitenFramebuffer) Size() (int, int) {
	b := f.bounds()
	return b.Dx(), b.Dy()
}

func (f *ebitenFramebuffer) PushMatrix()           { f.modelview.Push() }
func (f *ebitenFramebuffer) PopMatrix()            { f.modelview.Pop() }
func (f *ebitenFramebuffer) Transform(m Matrix)    { f.modelview.Multiply(m) }
func (f *ebitenFramebuffer) ModelView() Matrix     { return f.modelview.Top() }
func (f *ebitenFramebuffer) SetModelView(m Matrix) { f.modelview.Set(m) }
func (f *ebitenFramebuffer) Projection() Matrix    { return f.projection }
func (f *ebitenFramebuffer) SetProjection(m Matrix) {
	f.projection = m
}

func (f *ebitenFramebuffer) mvp() Matrix {
	return f.projection.Mul(f.modelview.Top())
}

// clipRects returns the rectangles drawing is limited to.
func (f *ebitenFramebuffer) clipRects() []image.Rectangle {
	if len(f.clips) == 0 {
		return []image.Rectangle{f.bounds()}
	}
	return f.clips[len(f.clips)-1].rects
}

func (f *ebitenFramebuffer) pushClip(r Region) {
	if len(f.clips) > 0 {
		r.Intersect(f.clips[len(f.clips)-1])
	} else {
		r.IntersectRect(f.bounds())
	}
	f.clips = append(f.clips, r)
}

func (f *ebitenFramebuffer) PushRectangleClip(b Box) {
	f.pushClip(RegionFromRect(f.mvp().TransformBox(b).Rect()))
}

func (f *ebitenFramebuffer) PushRegionClip(r Region) {
	f.pushClip(r.Copy())
}

func (f *ebitenFramebuffer) PopClip() {
	if len(f.clips) == 0 {
		panic("trellis: clip stack underflow")
	}
	f.clips = f.clips[:len(f.clips)-1]
}

func (f *ebitenFramebuffer) Clear(c Color) {
	fill := color.NRGBA64{
		R: uint16(c.R * 0xffff),
		G: uint16(c.G * 0xffff),
		B: uint16(c.B * 0xffff),
		A: uint16(c.A * 0xffff),
	}
	for _, r := range f.clipRects() {
		if r.Empty() {
			continue
		}
		f.img.SubImage(r).(*ebiten.Image).Fill(fill)
	}
}

// appendQuad adds one rectangle to the pending batch.
func (f *ebitenFramebuffer) appendQuad(m Matrix, b Box, sx1, sy1, sx2, sy2 float32, c Color) {
	base := uint32(len(f.verts))
	corners := [4][4]float64{
		{b.X1, b.Y1, 0, 0},
		{b.X2, b.Y1, 1, 0},
		{b.X1, b.Y2, 0, 1},
		{b.X2, b.Y2, 1, 1},
	}
	for _, cn := range corners {
		p := m.TransformPoint(f64.Vec3{cn[0], cn[1], 0})
		sx := sx1 + (sx2-sx1)*float32(cn[2])
		sy := sy1 + (sy2-sy1)*float32(cn[3])
		f.verts = append(f.verts, ebiten.Vertex{
			DstX:   float32(p[0]),
			DstY:   float32(p[1]),
			SrcX:   sx,
			SrcY:   sy,
			ColorR: float32(c.R),
			ColorG: float32(c.G),
			ColorB: float32(c.B),
			ColorA: float32(c.A),
		})
	}
	// Two triangles: TL-TR-BL, TR-BR-BL
	f.inds = append(f.inds, base+0, base+1, base+2, base+1, base+3, base+2)
}

// source returns the image sampled by p and its size in texels.
func source(p *Pipeline) (*ebiten.Image, float32, float32) {
	if t, ok := p.LayerTexture(0).(*ebitenTexture); ok && t.img != nil {
		b := t.img.Bounds()
		return t.img, float32(b.Dx()), float32(b.Dy())
	}
	return ensureWhitePixel(), 1, 1
}

// texelCoords maps normalized texture coordinates to source texels.
func texelCoords(p *Pipeline, tx1, ty1, tx2, ty2 float64) (float32, float32, float32, float32) {
	_, w, h := source(p)
	return float32(tx1) * w, float32(ty1) * h, float32(tx2) * w, float32(ty2) * h
}

// flush submits the pending batch once per clip rectangle.
func (f *ebitenFramebuffer) flush(p *Pipeline) {
	if len(f.verts) == 0 {
		return
	}
	src, _, _ := source(p)
	var op ebiten.DrawTrianglesOptions
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	if p.MagFilter == FilterNearest {
		op.Filter = ebiten.FilterNearest
	} else {
		op.Filter = ebiten.FilterLinear
	}
	for _, r := range f.clipRects() {
		if r.Empty() {
			continue
		}
		dst := f.img
		if r != f.bounds() {
			dst = f.img.SubImage(r).(*ebiten.Image)
		}
		dst.DrawTriangles32(f.verts, f.inds, src, &op)
	}
	f.verts = f.verts[:0]
	f.inds = f.inds[:0]
}

func (f *ebitenFramebuffer) DrawRectangle(p *Pipeline, b Box) {
	f.DrawTexturedRectangle(p, b, 0, 0, 1, 1)
}

func (f *ebitenFramebuffer) DrawTexturedRectangle(p *Pipeline, b Box, tx1, ty1, tx2, ty2 float64) {
	sx1, sy1, sx2, sy2 := texelCoords(p, tx1, ty1, tx2, ty2)
	f.appendQuad(f.mvp(), b, sx1, sy1, sx2, sy2, p.Color)
	f.flush(p)
}

func (f *ebitenFramebuffer) DrawTexturedRectangles(p *Pipeline, coords []float64) {
	m := f.mvp()
	for i := 0; i+8 <= len(coords); i += 8 {
		c := coords[i : i+8]
		sx1, sy1, sx2, sy2 := texelCoords(p, c[4], c[5], c[6], c[7])
		f.appendQuad(m, Box{c[0], c[1], c[2], c[3]}, sx1, sy1, sx2, sy2, p.Color)
	}
	f.flush(p)
}

// DrawMultiTexturedRectangle samples only the first layer; Ebitengine
// draws from a single source image.
func (f *ebitenFramebuffer) DrawMultiTexturedRectangle(p *Pipeline, b Box, texCoords []float64) {
	if len(texCoords) < 4 {
		f.DrawRectangle(p, b)
		return
	}
	f.DrawTexturedRectangle(p, b, texCoords[0], texCoords[1], texCoords[2], texCoords[3])
}

func (f *ebitenFramebuffer) DrawPrimitive(p *Pipeline, prim Primitive) {
	if len(prim.Vertices) == 0 || len(prim.Indices) == 0 {
		return
	}
	m := f.mvp()
	_, w, h := source(p)
	base := uint32(len(f.verts))
	for i, v := range prim.Vertices {
		pt := m.TransformPoint(v)
		var sx, sy float32
		if 2*i+1 < len(prim.TexCoords) {
			sx = float32(prim.TexCoords[2*i]) * w
			sy = float32(prim.TexCoords[2*i+1]) * h
		}
		f.verts = append(f.verts, ebiten.Vertex{
			DstX:   float32(pt[0]),
			DstY:   float32(pt[1]),
			SrcX:   sx,
			SrcY:   sy,
			ColorR: float32(p.Color.R),
			ColorG: float32(p.Color.G),
			ColorB: float32(p.Color.B),
			ColorA: float32(p.Color.A),
		})
	}
	for _, idx := range prim.Indices {
		f.inds = append(f.inds, base+idx)
	}
	f.flush(p)
}

func (f *ebitenFramebuffer) Blit(dst Framebuffer, srcX, srcY, dstX, dstY, width, height int) error {
	target := imageOf(dst)
	if target == nil {
		return fmt.Errorf("blit to %T: %w", dst, ErrBlitUnsupported)
	}
	src := f.img.SubImage(image.Rect(srcX, srcY, srcX+width, srcY+height)).(*ebiten.Image)
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	op.GeoM.Translate(float64(dstX), float64(dstY))
	target.DrawImage(src, &op)
	return nil
}

func imageOf(fb Framebuffer) *ebiten.Image {
	switch t := fb.(type) {
	case *ebitenFramebuffer:
		return t.img
	case *ebitenOffscreen:
		return t.img
	case *EbitenOnscreen:
		return t.img
	}
	return nil
}

// --- Offscreen ---

type ebitenOffscreen struct {
	*ebitenFramebuffer
	tex *ebitenTexture
}

func (o *ebitenOffscreen) Texture() Texture { return o.tex }

// --- Onscreen ---

// EbitenOnscreen emulates a window-system surface: a ring of back buffers
// with buffer-age tracking and a front image that Present draws into the
// Ebitengine screen.
type EbitenOnscreen struct {
	*ebitenFramebuffer

	// Position is where Present draws the front image.
	Position image.Point
	// YInverted makes the onscreen report y-inverted damage.
	YInverted bool

	front       *ebiten.Image
	buffers     []*ebiten.Image
	lastPresent []int64 // swap number each buffer was last presented at
	current     int
	swaps       int64

	queuedDamage []image.Rectangle
	lastInfo     FrameInfo

	backend *EbitenBackend
}

// BufferAge implements Onscreen. Without FeatureBufferAge it always
// reports 0.
func (o *EbitenOnscreen) BufferAge() int {
	if !o.backend.HasFeature(FeatureBufferAge) {
		return 0
	}
	last := o.lastPresent[o.current]
	if last == 0 {
		return 0
	}
	return int(o.swaps - last + 1)
}

// IsYInverted implements Onscreen.
func (o *EbitenOnscreen) IsYInverted() bool { return o.YInverted }

// QueueDamageRegion implements Onscreen.
func (o *EbitenOnscreen) QueueDamageRegion(rects []image.Rectangle) {
	o.queuedDamage = append(o.queuedDamage[:0], rects...)
}

// QueuedDamage returns the rectangles from the last QueueDamageRegion.
func (o *EbitenOnscreen) QueuedDamage() []image.Rectangle { return o.queuedDamage }

// LastFrameInfo returns the frame info of the most recent swap.
func (o *EbitenOnscreen) LastFrameInfo() FrameInfo { return o.lastInfo }

func (o *EbitenOnscreen) copyToFront(rects []image.Rectangle) {
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	if len(rects) == 0 {
		o.front.DrawImage(o.img, &op)
		return
	}
	for _, r := range rects {
		r = r.Intersect(o.img.Bounds())
		if r.Empty() {
			continue
		}
		op.GeoM.Reset()
		op.GeoM.Translate(float64(r.Min.X), float64(r.Min.Y))
		o.front.DrawImage(o.img.SubImage(r).(*ebiten.Image), &op)
	}
}

// SwapRegion implements Onscreen. The back buffer is kept, so its age
// becomes 1.
func (o *EbitenOnscreen) SwapRegion(rects []image.Rectangle, info *FrameInfo) {
	o.copyToFront(rects)
	o.swaps++
	o.lastPresent[o.current] = o.swaps
	o.lastInfo = *info
	o.log().WithField("rects", len(rects)).Trace("swap region")
}

// SwapBuffersWithDamage implements Onscreen. The whole back buffer is
// presented and the next buffer in the ring becomes the back buffer.
func (o *EbitenOnscreen) SwapBuffersWithDamage(rects []image.Rectangle, info *FrameInfo) {
	o.copyToFront(nil)
	o.swaps++
	o.lastPresent[o.current] = o.swaps
	o.current = (o.current + 1) % len(o.buffers)
	o.img = o.buffers[o.current]
	o.lastInfo = *info
	o.log().WithFields(logrus.Fields{
		"rects": len(rects),
		"next":  o.current,
	}).Trace("swap buffers with damage")
}

// DirectScanout implements Onscreen. Ebitengine always composites.
func (o *EbitenOnscreen) DirectScanout(buf ScanoutBuffer, info *FrameInfo) error {
	return fmt.Errorf("ebiten onscreen: %w", ErrScanoutInhibited)
}

// Present draws the last presented frame into screen at Position.
func (o *EbitenOnscreen) Present(screen *ebiten.Image) {
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(float64(o.Position.X), float64(o.Position.Y))
	screen.DrawImage(o.front, &op)
}

// ReadPixels implements PixelReader with the last presented frame.
func (o *EbitenOnscreen) ReadPixels(pix []byte) {
	o.front.ReadPixels(pix)
}

// Deallocate frees the onscreen's images.
func (o *EbitenOnscreen) Deallocate() {
	o.front.Deallocate()
	for _, b := range o.buffers {
		b.Deallocate()
	}
}

func (o *EbitenOnscreen) log() *logrus.Entry { return componentLog("onscreen") }
