package trellis

import (
	"errors"
	"image"
	"time"

	"golang.org/x/image/math/f64"
)

// Errors reported by backends. Callers classify failures with errors.Is.
var (
	// ErrNoGPUContext is returned when a renderer is created without a backend.
	ErrNoGPUContext = errors.New("trellis: no GPU context")
	// ErrAllocationFailed wraps framebuffer and texture allocation failures.
	ErrAllocationFailed = errors.New("trellis: allocation failed")
	// ErrScanoutInhibited means direct scanout is not possible right now and the
	// caller should composite normally. It is not worth a warning.
	ErrScanoutInhibited = errors.New("trellis: scanout inhibited")
	// ErrScanoutFailed wraps any other direct scanout failure.
	ErrScanoutFailed = errors.New("trellis: scanout failed")
	// ErrBlitUnsupported is returned by framebuffers that cannot blit to the
	// requested destination.
	ErrBlitUnsupported = errors.New("trellis: blit unsupported")
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs when a color is bound to a pipeline.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default pipeline color (no tint).
var ColorWhite = Color{1, 1, 1, 1}

// ColorTransparent clears to fully transparent black.
var ColorTransparent = Color{}

// Premultiply returns c with R, G and B multiplied by A.
func (c Color) Premultiply() Color {
	return Color{c.R * c.A, c.G * c.A, c.B * c.A, c.A}
}

// Feature is a window-system capability a backend may report.
type Feature uint8

const (
	FeatureBufferAge  Feature = iota // onscreen can report back-buffer age
	FeatureSwapRegion                // onscreen can present a sub-region of the back buffer
)

// Filter selects texture sampling.
type Filter uint8

const (
	FilterLinear  Filter = iota // bilinear sampling
	FilterNearest               // nearest-neighbor sampling
)

// Texture is a GPU image owned by a backend.
type Texture interface {
	Width() int
	Height() int
}

// Pipeline describes how geometry is shaded: a constant color modulating up
// to a handful of texture layers. The zero value draws solid white.
type Pipeline struct {
	Color     Color // premultiplied
	MinFilter Filter
	MagFilter Filter

	layers []Texture
}

// NewPipeline returns a pipeline with a white color.
func NewPipeline() *Pipeline {
	return &Pipeline{Color: ColorWhite}
}

// Copy returns a shallow copy of p with its own layer slice.
func (p *Pipeline) Copy() *Pipeline {
	cp := *p
	cp.layers = append([]Texture(nil), p.layers...)
	return &cp
}

// SetLayerTexture binds tex to layer i, growing the layer list as needed.
func (p *Pipeline) SetLayerTexture(i int, tex Texture) {
	for len(p.layers) <= i {
		p.layers = append(p.layers, nil)
	}
	p.layers[i] = tex
}

// LayerTexture returns the texture bound to layer i, or nil.
func (p *Pipeline) LayerTexture(i int) Texture {
	if i < 0 || i >= len(p.layers) {
		return nil
	}
	return p.layers[i]
}

// NumLayers returns the number of layers.
func (p *Pipeline) NumLayers() int {
	return len(p.layers)
}

// SetLayerFilters sets the sampling filters used for every layer.
func (p *Pipeline) SetLayerFilters(min, mag Filter) {
	p.MinFilter = min
	p.MagFilter = mag
}

// Primitive is an opaque triangle list in framebuffer model space.
type Primitive struct {
	Vertices  []f64.Vec3
	TexCoords []float64 // optional, two per vertex
	Indices   []uint32
}

// ScanoutBuffer is a client buffer that may be shown directly without
// compositing.
type ScanoutBuffer interface {
	ScanoutSize() (width, height int)
}

// FrameInfo accompanies every swap and scanout.
type FrameInfo struct {
	GlobalFrameCounter     int64
	TargetPresentationTime time.Time
}

// Framebuffer is a render target with a modelview stack and a clip stack.
// Coordinates passed to draw calls are transformed by Projection * ModelView
// into framebuffer pixels.
type Framebuffer interface {
	Size() (width, height int)
	Clear(c Color)

	PushMatrix()
	PopMatrix()
	Transform(m Matrix)
	ModelView() Matrix
	SetModelView(m Matrix)
	Projection() Matrix
	SetProjection(m Matrix)

	// Clip rectangles are in model space; clip regions are in framebuffer pixels.
	PushRectangleClip(b Box)
	PushRegionClip(r Region)
	PopClip()

	DrawRectangle(p *Pipeline, b Box)
	DrawTexturedRectangle(p *Pipeline, b Box, tx1, ty1, tx2, ty2 float64)
	// DrawTexturedRectangles draws a batch of rectangles, eight floats each
	// (x1, y1, x2, y2, tx1, ty1, tx2, ty2), with a single draw call.
	DrawTexturedRectangles(p *Pipeline, coords []float64)
	// DrawMultiTexturedRectangle draws one rectangle with four texture
	// coordinates per pipeline layer.
	DrawMultiTexturedRectangle(p *Pipeline, b Box, texCoords []float64)
	DrawPrimitive(p *Pipeline, prim Primitive)

	// Blit copies a pixel rectangle from this framebuffer into dst.
	Blit(dst Framebuffer, srcX, srcY, dstX, dstY, width, height int) error
}

// Offscreen is a framebuffer that renders into a texture.
type Offscreen interface {
	Framebuffer
	Texture() Texture
}

// Onscreen is a presentable framebuffer.
type Onscreen interface {
	Framebuffer

	// BufferAge returns how many frames old the current back buffer's
	// contents are, or 0 if unknown.
	BufferAge() int
	// IsYInverted reports whether damage rectangles must be flipped
	// vertically before being handed to the window system.
	IsYInverted() bool
	// QueueDamageRegion tells the window system which pixels are about to
	// change. Rectangles are in window-system orientation.
	QueueDamageRegion(rects []image.Rectangle)
	// SwapRegion presents only rects, copying them from the back buffer.
	SwapRegion(rects []image.Rectangle, info *FrameInfo)
	// SwapBuffersWithDamage presents the whole back buffer, passing rects as
	// a hint of what changed. Empty rects means everything changed.
	SwapBuffersWithDamage(rects []image.Rectangle, info *FrameInfo)
	// DirectScanout presents buf without compositing.
	DirectScanout(buf ScanoutBuffer, info *FrameInfo) error
}

// Backend allocates GPU resources and reports window-system features.
type Backend interface {
	HasFeature(f Feature) bool
	NewTexture(width, height int) (Texture, error)
	NewOffscreen(tex Texture) (Offscreen, error)
}

// TextureReleaser is implemented by backends that recycle textures.
// Callers hand back textures they no longer reference.
type TextureReleaser interface {
	ReleaseTexture(tex Texture)
}
