package trellis

import (
	"errors"
	"image"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Construction ---

func TestNewStageViewDefaults(t *testing.T) {
	v, on := newTestView("main", image.Rect(0, 0, 640, 480), 0)
	assert.Equal(t, 1.0, v.Scale())
	assert.Equal(t, Framebuffer(on), v.Framebuffer())
	assert.True(t, v.paintsOnscreen())
	assert.False(t, v.HasPendingUpdate())
}

func TestNewStageViewPanics(t *testing.T) {
	expectPanic(t, "nil onscreen", func() {
		NewStageView(StageViewConfig{Layout: image.Rect(0, 0, 10, 10)})
	})
	expectPanic(t, "empty layout", func() {
		NewStageView(StageViewConfig{Onscreen: newFakeOnscreen(10, 10)})
	})
}

func TestStageViewFramebufferPrefersOffscreen(t *testing.T) {
	off := newFakeOffscreen("off", 20, 20)
	shadow := newFakeOffscreen("shadow", 10, 10)
	v := NewStageView(StageViewConfig{
		Layout:    image.Rect(0, 0, 10, 10),
		Onscreen:  newFakeOnscreen(10, 10),
		Offscreen: off,
		Shadow:    shadow,
	})
	assert.Equal(t, Framebuffer(off), v.Framebuffer())
	assert.True(t, v.HasShadowfb())
	assert.False(t, v.paintsOnscreen())
}

func TestStageToFramebuffer(t *testing.T) {
	v, _ := newTestView("right", image.Rect(100, 0, 200, 100), 1.5)
	got := v.stageToFramebuffer().TransformBox(Box{110, 10, 130, 30})
	assert.Equal(t, Box{15, 15, 45, 45}, got)
}

// --- Redraw clip ---

func TestAddRedrawClipUnions(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.AddRedrawClip(rectPtr(0, 0, 10, 10))
	v.AddRedrawClip(rectPtr(50, 50, 60, 60))

	clip, ok := v.PeekRedrawClip()
	require.True(t, ok)
	assert.True(t, clip.ContainsRect(image.Rect(0, 0, 10, 10)))
	assert.True(t, clip.ContainsRect(image.Rect(50, 50, 60, 60)))
	assert.False(t, v.HasFullRedrawClip())
}

func TestAddRedrawClipIgnoresEmpty(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.AddRedrawClip(rectPtr(5, 5, 5, 20))
	assert.False(t, v.HasRedrawClip())
}

func TestAddRedrawClipCollapsesToFull(t *testing.T) {
	tests := []struct {
		name  string
		clips []*image.Rectangle
	}{
		{"nil", []*image.Rectangle{nil}},
		{"layout", []*image.Rectangle{rectPtr(0, 0, 100, 100)}},
		{"halves", []*image.Rectangle{rectPtr(0, 0, 100, 50), rectPtr(0, 50, 100, 100)}},
		{"full then partial", []*image.Rectangle{nil, rectPtr(0, 0, 10, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
			for _, c := range tt.clips {
				v.AddRedrawClip(c)
			}
			assert.True(t, v.HasFullRedrawClip())
			_, ok := v.PeekRedrawClip()
			assert.False(t, ok)
		})
	}
}

func TestTakeRedrawClipConsumes(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.AddRedrawClip(rectPtr(0, 0, 10, 10))

	clip, full := v.TakeRedrawClip()
	assert.False(t, full)
	assert.Equal(t, image.Rect(0, 0, 10, 10), clip.Extents())
	assert.False(t, v.HasRedrawClip())

	clip, full = v.TakeRedrawClip()
	assert.False(t, full)
	assert.True(t, clip.IsEmpty())
}

func TestTakeAccumulatedRedrawClip(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.AddRedrawClip(rectPtr(0, 0, 10, 10))
	v.AccumulateRedrawClip()
	v.AddRedrawClip(rectPtr(20, 20, 30, 30))

	clip, full := v.TakeAccumulatedRedrawClip()
	require.False(t, full)
	assert.True(t, clip.ContainsRect(image.Rect(0, 0, 10, 10)))
	assert.True(t, clip.ContainsRect(image.Rect(20, 20, 30, 30)))
	assert.False(t, v.HasRedrawClip())
}

func TestTakeAccumulatedRedrawClipNothingQueuedIsFull(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	_, full := v.TakeAccumulatedRedrawClip()
	assert.True(t, full)
}

func TestAccumulatedFullWins(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.AddRedrawClip(nil)
	v.AccumulateRedrawClip()
	v.AddRedrawClip(rectPtr(0, 0, 10, 10))
	_, full := v.TakeAccumulatedRedrawClip()
	assert.True(t, full)
}

// --- Resize / scanout ---

func TestResizeInvalidatesHistory(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.History().Record(RegionFromRect(image.Rect(0, 0, 10, 10)))
	v.History().Step()

	v.Resize(image.Rect(0, 0, 200, 200), 2)

	assert.False(t, v.History().IsAgeValid(1))
	assert.True(t, v.HasFullRedrawClip())
	assert.Equal(t, 2.0, v.Scale())
	assert.Equal(t, image.Rect(0, 0, 200, 200), v.Layout())
}

func TestScanoutCandidateIsPendingUpdate(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	v.AssignNextScanout(fakeScanoutBuffer{})
	assert.True(t, v.HasPendingUpdate())
	assert.NotNil(t, v.TakeScanout())
	assert.Nil(t, v.TakeScanout())
	assert.False(t, v.HasPendingUpdate())
}

// --- Onscreen mapping ---

func TestTransformRectToOnscreenWithOffscreen(t *testing.T) {
	v := NewStageView(StageViewConfig{
		Layout:    image.Rect(0, 0, 100, 100),
		Scale:     2,
		Onscreen:  newFakeOnscreen(100, 100),
		Offscreen: newFakeOffscreen("off", 200, 200),
	})
	assert.Equal(t, image.Rect(5, 5, 10, 10), v.TransformRectToOnscreen(image.Rect(10, 10, 20, 20)))
	// Rounded outward and clamped.
	assert.Equal(t, image.Rect(0, 0, 2, 100), v.TransformRectToOnscreen(image.Rect(-10, -10, 3, 300)))
}

func TestTransformRectToOnscreenDirectIsIdentity(t *testing.T) {
	v, _ := newTestView("v", image.Rect(0, 0, 100, 100), 1)
	r := image.Rect(3, 4, 50, 60)
	assert.Equal(t, r, v.TransformRectToOnscreen(r))
}

// --- After paint ---

func TestAfterPaintDrawsOffscreenOntoOnscreen(t *testing.T) {
	on := newFakeOnscreen(100, 100)
	v := NewStageView(StageViewConfig{
		Layout:    image.Rect(0, 0, 100, 100),
		Scale:     2,
		Onscreen:  on,
		Offscreen: newFakeOffscreen("off", 200, 200),
	})
	v.AfterPaint()

	require.Len(t, on.calls, 1)
	got := on.calls[0].mvp.TransformBox(on.calls[0].box)
	assert.Equal(t, Box{0, 0, 100, 100}, got)
	assert.Equal(t, FilterNearest, on.calls[0].pipeline.MinFilter)
	assert.True(t, on.ModelView().IsIdentity())
}

func TestAfterPaintShadowBlit(t *testing.T) {
	on := newFakeOnscreen(64, 48)
	shadow := newFakeOffscreen("shadow", 64, 48)
	v := NewStageView(StageViewConfig{Layout: image.Rect(0, 0, 64, 48), Onscreen: on, Shadow: shadow})
	v.AfterPaint()
	require.Len(t, shadow.blits, 1)
	assert.Equal(t, [6]int{0, 0, 0, 0, 64, 48}, shadow.blits[0])
}

func TestAfterPaintShadowBlitFailureWarns(t *testing.T) {
	l, hook := logtest.NewNullLogger()
	SetLogger(l)
	defer SetLogger(nil)

	shadow := newFakeOffscreen("shadow", 10, 10)
	shadow.blitErr = errors.New("lost")
	v := NewStageView(StageViewConfig{Layout: image.Rect(0, 0, 10, 10), Onscreen: newFakeOnscreen(10, 10), Shadow: shadow})
	v.AfterPaint()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "failed to blit shadow buffer", hook.LastEntry().Message)
}
