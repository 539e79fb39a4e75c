package trellis

import (
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrameScript(t *testing.T) {
	data := []byte(`{
		"steps": [
			{"action": "cursor", "x": 100, "y": 200},
			{"action": "wait", "frames": 3},
			{"action": "damage", "x": 1, "y": 2, "w": 3, "h": 4},
			{"action": "screenshot", "label": "after-move"}
		]
	}`)

	sc, err := LoadFrameScript(data)
	require.NoError(t, err)
	require.Len(t, sc.steps, 4)
	assert.Equal(t, "cursor", sc.steps[0].Action)
	assert.Equal(t, 100.0, sc.steps[0].X)
	assert.Equal(t, 3, sc.steps[1].Frames)
	assert.Equal(t, image.Rect(1, 2, 4, 6), sc.steps[2].rect())
	assert.Equal(t, "screenshots", sc.Dir)
}

func TestLoadFrameScriptRejects(t *testing.T) {
	for name, data := range map[string]string{
		"invalid json":   `not json`,
		"no steps":       `{"steps": []}`,
		"unknown action": `{"steps": [{"action": "click"}]}`,
	} {
		_, err := LoadFrameScript([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestFrameScriptMovesCursorAndDamages(t *testing.T) {
	s := NewStage(200, 200)
	view, _ := newTestView("v", image.Rect(0, 0, 200, 200), 1)
	s.AddView(view)
	s.SetCursor(&fakeTexture{10, 10}, Box{0, 0, 10, 10})
	view.TakeRedrawClip()

	sc, err := LoadFrameScript([]byte(`{"steps": [
		{"action": "cursor", "x": 50, "y": 60},
		{"action": "damage", "x": 150, "y": 150, "w": 5, "h": 5}
	]}`))
	require.NoError(t, err)

	sc.step(s)
	assert.Equal(t, Box{50, 60, 60, 70}, s.CursorOverlay().CurrentRect())
	assert.False(t, sc.Done())

	view.TakeRedrawClip()
	sc.step(s)
	clip, ok := view.PeekRedrawClip()
	require.True(t, ok)
	assert.Equal(t, image.Rect(150, 150, 155, 155), clip.Extents())
	assert.True(t, sc.Done())
}

func TestFrameScriptWait(t *testing.T) {
	s := NewStage(10, 10)
	sc, err := LoadFrameScript([]byte(`{"steps": [
		{"action": "wait", "frames": 3},
		{"action": "full_redraw"}
	]}`))
	require.NoError(t, err)

	steps := 0
	for !sc.Done() && steps < 10 {
		sc.step(s)
		steps++
	}
	// wait takes three frames, full_redraw one
	assert.Equal(t, 4, steps)
}

func TestFrameScriptDragFailed(t *testing.T) {
	s := NewStage(200, 200)
	sc, err := LoadFrameScript([]byte(`{"steps": [{"action": "drag_failed", "x": 100, "y": 100}]}`))
	require.NoError(t, err)

	sc.step(s)
	assert.Zero(t, s.NumDragFailedAnimations(), "no cursor texture to animate")

	sc, err = LoadFrameScript([]byte(`{"steps": [{"action": "drag_failed", "x": 100, "y": 100}]}`))
	require.NoError(t, err)
	s.SetCursor(&fakeTexture{24, 24}, Box{0, 0, 24, 24})
	sc.step(s)
	require.Equal(t, 1, s.NumDragFailedAnimations())
	assert.Equal(t, Box{100, 100, 124, 124}, s.DragFailedAnimations()[0].Rect())
}

func TestFrameScriptScreenshotsAfterDraw(t *testing.T) {
	s := NewStage(2, 1)
	on := &readableOnscreen{fakeOnscreen: newFakeOnscreen(2, 1), pix: make([]byte, 8)}
	s.AddView(NewStageView(StageViewConfig{Name: "v", Layout: image.Rect(0, 0, 2, 1), Onscreen: on}))

	sc, err := LoadFrameScript([]byte(`{"steps": [{"action": "screenshot", "label": "one"}]}`))
	require.NoError(t, err)
	sc.Dir = t.TempDir()

	sc.step(s)
	assert.False(t, sc.Done(), "screenshot still pending")

	require.NoError(t, sc.flushScreenshots(s))
	assert.True(t, sc.Done())
	entries, err := os.ReadDir(sc.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
