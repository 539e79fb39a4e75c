// Package trellis is the paint and damage pipeline of a compositing stage,
// with an [Ebitengine] backend.
//
// Trellis turns a stage of actors into frames for one or more outputs. Each
// frame, actors describe what they draw as a tree of [PaintNode]s, the tree
// is walked once, and the result is presented with as little repainting as
// the window system allows.
//
// # Quick start
//
// The simplest way to get started is [Run], which creates a window and game
// loop for you:
//
//	backend := trellis.NewEbitenBackend(trellis.FeatureBufferAge)
//	stage := trellis.NewStage(640, 480)
//	stage.AddView(trellis.NewStageView(trellis.StageViewConfig{
//		Name:     "main",
//		Layout:   image.Rect(0, 0, 640, 480),
//		Onscreen: backend.NewOnscreen(640, 480, 2, image.Point{}),
//	}))
//	stage.AddActor(trellis.NewRectActor("box", trellis.Box{X1: 10, Y1: 10, X2: 90, Y2: 50}, color))
//
//	r, err := trellis.NewRenderer(backend, stage, trellis.RendererOptions{CanClipRedraws: true})
//	// ...
//	trellis.Run(stage, r, &trellis.RunConfig{Title: "Stage", Width: 640, Height: 480})
//
// # Damage
//
// Changing an actor queues a redraw clip on every [StageView] it touches.
// [Renderer.RedrawView] decides between a full and a clipped redraw. When
// the onscreen reports buffer age, the damage of the frames the back buffer
// missed is replayed from the view's [DamageHistory] so stale pixels are
// repainted too.
//
// # Overlays
//
// The cursor, the drag-and-drop icon and drag-failed animations are
// [Overlay]s painted above the actors. Moving an overlay damages both where
// it was last painted and where it goes next.
//
// # Offscreen effects
//
// An [OffscreenEffect] captures an actor into a texture and composites the
// texture. The capture is replayed until the actor changes, the target size
// changes, or video memory is purged.
//
// # Configuration and logging
//
// [LoadConfig] reads a TOML file, by default from the XDG config directory.
// Logging goes through [logrus]; replace the logger with [SetLogger].
//
// # Debugging
//
// [Stage.SetDebugMode] logs per-frame redraw statistics at trace level, and
// [DebugPaintDamageRegion] tints what each frame swapped and queued.
// [Screenshot] saves what a view last presented. A [FrameScript] replays
// cursor moves, damage and screenshots without input.
//
// [Ebitengine]: https://ebitengine.org
// [logrus]: https://github.com/sirupsen/logrus
package trellis
