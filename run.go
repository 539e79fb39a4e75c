package trellis

import (
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// RunConfig configures Run.
type RunConfig struct {
	Title  string
	Width  int
	Height int
	// Update, if set, is called every tick before the stage advances.
	// Returning an error stops the loop.
	Update func() error
	// ShowFPS prints the frame and tick rates over the presented views.
	ShowFPS bool
	// Script, if set, is stepped every tick before Update. The loop ends
	// once it is done.
	Script *FrameScript
}

// game adapts a stage and renderer to ebiten.Game.
type game struct {
	stage    *Stage
	renderer *Renderer
	cfg      *RunConfig
}

func (g *game) Update() error {
	if sc := g.cfg.Script; sc != nil {
		if sc.Done() {
			return ebiten.Termination
		}
		sc.step(g.stage)
	}
	if g.cfg.Update != nil {
		if err := g.cfg.Update(); err != nil {
			return err
		}
	}
	g.stage.Update(float32(1.0 / float64(ebiten.TPS())))
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	frame := &Frame{TargetPresentationTime: time.Now().Add(time.Second / time.Duration(ebiten.TPS()))}
	g.renderer.RedrawAll(frame)
	for _, v := range g.stage.Views() {
		if o, ok := v.Onscreen().(*EbitenOnscreen); ok {
			o.Present(screen)
		}
	}
	if sc := g.cfg.Script; sc != nil {
		if err := sc.flushScreenshots(g.stage); err != nil {
			componentLog("run").WithError(err).Warn("script screenshot failed")
		}
	}
	if g.cfg.ShowFPS {
		ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS: %.1f\nTPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()))
	}
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.cfg.Width, g.cfg.Height
}

// Run opens a window and drives the stage: each tick advances animations,
// each draw redraws the views with pending damage and presents every
// EbitenOnscreen at its Position. cfg stays live: changing ShowFPS or
// Update while running takes effect on the next tick. It blocks until the
// window closes.
func Run(stage *Stage, renderer *Renderer, cfg *RunConfig) error {
	if cfg == nil {
		cfg = &RunConfig{}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = stage.Size()
	}
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	if cfg.Title != "" {
		ebiten.SetWindowTitle(cfg.Title)
	}
	componentLog("run").WithField("views", len(stage.Views())).Info("starting")
	return ebiten.RunGame(&game{stage: stage, renderer: renderer, cfg: cfg})
}
