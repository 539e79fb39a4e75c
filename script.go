package trellis

import (
	"encoding/json"
	"fmt"
	"image"
)

// scriptStep is a single action in a frame script.
type scriptStep struct {
	Action string  `json:"action"`
	Label  string  `json:"label,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	W      float64 `json:"w,omitempty"`
	H      float64 `json:"h,omitempty"`
	ToX    float64 `json:"toX,omitempty"`
	ToY    float64 `json:"toY,omitempty"`
	Frames int     `json:"frames,omitempty"`
}

type frameScript struct {
	Steps []scriptStep `json:"steps"`
}

// FrameScript replays damage, overlay moves and screenshots over successive
// frames so a redraw sequence can be reproduced without input. Attach it
// with RunConfig.Script.
//
// Actions:
//
//	cursor       move the cursor overlay's top-left corner to (x, y)
//	damage       queue the stage rectangle (x, y, w, h)
//	full_redraw  queue every view in full
//	drag_failed  start a drag-failed animation of the cursor texture from
//	             (x, y) back to (toX, toY)
//	wait         let frames go by
//	screenshot   save every view after the next draw, tagged with label
type FrameScript struct {
	// Dir is where screenshots are written.
	Dir string

	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
	shots     []string
}

// LoadFrameScript parses a JSON frame script of the form
// {"steps": [{"action": "cursor", "x": 10, "y": 20}, ...]}.
func LoadFrameScript(jsonData []byte) (*FrameScript, error) {
	var script frameScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse frame script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse frame script: no steps")
	}
	for i, st := range script.Steps {
		switch st.Action {
		case "cursor", "damage", "full_redraw", "drag_failed", "wait", "screenshot":
		default:
			return nil, fmt.Errorf("parse frame script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &FrameScript{Dir: "screenshots", steps: script.Steps}, nil
}

// Done reports whether every step ran and every screenshot was written.
func (r *FrameScript) Done() bool {
	return r.done && len(r.shots) == 0
}

// step advances the script by one frame.
func (r *FrameScript) step(s *Stage) {
	if r.done {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "cursor":
		c := s.CursorOverlay()
		cur := c.CurrentRect()
		s.SetCursor(c.Texture(), Box{st.X, st.Y, st.X + cur.Width(), st.Y + cur.Height()})
	case "damage":
		clip := st.rect()
		s.AddRedrawClip(&clip)
	case "full_redraw":
		s.QueueFullRedraw()
	case "drag_failed":
		if tex := s.CursorOverlay().Texture(); tex != nil {
			w, h := float64(tex.Width()), float64(tex.Height())
			s.StartDragFailedAnimation(tex, Box{st.X, st.Y, st.X + w, st.Y + h}, st.ToX, st.ToY)
		}
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1
		}
	case "screenshot":
		r.shots = append(r.shots, st.Label)
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 {
		r.done = true
	}
}

// flushScreenshots writes the screenshots requested since the last draw.
// The first failure is returned; the rest are still attempted.
func (r *FrameScript) flushScreenshots(s *Stage) error {
	var first error
	for _, label := range r.shots {
		for _, v := range s.Views() {
			if _, err := Screenshot(v, r.Dir, label); err != nil && first == nil {
				first = err
			}
		}
	}
	r.shots = r.shots[:0]
	return first
}

// rect returns the step's (x, y, w, h) grown to whole pixels.
func (st scriptStep) rect() image.Rectangle {
	return Box{st.X, st.Y, st.X + st.W, st.Y + st.H}.Rect()
}
