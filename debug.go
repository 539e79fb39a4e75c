package trellis

import (
	"github.com/sirupsen/logrus"
)

// globalDebug mirrors the most recently set Stage debug flag for paint node
// operations, which have no Stage pointer.
var globalDebug bool

// redrawStats holds per-view redraw metrics. Only logged when debug mode is
// on.
type redrawStats struct {
	view       string
	clipped    bool
	bufferAge  int
	fbRects    int
	swapRects  int
	scannedOut bool
}

// debugLog prints redraw stats at trace level.
func (r *Renderer) debugLog(stats redrawStats) {
	if !globalDebug {
		return
	}
	r.log().WithFields(logrus.Fields{
		"view":        stats.view,
		"clipped":     stats.clipped,
		"buffer_age":  stats.bufferAge,
		"fb_rects":    stats.fbRects,
		"swap_rects":  stats.swapRects,
		"scanned_out": stats.scannedOut,
	}).Trace("redraw")
}

// debugCheckTreeDepth warns if a paint node tree grows deeper than the
// threshold.
const debugMaxTreeDepth = 64

func debugCheckTreeDepth(n *PaintNode) {
	depth := 0
	for p := n; p != nil; p = p.parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		logger.Warnf("paint node tree depth %d exceeds %d (node %q)", depth, debugMaxTreeDepth, n.Name)
	}
}

// debugCheckChildCount warns if a paint node has more than 1000 children.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *PaintNode) {
	if len(n.children) > debugMaxChildCount {
		logger.Warnf("paint node %q has %d children (threshold %d)", n.Name, len(n.children), debugMaxChildCount)
	}
}

// countPaintOps returns the number of operations in a paint node subtree.
func countPaintOps(n *PaintNode) int {
	count := len(n.ops)
	for _, c := range n.children {
		count += countPaintOps(c)
	}
	return count
}
