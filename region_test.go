package trellis

import (
	"image"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Construction ---

func TestRegionZeroValueEmpty(t *testing.T) {
	var r Region
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 0, r.NumRects())
	assert.Equal(t, image.Rectangle{}, r.Extents())
}

func TestRegionFromEmptyRect(t *testing.T) {
	r := RegionFromRect(image.Rect(5, 5, 5, 10))
	assert.True(t, r.IsEmpty())
}

func TestNewRegionIgnoresEmpty(t *testing.T) {
	r := NewRegion(image.Rect(0, 0, 10, 10), image.Rectangle{}, image.Rect(3, 3, 3, 3))
	require.Equal(t, 1, r.NumRects())
	assert.Equal(t, image.Rect(0, 0, 10, 10), r.Rect(0))
}

// --- Union ---

func TestRegionUnionAdjacentMerges(t *testing.T) {
	r := NewRegion(image.Rect(0, 0, 10, 10), image.Rect(10, 0, 20, 10))
	require.Equal(t, 1, r.NumRects())
	assert.Equal(t, image.Rect(0, 0, 20, 10), r.Rect(0))

	r = NewRegion(image.Rect(0, 0, 10, 10), image.Rect(0, 10, 10, 20))
	require.Equal(t, 1, r.NumRects())
	assert.Equal(t, image.Rect(0, 0, 10, 20), r.Rect(0))
}

func TestRegionUnionOverlapCoverage(t *testing.T) {
	r := NewRegion(image.Rect(0, 0, 100, 100), image.Rect(50, 50, 110, 110))
	assert.True(t, r.ContainsRect(image.Rect(0, 0, 100, 100)))
	assert.True(t, r.ContainsRect(image.Rect(50, 50, 110, 110)))
	assert.False(t, r.ContainsRect(image.Rect(100, 0, 110, 50)))
	assert.Equal(t, image.Rect(0, 0, 110, 110), r.Extents())
}

func TestRegionCanonicalOrderIndependent(t *testing.T) {
	a := NewRegion(image.Rect(0, 0, 10, 10), image.Rect(5, 5, 20, 20), image.Rect(30, 0, 40, 5))
	b := NewRegion(image.Rect(30, 0, 40, 5), image.Rect(5, 5, 20, 20), image.Rect(0, 0, 10, 10))
	assert.True(t, a.Equal(b), "a = %v, b = %v", a.rects, b.rects)
}

func TestRegionCanonicalSplitVsWhole(t *testing.T) {
	whole := RegionFromRect(image.Rect(0, 0, 20, 20))
	split := NewRegion(
		image.Rect(0, 0, 20, 7),
		image.Rect(0, 7, 13, 20),
		image.Rect(13, 7, 20, 20),
	)
	assert.True(t, whole.Equal(split), "split = %v", split.rects)
}

func TestRegionRectsNoOverlap(t *testing.T) {
	r := NewRegion(
		image.Rect(0, 0, 50, 50),
		image.Rect(25, 25, 75, 75),
		image.Rect(10, 60, 90, 70),
	)
	rects := r.Rects()
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			assert.False(t, rects[i].Overlaps(rects[j]), "%v overlaps %v", rects[i], rects[j])
		}
	}
}

const regionGrid = 48

func randomRect(rng *rand.Rand) image.Rectangle {
	x0, y0 := rng.IntN(regionGrid), rng.IntN(regionGrid)
	return image.Rect(x0, y0, x0+1+rng.IntN(regionGrid-x0), y0+1+rng.IntN(regionGrid-y0))
}

func randomRegion(rng *rand.Rand, n int) Region {
	var r Region
	for range n {
		r.UnionRect(randomRect(rng))
	}
	return r
}

// checkCanonical fails unless r's rectangles are in sorted, coalesced bands.
func checkCanonical(t *testing.T, r Region) {
	t.Helper()
	rects := r.Rects()
	for i := 1; i < len(rects); i++ {
		prev, cur := rects[i-1], rects[i]
		if cur.Min.Y == prev.Min.Y {
			require.Equal(t, prev.Max.Y, cur.Max.Y, "band height differs: %v", rects)
			require.Greater(t, cur.Min.X, prev.Max.X, "spans touch or overlap: %v", rects)
			continue
		}
		require.GreaterOrEqual(t, cur.Min.Y, prev.Max.Y, "bands overlap: %v", rects)
	}
	var bands [][]image.Rectangle
	for _, rect := range rects {
		if n := len(bands); n > 0 && bands[n-1][0].Min.Y == rect.Min.Y {
			bands[n-1] = append(bands[n-1], rect)
			continue
		}
		bands = append(bands, []image.Rectangle{rect})
	}
	for i := 1; i < len(bands); i++ {
		prev, cur := bands[i-1], bands[i]
		if prev[0].Max.Y != cur[0].Min.Y || len(prev) != len(cur) {
			continue
		}
		same := true
		for j := range cur {
			if cur[j].Min.X != prev[j].Min.X || cur[j].Max.X != prev[j].Max.X {
				same = false
				break
			}
		}
		require.False(t, same, "adjacent bands not coalesced: %v", rects)
	}
	require.True(t, NewRegion(rects...).Equal(r), "rebuild differs: %v", rects)
}

func TestRegionRandomUnionsStayCanonical(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var (
		r    Region
		bits [regionGrid][regionGrid]bool
	)
	for i := range 3000 {
		if i%25 == 0 {
			r = Region{}
			bits = [regionGrid][regionGrid]bool{}
		}
		rect := randomRect(rng)
		r.UnionRect(rect)
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				bits[y][x] = true
			}
		}

		checkCanonical(t, r)
		for y := range regionGrid {
			for x := range regionGrid {
				px := image.Rect(x, y, x+1, y+1)
				require.Equal(t, bits[y][x], r.ContainsRect(px), "pixel (%d,%d) after %d unions", x, y, i%25+1)
			}
		}
	}
}

func TestRegionSubtractAndIntersectPartition(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for range 500 {
		a := randomRegion(rng, 1+rng.IntN(6))
		cut := randomRegion(rng, 1+rng.IntN(4))

		outside := a.Copy()
		outside.Subtract(cut)
		inside := a.Copy()
		inside.Intersect(cut)
		checkCanonical(t, outside)
		checkCanonical(t, inside)

		inside.Intersect(outside)
		require.True(t, inside.IsEmpty(), "a-r and a&r overlap")

		inside = a.Copy()
		inside.Intersect(cut)
		outside.Union(inside)
		require.True(t, outside.Equal(a), "(a-r)|(a&r) = %v, a = %v", outside.rects, a.rects)
	}
}

// --- Intersect / Subtract ---

func TestRegionIntersect(t *testing.T) {
	r := NewRegion(image.Rect(0, 0, 10, 10), image.Rect(20, 0, 30, 10))
	r.IntersectRect(image.Rect(5, 5, 25, 15))
	want := NewRegion(image.Rect(5, 5, 10, 10), image.Rect(20, 5, 25, 10))
	assert.True(t, r.Equal(want), "got %v", r.rects)
}

func TestRegionIntersectDisjoint(t *testing.T) {
	r := RegionFromRect(image.Rect(0, 0, 10, 10))
	r.IntersectRect(image.Rect(20, 20, 30, 30))
	assert.True(t, r.IsEmpty())
}

func TestRegionSubtractHole(t *testing.T) {
	r := RegionFromRect(image.Rect(0, 0, 30, 30))
	r.SubtractRect(image.Rect(10, 10, 20, 20))
	assert.False(t, r.ContainsRect(image.Rect(10, 10, 20, 20)))
	assert.True(t, r.ContainsRect(image.Rect(0, 0, 30, 10)))
	assert.True(t, r.ContainsRect(image.Rect(0, 20, 30, 30)))
	assert.True(t, r.ContainsRect(image.Rect(0, 10, 10, 20)))
	assert.True(t, r.ContainsRect(image.Rect(20, 10, 30, 20)))
	assert.Equal(t, 4, r.NumRects())
}

func TestRegionSubtractAll(t *testing.T) {
	r := RegionFromRect(image.Rect(0, 0, 30, 30))
	r.SubtractRect(image.Rect(-5, -5, 40, 40))
	assert.True(t, r.IsEmpty())
}

func TestRegionContainsRegion(t *testing.T) {
	big := RegionFromRect(image.Rect(0, 0, 100, 100))
	small := NewRegion(image.Rect(10, 10, 20, 20), image.Rect(50, 50, 60, 60))
	assert.True(t, big.ContainsRegion(small))
	assert.False(t, small.ContainsRegion(big))
}

// --- Translate / copy ---

func TestRegionTranslate(t *testing.T) {
	r := NewRegion(image.Rect(0, 0, 10, 10))
	r.Translate(5, -3)
	assert.Equal(t, image.Rect(5, -3, 15, 7), r.Rect(0))
}

func TestRegionTranslateDoesNotAliasCopy(t *testing.T) {
	r := RegionFromRect(image.Rect(0, 0, 10, 10))
	cp := r
	r.Translate(100, 100)
	assert.Equal(t, image.Rect(0, 0, 10, 10), cp.Rect(0))
}

func TestRegionCopyIndependent(t *testing.T) {
	r := RegionFromRect(image.Rect(0, 0, 10, 10))
	cp := r.Copy()
	r.UnionRect(image.Rect(10, 0, 20, 10))
	assert.Equal(t, image.Rect(0, 0, 10, 10), cp.Rect(0))
}

// --- Scaling ---

func TestScaleRegionGrow(t *testing.T) {
	r := RegionFromRect(image.Rect(1, 1, 3, 3))
	s := ScaleRegion(r, 1.5, RoundGrow)
	assert.Equal(t, image.Rect(1, 1, 5, 5), s.Rect(0))
}

func TestScaleRegionShrinkAndNearest(t *testing.T) {
	r := RegionFromRect(image.Rect(1, 1, 3, 3))
	assert.Equal(t, image.Rect(2, 2, 4, 4), ScaleRegion(r, 1.5, RoundShrink).Rect(0))
	assert.Equal(t, image.Rect(2, 2, 5, 5), ScaleRegion(r, 1.5, RoundNearest).Rect(0))
}

func TestOffsetScaleRoundTripCovers(t *testing.T) {
	stage := NewRegion(image.Rect(1013, 7, 1021, 33), image.Rect(1500, 400, 1501, 401))
	fb := offsetScaleAndClamp(stage, -1000, 0, 1.25)
	back := scaleOffsetAndClamp(fb, 1/1.25, 1000, 0)
	assert.True(t, back.ContainsRegion(stage), "back = %v", back.rects)
}
