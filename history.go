package trellis

import "fmt"

// DamageHistoryLength is the number of frames of damage a view remembers.
// It must be a power of two.
const DamageHistoryLength = 16

const damageHistoryMask = DamageHistoryLength - 1

// DamageHistory is a ring of per-frame damage regions in framebuffer space.
// Age 1 is the frame recorded just before the last Step, age 2 the one
// before that, and so on.
//
// Each frame that uses buffer age must call Record exactly once and then
// Step exactly once, in frame order. Skipping a Step makes every age
// lookup off by one until the history is invalidated.
type DamageHistory struct {
	damages [DamageHistoryLength]*Region
	index   int
}

// NewDamageHistory returns an empty history.
func NewDamageHistory() *DamageHistory {
	return &DamageHistory{}
}

func (h *DamageHistory) slot(diff int) int {
	return (h.index + diff) & damageHistoryMask
}

// Record stores a copy of region as the current frame's damage.
func (h *DamageHistory) Record(region Region) {
	r := region.Copy()
	h.damages[h.slot(0)] = &r
}

// Step advances to the next frame. The region just recorded becomes age 1.
func (h *DamageHistory) Step() {
	h.index = h.slot(1)
}

// IsAgeValid reports whether the damage of age frames ago is known. Ages
// outside [1, DamageHistoryLength) and ages not recorded since the last
// Invalidate are invalid.
func (h *DamageHistory) IsAgeValid(age int) bool {
	if age < 1 || age >= DamageHistoryLength {
		return false
	}
	return h.damages[h.slot(-age)] != nil
}

// Lookup returns the damage recorded age frames ago.
// Panics if the age is not valid; callers check IsAgeValid first.
func (h *DamageHistory) Lookup(age int) Region {
	if !h.IsAgeValid(age) {
		panic(fmt.Sprintf("trellis: damage history lookup of invalid age %d", age))
	}
	return *h.damages[h.slot(-age)]
}

// Invalidate forgets every recorded frame. Call it when the back buffers
// change, for example on resize.
func (h *DamageHistory) Invalidate() {
	for i := range h.damages {
		h.damages[i] = nil
	}
}
