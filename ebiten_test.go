package trellis

import "testing"

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{
		{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {43, 64}, {64, 64}, {65, 128}, {8192, 8192},
	}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPoolKeyDistinguishesOrientation(t *testing.T) {
	if poolKey(64, 32) == poolKey(32, 64) {
		t.Error("64x32 and 32x64 share a pool bucket")
	}
	if poolKey(64, 32) != poolKey(64, 32) {
		t.Error("pool key is not stable")
	}
}

func TestTexturePoolReleaseNil(t *testing.T) {
	var p texturePool
	p.Release(nil)
	if len(p.buckets) != 0 {
		t.Errorf("nil release created %d buckets", len(p.buckets))
	}
}
