package trellis

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type readableOnscreen struct {
	*fakeOnscreen
	pix []byte
}

func (o *readableOnscreen) ReadPixels(pix []byte) { copy(pix, o.pix) }

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello"},
		{"after-spawn", "after-spawn"},
		{"frame.01", "frame.01"},
		{"has spaces", "has_spaces"},
		{"path/to/thing", "path_to_thing"},
		{"back\\slash", "back_slash"},
		{"special!@#$%", "special_____"},
		{"", "unlabeled"},
		{"   ", "unlabeled"},
		{"MixedCase123", "MixedCase123"},
	}
	for _, tt := range tests {
		got := sanitizeLabel(tt.in)
		if got != tt.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScreenshotWritesUnpremultipliedPNG(t *testing.T) {
	on := &readableOnscreen{
		fakeOnscreen: newFakeOnscreen(2, 1),
		// opaque red, then half-transparent white premultiplied
		pix: []byte{255, 0, 0, 255, 128, 128, 128, 128},
	}
	view := NewStageView(StageViewConfig{Name: "left view", Layout: image.Rect(0, 0, 2, 1), Onscreen: on})
	dir := filepath.Join(t.TempDir(), "shots")

	path, err := Screenshot(view, dir, "after move")
	if err != nil {
		t.Fatalf("Screenshot: %v", err)
	}
	if !strings.HasSuffix(path, "_left_view_after_move.png") {
		t.Errorf("path = %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("decoded %T, want *image.NRGBA", img)
	}
	if got := nrgba.NRGBAAt(0, 0); got.R != 255 || got.A != 255 {
		t.Errorf("pixel 0 = %v", got)
	}
	if got := nrgba.NRGBAAt(1, 0); got.R != 255 || got.G != 255 || got.A != 128 {
		t.Errorf("pixel 1 = %v, want straight white at alpha 128", got)
	}
}

func TestScreenshotUnreadableOnscreen(t *testing.T) {
	view, _ := newTestView("v", image.Rect(0, 0, 4, 4), 1)
	if _, err := Screenshot(view, t.TempDir(), "x"); err == nil {
		t.Error("expected error for an onscreen without ReadPixels")
	}
}
