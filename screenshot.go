package trellis

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PixelReader is implemented by framebuffers whose contents can be read
// back. ReadPixels fills pix with premultiplied RGBA, four bytes per pixel,
// row-major over Size().
type PixelReader interface {
	ReadPixels(pix []byte)
}

// Screenshot captures what view last presented and writes it as a PNG into
// dir, named after the current time and label. It returns the file path.
func Screenshot(view *StageView, dir, label string) (string, error) {
	pr, ok := view.Onscreen().(PixelReader)
	if !ok {
		return "", fmt.Errorf("trellis: screenshot %s: onscreen cannot be read back", view.Name())
	}
	w, h := view.Onscreen().Size()
	pix := make([]byte, 4*w*h)
	pr.ReadPixels(pix)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("trellis: screenshot: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.png", time.Now().Format("20060102_150405"), sanitizeLabel(view.Name()), sanitizeLabel(label))
	path := filepath.Join(dir, name)
	if err := writePNG(path, unpremultiply(pix, w, h)); err != nil {
		return "", fmt.Errorf("trellis: screenshot: %w", err)
	}
	componentLog("screenshot").WithField("path", path).Info("saved screenshot")
	return path, nil
}

// unpremultiply converts premultiplied RGBA to straight-alpha NRGBA.
func unpremultiply(pix []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(pix) && i+3 < len(img.Pix); i += 4 {
		r, g, b, a := pix[i], pix[i+1], pix[i+2], pix[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel keeps file names portable. Empty labels become "unlabeled".
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
