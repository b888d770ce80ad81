package testsupport

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteImage writes a width x height image filled with fill. The encoder is
// chosen from the extension: .jpg/.jpeg use JPEG, everything else PNG.
func WriteImage(t testing.TB, path string, width, height int, fill color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	writeEncoded(t, path, img)
}

// WriteOverlayPNG writes a semi-opaque white overlay whose bottom padding rows
// are fully transparent.
func WriteOverlayPNG(t testing.TB, path string, width, height, padding int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height-padding; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 200})
		}
	}
	writeEncoded(t, path, img)
}

// WriteCorrupt writes bytes that no image decoder accepts under an image
// extension.
func WriteCorrupt(t testing.TB, path string) {
	t.Helper()
	mkdirParent(t, path)
	if err := os.WriteFile(path, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeEncoded(t testing.TB, path string, img image.Image) {
	t.Helper()
	mkdirParent(t, path)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func mkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}

// CountFiles returns the number of regular, non-hidden files under root.
func CountFiles(t testing.TB, root string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
			count++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("walk %s: %v", root, err)
	}
	return count
}
