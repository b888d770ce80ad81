package raster

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"watermark/internal/faults"
)

// Codec is the raster capability the pipeline consumes. Implementations must be
// safe for concurrent use; every call works on caller-owned images.
type Codec interface {
	Decode(path string) (*image.NRGBA, error)
	Resize(img image.Image, width, height int) *image.NRGBA
	Composite(base, overlay image.Image, at image.Point) *image.NRGBA
	Encode(img image.Image, path string, quality int) error
}

// Imaging implements Codec on top of github.com/disintegration/imaging using a
// Lanczos filter for every resize.
type Imaging struct{}

// NewImaging returns the default codec.
func NewImaging() Imaging {
	return Imaging{}
}

// Decode opens path and returns it as non-premultiplied RGBA, so every decoded
// image carries an alpha channel regardless of its source format.
func (Imaging) Decode(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrDecode, "raster", "decode", path, err)
	}
	return EnsureAlpha(img), nil
}

// Resize scales img to exactly width x height.
func (Imaging) Resize(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Composite draws overlay over base at the given top-left corner using the
// overlay's own alpha channel. Parts of the overlay outside base are clipped.
func (Imaging) Composite(base, overlay image.Image, at image.Point) *image.NRGBA {
	return imaging.Overlay(base, overlay, at, 1.0)
}

// Encode writes img to path, choosing the format from the extension. Quality is
// applied to JPEG output only.
func (Imaging) Encode(img image.Image, path string, quality int) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return faults.Wrap(faults.ErrEncode, "raster", "encode", path, err)
	}
	var opts []imaging.EncodeOption
	if format == imaging.JPEG && quality > 0 {
		opts = append(opts, imaging.JPEGQuality(quality))
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return faults.Wrap(faults.ErrFilesystem, "raster", "create output", path, err)
	}
	if err := imaging.Encode(file, img, format, opts...); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return faults.Wrap(faults.ErrEncode, "raster", "encode", path, err)
	}
	if err := file.Close(); err != nil {
		return faults.Wrap(faults.ErrFilesystem, "raster", "close output", path, err)
	}
	return nil
}

// EnsureAlpha returns img as *image.NRGBA, copying only when needed.
func EnsureAlpha(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(img)
}

// ToOpaque drops the alpha channel by forcing every pixel fully opaque while
// keeping its colour samples, for formats that cannot store transparency.
func ToOpaque(img *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(img.Rect)
	draw.Draw(out, out.Rect, img, img.Rect.Min, draw.Src)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// LacksAlpha reports whether the output format for path cannot carry an alpha
// channel.
func LacksAlpha(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

// Supported reports whether path has an extension the pipeline can process.
func Supported(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

var extensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".gif":  {},
}

// ErrUnsupported is returned by helpers that receive a path outside the
// supported extension set.
var ErrUnsupported = errors.New("unsupported image format")

// CheckSupported returns ErrUnsupported wrapped with the path when the
// extension is not processable.
func CheckSupported(path string) error {
	if Supported(path) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}
