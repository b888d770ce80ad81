package overlay

import (
	"image"
	"image/draw"

	"watermark/internal/faults"
	"watermark/internal/geometry"
	"watermark/internal/raster"
)

// Descriptor is the opacity-adjusted overlay shared read-only by every job of a
// run. Build it once with Load or New; never mutate it afterwards.
type Descriptor struct {
	img            *image.NRGBA
	trailingMargin int
}

// Scaled is a per-job copy of the overlay sized for one base image.
type Scaled struct {
	Image *image.NRGBA
	// Ratio is scaled width / original width and is always positive.
	Ratio float64
	// TrailingMargin is the descriptor's trailing margin multiplied by Ratio.
	TrailingMargin float64
}

// Size returns the scaled overlay dimensions.
func (s Scaled) Size() geometry.Size {
	return geometry.SizeOf(s.Image.Bounds())
}

// Load decodes the overlay at path with codec and prepares it for reuse.
func Load(codec raster.Codec, path string, opacity float64) (*Descriptor, error) {
	if err := checkOpacity(opacity); err != nil {
		return nil, err
	}
	img, err := codec.Decode(path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrInvalidInput, "overlay", "decode", path, err)
	}
	return New(img, opacity)
}

// New prepares an already decoded overlay. Every alpha sample is multiplied by
// opacity with integer truncation and the trailing transparent margin is
// measured on the adjusted alpha channel. The source image is not modified.
func New(img image.Image, opacity float64) (*Descriptor, error) {
	if err := checkOpacity(opacity); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, faults.Wrap(faults.ErrInvalidInput, "overlay", "prepare", "overlay image is empty", nil)
	}

	adjusted := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(adjusted, adjusted.Rect, img, img.Bounds().Min, draw.Src)
	for i := 3; i < len(adjusted.Pix); i += 4 {
		adjusted.Pix[i] = uint8(float64(adjusted.Pix[i]) * opacity)
	}

	return &Descriptor{
		img:            adjusted,
		trailingMargin: trailingMargin(adjusted),
	}, nil
}

// Size returns the original overlay dimensions.
func (d *Descriptor) Size() geometry.Size {
	return geometry.SizeOf(d.img.Bounds())
}

// TrailingMargin is the number of rows between the lowest visible pixel and the
// bottom edge, in source pixels.
func (d *Descriptor) TrailingMargin() int {
	return d.trailingMargin
}

// Image exposes the adjusted overlay. Callers must treat it as read-only.
func (d *Descriptor) Image() *image.NRGBA {
	return d.img
}

// ScaleFor produces the overlay sized for a base image of the given size.
func (d *Descriptor) ScaleFor(codec raster.Codec, base geometry.Size, scalePercent float64) (Scaled, error) {
	target, ratio, err := geometry.ScaleOverlay(d.Size(), base, scalePercent)
	if err != nil {
		return Scaled{}, err
	}
	return Scaled{
		Image:          codec.Resize(d.img, target.Width, target.Height),
		Ratio:          ratio,
		TrailingMargin: float64(d.trailingMargin) * ratio,
	}, nil
}

func checkOpacity(opacity float64) error {
	if opacity < 0 || opacity > 1 || opacity != opacity {
		return faults.Wrap(faults.ErrInvalidInput, "overlay", "opacity", "opacity must be within [0, 1]", nil)
	}
	return nil
}

// trailingMargin returns height minus the bottom of the bounding box of pixels
// with non-zero alpha; zero when nothing is visible.
func trailingMargin(img *image.NRGBA) int {
	height := img.Rect.Dy()
	width := img.Rect.Dx()
	for y := height - 1; y >= 0; y-- {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 3; x < len(row); x += 4 {
			if row[x] != 0 {
				return height - (y + 1)
			}
		}
	}
	return 0
}
