package geometry

import (
	"fmt"
	"image"
	"math"

	"watermark/internal/faults"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

// SizeOf returns the dimensions of r.
func SizeOf(r image.Rectangle) Size {
	return Size{Width: r.Dx(), Height: r.Dy()}
}

// Portrait reports whether the size is taller than it is wide.
func (s Size) Portrait() bool {
	return s.Width < s.Height
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ScaleOverlay sizes the overlay relative to the shorter side of the base image.
// The target width is floor(min(base) * scalePercent / 100); the height keeps the
// overlay's aspect ratio. The returned ratio is targetWidth / overlayWidth.
func ScaleOverlay(overlay, base Size, scalePercent float64) (Size, float64, error) {
	if math.IsNaN(scalePercent) || scalePercent <= 0 || scalePercent > 100 {
		return Size{}, 0, faults.Invalid("scale %v must be within (0, 100]", scalePercent)
	}
	if overlay.Width <= 0 || overlay.Height <= 0 {
		return Size{}, 0, faults.Invalid("overlay size %s must be positive", overlay)
	}
	if base.Width <= 0 || base.Height <= 0 {
		return Size{}, 0, faults.Invalid("base size %s must be positive", base)
	}

	shorter := min(base.Width, base.Height)
	// A one pixel floor keeps the ratio strictly positive on tiny bases.
	targetWidth := max(int(math.Floor(float64(shorter)*scalePercent/100)), 1)
	ratio := float64(targetWidth) / float64(overlay.Width)
	targetHeight := max(int(math.Floor(float64(overlay.Height)*ratio)), 1)
	return Size{Width: targetWidth, Height: targetHeight}, ratio, nil
}

// ComputePosition returns the top-left corner for the overlay on the base image.
// For bottom anchors the scaled trailing transparent margin is subtracted so the
// overlay's visible content, not its bounding box, sits margin pixels from the
// bottom edge. Coordinates are floored, never rounded.
func ComputePosition(p Placement, base, overlay Size, scaledTrailingMargin float64, margin int) (image.Point, error) {
	if !p.Valid() {
		return image.Point{}, faults.Invalid("position %q must be one of %s", string(p), placementList())
	}

	centerX := floorDiv(base.Width-overlay.Width, 2)
	rightX := base.Width - overlay.Width - margin
	bottomY := int(math.Floor(float64(base.Height-margin) - (float64(overlay.Height) - scaledTrailingMargin)))

	switch p {
	case LeftTop:
		return image.Pt(margin, margin), nil
	case Top:
		return image.Pt(centerX, margin), nil
	case RightTop:
		return image.Pt(rightX, margin), nil
	case LeftBottom:
		return image.Pt(margin, bottomY), nil
	case Bottom:
		return image.Pt(centerX, bottomY), nil
	default: // RightBottom
		return image.Pt(rightX, bottomY), nil
	}
}

// FitWithin scales size down so its longer side equals limit, keeping the aspect
// ratio. Sizes already within limit are returned unchanged with ok=false.
func FitWithin(size Size, limit int) (Size, bool) {
	if limit <= 0 || (size.Width <= limit && size.Height <= limit) {
		return size, false
	}
	factor := math.Min(float64(limit)/float64(size.Width), float64(limit)/float64(size.Height))
	return Size{
		Width:  max(int(float64(size.Width)*factor), 1),
		Height: max(int(float64(size.Height)*factor), 1),
	}, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
