package geometry

import (
	"strings"

	"watermark/internal/faults"
)

// Placement names the anchor the overlay is positioned against.
type Placement string

const (
	LeftTop     Placement = "left_top"
	Top         Placement = "top"
	RightTop    Placement = "right_top"
	Bottom      Placement = "bottom"
	RightBottom Placement = "right_bottom"
	LeftBottom  Placement = "left_bottom"
)

// Placements lists every supported anchor in display order.
func Placements() []Placement {
	return []Placement{LeftTop, Top, RightTop, Bottom, RightBottom, LeftBottom}
}

// ParsePlacement converts user input into a Placement.
func ParsePlacement(value string) (Placement, error) {
	normalized := Placement(strings.ToLower(strings.TrimSpace(value)))
	if normalized.Valid() {
		return normalized, nil
	}
	return "", faults.Invalid("position %q must be one of %s", value, placementList())
}

// Valid reports whether p is one of the supported anchors.
func (p Placement) Valid() bool {
	for _, candidate := range Placements() {
		if p == candidate {
			return true
		}
	}
	return false
}

func placementList() string {
	names := make([]string, 0, 6)
	for _, p := range Placements() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// Margins holds the edge distance for portrait and landscape base images.
type Margins struct {
	Vertical   int
	Horizontal int
}

// Select picks the margin for a base image: portrait images use the vertical
// margin, landscape and square images the horizontal one.
func (m Margins) Select(base Size) int {
	if base.Portrait() {
		return m.Vertical
	}
	return m.Horizontal
}
