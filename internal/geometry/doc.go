// Package geometry holds the pure layout math for placing a watermark overlay.
//
// ScaleOverlay sizes the overlay against the base image's shorter side,
// ComputePosition resolves one of the six anchors into a top-left corner while
// compensating for transparent padding at the bottom of the overlay, and
// FitWithin computes the precompression target for oversized images. Nothing
// here touches pixels or holds state.
package geometry
