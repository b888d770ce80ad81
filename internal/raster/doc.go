// Package raster adapts an image library into the narrow decode, resize,
// composite and encode capability the watermark pipeline consumes.
package raster
