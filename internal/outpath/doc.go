// Package outpath decides where each processed image is written.
//
// Deterministic mode probes the filesystem for a free name and is only safe
// with a single writer; UniqueSuffix mode appends a random token so concurrent
// writers never race on the same destination.
package outpath
