// Package memory bounds resident memory during a batch run.
//
// The Governor combines a background sampler that requests reclamation when
// resident memory crosses the byte threshold, a per-job check used after every
// completed job, and the precompression policy that shrinks very large base
// images before compositing. Reclamation is always a hint to the Go runtime.
package memory
