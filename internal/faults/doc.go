// Package faults defines the error taxonomy shared by the watermark pipeline.
//
// Configuration problems are tagged ErrInvalidParameter and abort a run before
// any job is dispatched. Per-job failures carry ErrDecode, ErrEncode, or
// ErrFilesystem, and pool start-up failures carry ErrConcurrency. Callers
// classify with errors.Is; Kind and FromKind let a classification survive the
// trip through an isolated worker process.
package faults
