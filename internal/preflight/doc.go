// Package preflight checks the filesystem before a batch is dispatched.
//
// RunAll verifies the watermark file, makes sure the input and output
// directories exist and are accessible, and checks free space under the
// output root. A missing input directory is created and reported as a
// warning; every other problem is a failure, and Err turns failures into an
// invalid-parameter error so the run aborts before any job starts.
package preflight
