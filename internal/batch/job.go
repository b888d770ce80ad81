package batch

import (
	"fmt"
	"image"
	"time"

	"watermark/internal/geometry"
)

// Policy is the run-wide placement and encoding snapshot every job carries.
type Policy struct {
	Placement    geometry.Placement
	Margins      geometry.Margins
	ScalePercent float64
	Quality      int
}

// Job is one source image to process. Jobs are never retried.
type Job struct {
	// Index is the 1-based position of the source in listing order.
	Index  int
	Source string
	Policy Policy
}

// Result is the terminal state of a job: Output is set on success, Err on
// failure.
type Result struct {
	Index         int
	Source        string
	Output        string
	Position      image.Point
	Precompressed bool
	Elapsed       time.Duration
	Err           error
}

// RunError reports the job that terminated a run.
type RunError struct {
	Index int
	Path  string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("terminated after job for path %s failed: %v", e.Path, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
