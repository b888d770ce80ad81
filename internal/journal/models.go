package journal

import "time"

// Status is the terminal state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one batch invocation.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        Status
	Strategy      string
	Workers       int
	InputDir      string
	OutputDir     string
	OverlayPath   string
	OverlayDigest string
	Attempted     int
	Completed     int
	Failed        int
	Reclaims      int64
	PeakBytes     uint64
	Error         string
}

// Totals are the counters written when a run ends.
type Totals struct {
	Attempted int
	Completed int
	Failed    int
	Reclaims  int64
	PeakBytes uint64
	Err       error
}

// Job is the terminal record of one job.
type Job struct {
	RunID      string
	Index      int
	Source     string
	Output     string
	ErrorKind  string
	Error      string
	Elapsed    time.Duration
	FinishedAt time.Time
}

// Succeeded reports whether the job produced an output.
func (j Job) Succeeded() bool {
	return j.Error == ""
}
