package batch

import (
	"fmt"
	"runtime"

	"watermark/internal/outpath"
)

// Strategy is the execution model of a run. It is decided once, before any job
// is dispatched.
type Strategy int

const (
	Sequential Strategy = iota
	SharedMemoryPool
	IsolatedMemoryPool
)

// SelectStrategy maps the concurrency and isolated-memory switches onto a
// Strategy. Isolation without concurrency stays sequential.
func SelectStrategy(concurrent, isolated bool) Strategy {
	switch {
	case !concurrent:
		return Sequential
	case isolated:
		return IsolatedMemoryPool
	default:
		return SharedMemoryPool
	}
}

func (s Strategy) String() string {
	switch s {
	case Sequential:
		return "sequential"
	case SharedMemoryPool:
		return "shared-memory-pool"
	case IsolatedMemoryPool:
		return "isolated-memory-pool"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Concurrent reports whether more than one job may run at a time.
func (s Strategy) Concurrent() bool {
	return s != Sequential
}

// NamingMode returns the output naming mode the strategy requires. Any
// concurrent strategy must use unique suffixes because the existence check of
// deterministic naming is not atomic across writers.
func (s Strategy) NamingMode() outpath.Mode {
	if s.Concurrent() {
		return outpath.UniqueSuffix
	}
	return outpath.Deterministic
}

// WorkerCount resolves a configured worker count for the strategy: one for
// Sequential, the CPU count when configured is zero.
func (s Strategy) WorkerCount(configured int) int {
	if !s.Concurrent() {
		return 1
	}
	if configured <= 0 {
		return runtime.NumCPU()
	}
	return configured
}
