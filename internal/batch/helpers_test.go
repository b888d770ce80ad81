package batch

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sync"
	"testing"

	"watermark/internal/config"
	"watermark/internal/logging"
	"watermark/internal/memory"
	"watermark/internal/raster"
	"watermark/internal/testsupport"
)

var gray = color.NRGBA{R: 90, G: 90, B: 90, A: 255}

// writeInputs creates count PNG inputs named img01.png, img02.png, ... and
// replaces the ones listed in corrupt with undecodable bytes.
func writeInputs(t *testing.T, cfg *config.Config, count int, corrupt ...int) []string {
	t.Helper()
	bad := make(map[int]bool, len(corrupt))
	for _, i := range corrupt {
		bad[i] = true
	}
	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		path := filepath.Join(cfg.Paths.InputDir, fmt.Sprintf("img%02d.png", i))
		if bad[i] {
			testsupport.WriteCorrupt(t, path)
		} else {
			testsupport.WriteImage(t, path, 64, 48, gray)
		}
		paths = append(paths, path)
	}
	return paths
}

func newTestScheduler(t *testing.T, cfg *config.Config, opts Options, memOpts ...memory.Option) *Scheduler {
	t.Helper()
	opts.Strategy = SelectStrategy(cfg.Concurrency.Enabled, cfg.Memory.Advanced)
	if opts.Workers == 0 {
		opts.Workers = cfg.Concurrency.Workers
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	opts.Config = cfg
	processor, governor, err := NewPipeline(cfg, opts.Strategy, raster.NewImaging(), opts.Logger, memOpts...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return NewScheduler(processor, governor, opts)
}

// jobLog records OnJobDone callbacks.
type jobLog struct {
	mu      sync.Mutex
	results []Result
}

func (l *jobLog) add(r Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *jobLog) indices() map[int]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[int]bool, len(l.results))
	for _, r := range l.results {
		seen[r.Index] = true
	}
	return seen
}

func noReclaim() memory.Option {
	return memory.WithReclaimer(func() {})
}
