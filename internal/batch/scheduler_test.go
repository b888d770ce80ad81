package batch

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"watermark/internal/faults"
	"watermark/internal/lister"
	"watermark/internal/memory"
	"watermark/internal/testsupport"
)

func TestSequentialRunProcessesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	writeInputs(t, cfg, 3)
	var log jobLog
	s := newTestScheduler(t, cfg, Options{OnJobDone: log.add}, noReclaim())

	summary, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Strategy != Sequential || summary.Attempted != 3 || summary.Completed != 3 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	for i, out := range summary.Outputs {
		if filepath.Dir(out) != cfg.Paths.OutputDir {
			t.Fatalf("output %d outside output root: %q", i, out)
		}
	}
	if filepath.Base(summary.Outputs[0]) != "img01_mk.png" {
		t.Fatalf("expected deterministic name, got %q", summary.Outputs[0])
	}
	if len(log.results) != 3 {
		t.Fatalf("expected 3 job callbacks, got %d", len(log.results))
	}
}

func TestSequentialFailFast(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	paths := writeInputs(t, cfg, 10, 5)
	var log jobLog
	s := newTestScheduler(t, cfg, Options{OnJobDone: log.add}, noReclaim())

	summary, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false))
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if runErr.Index != 5 || runErr.Path != paths[4] {
		t.Fatalf("unexpected failing job %d %q", runErr.Index, runErr.Path)
	}
	if !errors.Is(err, faults.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	want := "terminated after job for path " + paths[4] + " failed: "
	if got := err.Error(); len(got) <= len(want) || got[:len(want)] != want {
		t.Fatalf("unexpected message %q", got)
	}
	if n := testsupport.CountFiles(t, cfg.Paths.OutputDir); n != 4 {
		t.Fatalf("expected 4 outputs, found %d", n)
	}
	if summary.Attempted != 5 || summary.Completed != 4 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	seen := log.indices()
	for i := 6; i <= 10; i++ {
		if seen[i] {
			t.Fatalf("job %d should never have been attempted", i)
		}
	}
}

func TestSharedPoolUsesUniqueNames(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4), testsupport.WithConcurrency(4, false))
	writeInputs(t, cfg, 12)
	s := newTestScheduler(t, cfg, Options{}, noReclaim())

	summary, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Strategy != SharedMemoryPool || summary.Workers != 4 || summary.Completed != 12 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	pattern := regexp.MustCompile(`^img\d{2}_mk_[0-9a-f]{6}\.png$`)
	seen := make(map[string]bool, len(summary.Outputs))
	for _, out := range summary.Outputs {
		if !pattern.MatchString(filepath.Base(out)) {
			t.Fatalf("unexpected output name %q", out)
		}
		if seen[out] {
			t.Fatalf("duplicate output %q", out)
		}
		seen[out] = true
	}
	if n := testsupport.CountFiles(t, cfg.Paths.OutputDir); n != 12 {
		t.Fatalf("expected 12 files on disk, found %d", n)
	}
}

func TestRecursiveRunIgnoresNestedOutputRoot(t *testing.T) {
	for _, workers := range []int{0, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			opts := []testsupport.ConfigOption{testsupport.WithOverlay(40, 20, 4)}
			if workers > 0 {
				opts = append(opts, testsupport.WithConcurrency(workers, false))
			}
			cfg := testsupport.NewConfig(t, opts...)
			cfg.Paths.Recursive = true
			cfg.Paths.OutputDir = filepath.Join(cfg.Paths.InputDir, "zz_out")
			if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
				t.Fatal(err)
			}
			writeInputs(t, cfg, 2)
			testsupport.WriteImage(t, filepath.Join(cfg.Paths.InputDir, "sub", "img03.png"), 64, 48, gray)
			s := newTestScheduler(t, cfg, Options{}, noReclaim())

			summary, err := s.Run(context.Background(),
				lister.Images(cfg.Paths.InputDir, true, cfg.Paths.OutputDir))
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if summary.Attempted != 3 || summary.Completed != 3 {
				t.Fatalf("expected 3 jobs for 3 inputs, got %+v", summary)
			}
			if n := testsupport.CountFiles(t, cfg.Paths.OutputDir); n != 3 {
				t.Fatalf("expected 3 outputs, found %d", n)
			}
			if _, err := os.Stat(filepath.Join(cfg.Paths.OutputDir, "zz_out")); !os.IsNotExist(err) {
				t.Fatalf("output tree was fed back as input: %v", err)
			}
		})
	}
}

func TestJobCallbackRunsOutsideSummaryLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	writeInputs(t, cfg, 3)
	var s *Scheduler
	locked := 0
	s = newTestScheduler(t, cfg, Options{OnJobDone: func(Result) {
		if !s.mu.TryLock() {
			locked++
			return
		}
		s.mu.Unlock()
	}}, noReclaim())

	if _, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if locked != 0 {
		t.Fatalf("%d callbacks ran while the summary lock was held", locked)
	}
}

func TestJobCallbacksAreSerialized(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4), testsupport.WithConcurrency(4, false))
	writeInputs(t, cfg, 12)
	var inFlight, overlap atomic.Int32
	callbacks := 0
	s := newTestScheduler(t, cfg, Options{OnJobDone: func(Result) {
		if inFlight.Add(1) > 1 {
			overlap.Add(1)
		}
		callbacks++
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	}}, noReclaim())

	if _, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if overlap.Load() != 0 {
		t.Fatalf("%d callbacks overlapped", overlap.Load())
	}
	if callbacks != 12 {
		t.Fatalf("expected 12 callbacks, got %d", callbacks)
	}
}

func TestSharedPoolFailFastDrains(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4), testsupport.WithConcurrency(2, false))
	writeInputs(t, cfg, 20, 3)
	var log jobLog
	s := newTestScheduler(t, cfg, Options{OnJobDone: log.add}, noReclaim())

	summary, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false))
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Index != 3 {
		t.Fatalf("expected RunError for job 3, got %v", err)
	}
	if summary.Completed+summary.Failed != summary.Attempted {
		t.Fatalf("every attempted job must reach a terminal state: %+v", summary)
	}
	if summary.Attempted >= 20 {
		t.Fatalf("dispatch should stop after the failure: %+v", summary)
	}
	if n := testsupport.CountFiles(t, cfg.Paths.OutputDir); n != summary.Completed {
		t.Fatalf("expected %d outputs on disk, found %d", summary.Completed, n)
	}
	if len(log.results) != summary.Attempted {
		t.Fatalf("expected a callback per attempted job, got %d", len(log.results))
	}
}

func TestRunReclaimsAfterFirstJobInMixedMode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	cfg.Memory.MixedMode = true
	cfg.Memory.ThresholdMB = 1
	cfg.Memory.CheckInterval = 0
	writeInputs(t, cfg, 1)

	over := memory.WithSampler(func() (uint64, error) { return 2 << 20, nil })
	s := newTestScheduler(t, cfg, Options{}, over, noReclaim())
	summary, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One request after job 1, one final request at the end of the run.
	if summary.Reclaims != 2 {
		t.Fatalf("expected 2 reclaims, got %d", summary.Reclaims)
	}
}

func TestRunBatchOnlyReclaimsOnCount(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	cfg.Memory.ThresholdMB = 1
	cfg.Memory.BatchSize = 2
	cfg.Memory.CheckInterval = 0
	writeInputs(t, cfg, 5)

	over := memory.WithSampler(func() (uint64, error) { return 2 << 20, nil })
	s := newTestScheduler(t, cfg, Options{}, over, noReclaim())
	summary, err := s.Run(context.Background(), lister.Images(cfg.Paths.InputDir, false))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// After jobs 2 and 4, plus the final request.
	if summary.Reclaims != 3 {
		t.Fatalf("expected 3 reclaims, got %d", summary.Reclaims)
	}
}

func TestRunPropagatesListingError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	listErr := errors.New("listing failed")
	var paths iter.Seq2[string, error] = func(yield func(string, error) bool) {
		yield("", listErr)
	}
	for _, concurrent := range []bool{false, true} {
		cfg.Concurrency.Enabled = concurrent
		s := newTestScheduler(t, cfg, Options{}, noReclaim())
		if _, err := s.Run(context.Background(), paths); !errors.Is(err, listErr) {
			t.Fatalf("concurrent=%v: expected listing error, got %v", concurrent, err)
		}
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlay(40, 20, 4))
	writeInputs(t, cfg, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, concurrent := range []bool{false, true} {
		cfg.Concurrency.Enabled = concurrent
		s := newTestScheduler(t, cfg, Options{}, noReclaim())
		summary, err := s.Run(ctx, lister.Images(cfg.Paths.InputDir, false))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("concurrent=%v: expected context.Canceled, got %v", concurrent, err)
		}
		if summary.Attempted != 0 {
			t.Fatalf("concurrent=%v: expected no attempts, got %d", concurrent, summary.Attempted)
		}
	}
}
