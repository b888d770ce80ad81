package batch

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"watermark/internal/config"
	"watermark/internal/faults"
	"watermark/internal/logging"
	"watermark/internal/memory"
)

// Options configures a Scheduler.
type Options struct {
	Strategy Strategy
	// Workers bounds concurrent jobs for the pool strategies.
	Workers int
	RunID   string
	Logger  *slog.Logger
	// OnJobDone observes every finished job, successful or not. Calls are
	// serialized.
	OnJobDone func(Result)

	// Config and Worker are required by IsolatedMemoryPool: each worker
	// process is started from Worker and initialised with Config.
	Config *config.Config
	Worker WorkerCommand
}

// Summary describes a finished run.
type Summary struct {
	Strategy  Strategy
	Workers   int
	Attempted int
	Completed int
	Failed    int
	Outputs   []string
	Reclaims  int64
	PeakBytes uint64
	Elapsed   time.Duration
}

// Scheduler dispatches one run of jobs. It is single use.
type Scheduler struct {
	opts      Options
	processor *Processor
	governor  *memory.Governor
	counters  RunCounters
	logger    *slog.Logger

	mu      sync.Mutex
	summary Summary

	// notifyMu serializes OnJobDone without holding mu.
	notifyMu sync.Mutex
}

// NewScheduler returns a scheduler for processor and governor.
func NewScheduler(processor *Processor, governor *memory.Governor, opts Options) *Scheduler {
	opts.Workers = opts.Strategy.WorkerCount(opts.Workers)
	return &Scheduler{
		opts:      opts,
		processor: processor,
		governor:  governor,
		logger:    logging.NewComponentLogger(opts.Logger, "scheduler"),
	}
}

// Run consumes paths, creating one job per path, until the sequence ends or a
// job fails. The memory sampler runs for the duration of the call and has
// stopped by the time Run returns.
func (s *Scheduler) Run(ctx context.Context, paths iter.Seq2[string, error]) (Summary, error) {
	start := time.Now()
	if s.opts.RunID != "" {
		ctx = logging.WithRunID(ctx, s.opts.RunID)
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("batch starting",
		logging.String(logging.FieldStrategy, s.opts.Strategy.String()),
		logging.Int("workers", s.opts.Workers),
	)

	if err := s.governor.Start(ctx); err != nil {
		return s.snapshot(start), faults.Wrap(faults.ErrConcurrency, "scheduler", "start memory sampler", "", err)
	}

	var err error
	switch s.opts.Strategy {
	case Sequential:
		err = s.runSequential(ctx, paths)
	case SharedMemoryPool:
		err = s.runShared(ctx, paths)
	case IsolatedMemoryPool:
		err = s.runIsolated(ctx, paths)
	default:
		err = faults.Invalid("unknown strategy %s", s.opts.Strategy)
	}

	s.governor.Reclaim()
	s.governor.Stop()

	summary := s.snapshot(start)
	if err == nil {
		logger.Info("batch finished",
			logging.Int("completed", summary.Completed),
			logging.Duration("elapsed", summary.Elapsed),
		)
	}
	return summary, err
}

func (s *Scheduler) runSequential(ctx context.Context, paths iter.Seq2[string, error]) error {
	index := 0
	for source, err := range paths {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		index++
		job := s.newJob(index, source)
		jobCtx := logging.WithJob(ctx, job.Index, job.Source)
		s.markAttempted()
		res, err := s.processor.Process(jobCtx, job)
		if err := s.finish(jobCtx, job, res, err); err != nil {
			return err
		}
	}
	return nil
}

// runShared bounds concurrency with an errgroup limit. The first failure
// cancels gctx: dispatch stops and a job that obtains a slot afterwards
// returns without touching its source, while jobs already running finish.
func (s *Scheduler) runShared(ctx context.Context, paths iter.Seq2[string, error]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	var listErr error
	index := 0
	for source, err := range paths {
		if err != nil {
			listErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		index++
		job := s.newJob(index, source)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			jobCtx := logging.WithJob(gctx, job.Index, job.Source)
			s.markAttempted()
			res, err := s.processor.Process(jobCtx, job)
			return s.finish(jobCtx, job, res, err)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if listErr != nil {
		return listErr
	}
	return ctx.Err()
}

func (s *Scheduler) newJob(index int, source string) Job {
	return Job{Index: index, Source: source, Policy: s.processor.Policy()}
}

func (s *Scheduler) markAttempted() {
	s.mu.Lock()
	s.summary.Attempted++
	s.mu.Unlock()
}

// finish records a terminal job state and converts a failure into the
// RunError that ends the run.
func (s *Scheduler) finish(ctx context.Context, job Job, res Result, err error) error {
	res.Index = job.Index
	res.Source = job.Source
	logger := logging.WithContext(ctx, s.logger)

	if err != nil {
		res.Err = err
		s.record(res)
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.Error(err),
			logging.String("error_kind", faults.Kind(err)),
			logging.String(logging.FieldErrorHint, hintFor(err)),
		)
		return &RunError{Index: job.Index, Path: job.Source, Err: err}
	}

	completed := s.counters.Increment()
	s.record(res)
	logger.Info("processed",
		logging.String(logging.FieldOutput, res.Output),
		logging.Duration("elapsed", res.Elapsed),
	)
	s.governor.AfterJob(completed)
	return nil
}

func (s *Scheduler) record(res Result) {
	s.mu.Lock()
	if res.Err != nil {
		s.summary.Failed++
	} else {
		s.summary.Completed++
		s.summary.Outputs = append(s.summary.Outputs, res.Output)
	}
	s.mu.Unlock()

	if s.opts.OnJobDone != nil {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		s.opts.OnJobDone(res)
	}
}

func (s *Scheduler) snapshot(start time.Time) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := s.summary
	summary.Outputs = append([]string(nil), s.summary.Outputs...)
	summary.Strategy = s.opts.Strategy
	summary.Workers = s.opts.Workers
	summary.Reclaims = s.governor.Reclaims()
	summary.PeakBytes = s.governor.PeakBytes()
	summary.Elapsed = time.Since(start)
	return summary
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, faults.ErrDecode):
		return "check that the source file is a readable image"
	case errors.Is(err, faults.ErrEncode):
		return "check the output format and quality settings"
	case errors.Is(err, faults.ErrFilesystem):
		return "check output directory permissions and free space"
	case errors.Is(err, faults.ErrInvalidParameter):
		return "check the watermark configuration"
	case errors.Is(err, faults.ErrConcurrency):
		return "check that worker processes can start"
	default:
		return "check logs for details"
	}
}
