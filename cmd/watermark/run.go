package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"watermark/internal/batch"
	"watermark/internal/config"
	"watermark/internal/faults"
	"watermark/internal/journal"
	"watermark/internal/lister"
	"watermark/internal/logging"
	"watermark/internal/preflight"
	"watermark/internal/raster"
	"watermark/internal/runlock"
)

// workerCommandName is the hidden subcommand isolated workers run.
const workerCommandName = "worker"

func runBatch(cmd *cobra.Command, cc *commandContext) error {
	cfg, err := cc.ensureConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	runID := uuid.NewString()
	ctx := logging.WithRunID(cmd.Context(), runID)
	log := logging.WithContext(ctx, logging.NewComponentLogger(logger, "cli"))
	if cc.configExists {
		log.Info("configuration loaded", logging.String("path", cc.configPath))
	} else {
		log.Info("no configuration file found; using defaults", logging.String("path", cc.configPath))
	}

	if err := runPreflight(log, cfg); err != nil {
		return err
	}

	lock, err := runlock.Acquire(cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("release output lock failed", logging.Error(err))
		}
	}()

	strategy := batch.SelectStrategy(cfg.Concurrency.Enabled, cfg.Memory.Advanced)
	processor, governor, err := batch.NewPipeline(cfg, strategy, raster.NewImaging(), logger)
	if err != nil {
		return err
	}

	opts := batch.Options{
		Strategy: strategy,
		Workers:  cfg.Concurrency.Workers,
		RunID:    runID,
		Logger:   logger,
		Config:   cfg,
	}
	if strategy == batch.IsolatedMemoryPool {
		opts.Worker, err = batch.SelfWorkerCommand(workerCommandName)
		if err != nil {
			return err
		}
	}

	digest, err := journal.Digest(cfg.Watermark.Path)
	if err != nil {
		log.Warn("overlay digest unavailable", logging.Error(err))
	} else {
		log.Info("overlay loaded",
			logging.String("path", cfg.Watermark.Path),
			logging.String("digest", digest),
		)
	}

	recorder, err := openRecorder(ctx, cfg, log)
	if err != nil {
		return err
	}
	if recorder != nil {
		defer recorder.close()
		opts.OnJobDone = recorder.recordJob
	}

	scheduler := batch.NewScheduler(processor, governor, opts)
	if recorder != nil {
		recorder.begin(journal.Run{
			ID:            runID,
			Strategy:      strategy.String(),
			Workers:       strategy.WorkerCount(cfg.Concurrency.Workers),
			InputDir:      cfg.Paths.InputDir,
			OutputDir:     cfg.Paths.OutputDir,
			OverlayPath:   cfg.Watermark.Path,
			OverlayDigest: digest,
		})
	}

	summary, runErr := scheduler.Run(ctx, lister.Images(cfg.Paths.InputDir, cfg.Paths.Recursive, cfg.Paths.OutputDir))
	if recorder != nil {
		recorder.finish(summary, runErr)
	}

	if errors.Is(runErr, context.Canceled) {
		log.Warn("batch interrupted", logging.Int("completed", summary.Completed))
		return runErr
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderSummary(summary, runErr, runID, shouldColorize(out)))
	return runErr
}

func runPreflight(log *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(cfg)
	for _, r := range results {
		switch {
		case !r.Passed:
			logging.ErrorWithContext(log, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "fix the configuration or paths and rerun"),
			)
		case r.Warning:
			logging.WarnWithContext(log, "preflight check corrected", "preflight_warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
		default:
			log.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
		}
	}
	return preflight.Err(results)
}

// runRecorder writes journal rows for one run. Journal failures are logged
// and never fail the batch.
type runRecorder struct {
	ctx   context.Context
	store *journal.Store
	runID string
	log   *slog.Logger
}

func openRecorder(ctx context.Context, cfg *config.Config, log *slog.Logger) (*runRecorder, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	store, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return nil, faults.Wrap(faults.ErrFilesystem, "journal", "open", cfg.Journal.Path, err)
	}
	return &runRecorder{ctx: context.WithoutCancel(ctx), store: store, log: log}, nil
}

func (r *runRecorder) begin(run journal.Run) {
	r.runID = run.ID
	if err := r.store.BeginRun(r.ctx, run); err != nil {
		logging.WarnWithContext(r.log, "journal begin run failed", "journal_write_failed", logging.Error(err))
	}
}

func (r *runRecorder) recordJob(res batch.Result) {
	job := journal.Job{
		RunID:   r.runID,
		Index:   res.Index,
		Source:  res.Source,
		Output:  res.Output,
		Elapsed: res.Elapsed,
	}
	if res.Err != nil {
		job.ErrorKind = faults.Kind(res.Err)
		job.Error = res.Err.Error()
	}
	if err := r.store.RecordJob(r.ctx, job); err != nil {
		logging.WarnWithContext(r.log, "journal record job failed", "journal_write_failed",
			logging.Int(logging.FieldJobIndex, res.Index),
			logging.Error(err),
		)
	}
}

func (r *runRecorder) finish(summary batch.Summary, runErr error) {
	totals := journal.Totals{
		Attempted: summary.Attempted,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		Reclaims:  summary.Reclaims,
		PeakBytes: summary.PeakBytes,
		Err:       runErr,
	}
	if err := r.store.FinishRun(r.ctx, r.runID, totals); err != nil {
		logging.WarnWithContext(r.log, "journal finish run failed", "journal_write_failed", logging.Error(err))
	}
}

func (r *runRecorder) close() {
	if err := r.store.Close(); err != nil {
		r.log.Warn("close journal failed", logging.Error(err))
	}
}
