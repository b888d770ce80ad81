package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"watermark/internal/faults"
	"watermark/internal/logging"
	"watermark/internal/memory"
	"watermark/internal/raster"
)

// Serve is the worker-process side of IsolatedMemoryPool. It reads the init
// message and job requests from in and writes replies to out until in is
// closed. After every job the worker re-samples its own resident memory and
// requests reclamation when over the threshold. newLogger builds the worker's
// logger from the level the parent sent; it may be nil.
func Serve(ctx context.Context, in io.Reader, out io.Writer, newLogger func(level string) *slog.Logger, opts ...memory.Option) error {
	scanner := newMessageScanner(in)
	enc := json.NewEncoder(out)

	var init workerInit
	if err := readMessage(scanner, &init); err != nil {
		return faults.Wrap(faults.ErrConcurrency, "worker", "read init", "", err)
	}

	logger := logging.NewNop()
	if newLogger != nil {
		logger = newLogger(init.LogLevel)
	}
	logger = logging.NewComponentLogger(logger, "worker").With(logging.Int(logging.FieldWorker, init.Worker))
	if init.RunID != "" {
		ctx = logging.WithRunID(ctx, init.RunID)
	}

	cfg := init.Config
	processor, governor, err := NewPipeline(&cfg, IsolatedMemoryPool, raster.NewImaging(), logger, opts...)
	if err != nil {
		kind, message := errorFields(err)
		_ = enc.Encode(workerReady{PID: os.Getpid(), ErrorKind: kind, Error: message})
		return err
	}
	if err := enc.Encode(workerReady{PID: os.Getpid()}); err != nil {
		return fmt.Errorf("send ready: %w", err)
	}

	for {
		var req jobRequest
		err := readMessage(scanner, &req)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return faults.Wrap(faults.ErrConcurrency, "worker", "read job", "", err)
		}

		job := Job{Index: req.Index, Source: req.Source, Policy: processor.Policy()}
		jobCtx := logging.WithJob(ctx, job.Index, job.Source)
		res, procErr := processor.Process(jobCtx, job)
		reply := jobResult{
			Index:         job.Index,
			Source:        job.Source,
			Output:        res.Output,
			X:             res.Position.X,
			Y:             res.Position.Y,
			Precompressed: res.Precompressed,
			ElapsedMS:     res.Elapsed.Milliseconds(),
			Reclaimed:     governor.CheckNow(),
		}
		reply.ErrorKind, reply.Error = errorFields(procErr)
		if procErr != nil {
			logging.WithContext(jobCtx, logger).Debug("job failed in worker", logging.Error(procErr))
		}
		if err := enc.Encode(reply); err != nil {
			return fmt.Errorf("send result: %w", err)
		}
	}
}
