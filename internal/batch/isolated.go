package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"watermark/internal/faults"
	"watermark/internal/logging"
)

// WorkerCommand is how an isolated worker process is started. The process
// must run Serve on its stdin and stdout.
type WorkerCommand struct {
	Path string
	Args []string
	Env  []string
}

// SelfWorkerCommand re-executes the running binary with args, normally the
// hidden worker subcommand.
func SelfWorkerCommand(args ...string) (WorkerCommand, error) {
	exe, err := os.Executable()
	if err != nil {
		return WorkerCommand{}, faults.Wrap(faults.ErrConcurrency, "isolated pool", "locate executable", "", err)
	}
	return WorkerCommand{Path: exe, Args: args}, nil
}

var commandContext = exec.CommandContext

// runIsolated starts every worker before dispatching, then feeds jobs through
// an unbuffered channel so a job is only handed out when a worker is idle.
func (s *Scheduler) runIsolated(ctx context.Context, paths iter.Seq2[string, error]) error {
	if s.opts.Config == nil || s.opts.Worker.Path == "" {
		return faults.Wrap(faults.ErrConcurrency, "isolated pool", "configure", "worker command and configuration are required", nil)
	}

	workers := make([]*workerProcess, 0, s.opts.Workers)
	for id := 1; id <= s.opts.Workers; id++ {
		w, err := s.startWorker(ctx, id)
		if err != nil {
			for _, started := range workers {
				started.close()
			}
			return faults.Wrap(faults.ErrConcurrency, "isolated pool", "start worker", fmt.Sprintf("worker %d", id), err)
		}
		workers = append(workers, w)
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan Job)
	for _, w := range workers {
		g.Go(func() error {
			defer w.close()
			for job := range jobs {
				if gctx.Err() != nil {
					continue
				}
				jobCtx := logging.WithJob(gctx, job.Index, job.Source)
				s.markAttempted()
				res, err := w.run(job)
				if err := s.finish(jobCtx, job, res, err); err != nil {
					return err
				}
			}
			return nil
		})
	}

	var listErr error
	index := 0
dispatch:
	for source, err := range paths {
		if err != nil {
			listErr = err
			break
		}
		index++
		select {
		case jobs <- s.newJob(index, source):
		case <-gctx.Done():
			break dispatch
		}
	}
	close(jobs)

	if err := g.Wait(); err != nil {
		return err
	}
	if listErr != nil {
		return listErr
	}
	return ctx.Err()
}

type workerProcess struct {
	id       int
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	enc      *json.Encoder
	results  *bufio.Scanner
	logsDone chan struct{}
	logger   *slog.Logger
}

func (s *Scheduler) startWorker(ctx context.Context, id int) (*workerProcess, error) {
	command := s.opts.Worker
	cmd := commandContext(ctx, command.Path, command.Args...)
	if len(command.Env) > 0 {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, command.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	logger := s.logger.With(logging.Int(logging.FieldWorker, id))
	w := &workerProcess{
		id:       id,
		cmd:      cmd,
		stdin:    stdin,
		enc:      json.NewEncoder(stdin),
		logsDone: make(chan struct{}),
		logger:   logger,
	}
	go func() {
		defer close(w.logsDone)
		forwardLogs(ctx, stderr, logger)
	}()

	w.results = newMessageScanner(stdout)

	init := workerInit{
		RunID:    s.opts.RunID,
		Worker:   id,
		LogLevel: s.opts.Config.Logging.Level,
		Config:   *s.opts.Config,
	}
	if err := w.enc.Encode(init); err != nil {
		w.close()
		return nil, fmt.Errorf("send worker init: %w", err)
	}
	var ready workerReady
	if err := readMessage(w.results, &ready); err != nil {
		w.close()
		if errors.Is(err, io.EOF) {
			err = errWorkerGone
		}
		return nil, err
	}
	if ready.Error != "" {
		w.close()
		return nil, errorFromFields(ready.ErrorKind, ready.Error)
	}
	logger.Debug("worker ready", logging.Int("pid", ready.PID))
	return w, nil
}

// run sends one job and waits for its result. A worker that dies mid-job is
// reported as a concurrency failure of that job.
func (w *workerProcess) run(job Job) (Result, error) {
	res := Result{Index: job.Index, Source: job.Source}
	if err := w.enc.Encode(jobRequest{Index: job.Index, Source: job.Source}); err != nil {
		return res, faults.Wrap(faults.ErrConcurrency, "isolated pool", "send job", fmt.Sprintf("worker %d", w.id), err)
	}

	var reply jobResult
	if err := readMessage(w.results, &reply); err != nil {
		if errors.Is(err, io.EOF) {
			err = errWorkerGone
		}
		return res, faults.Wrap(faults.ErrConcurrency, "isolated pool", "receive result", fmt.Sprintf("worker %d", w.id), err)
	}
	if reply.Index != job.Index {
		return res, faults.Wrap(faults.ErrConcurrency, "isolated pool", "receive result",
			fmt.Sprintf("worker %d answered job %d while job %d was pending", w.id, reply.Index, job.Index), nil)
	}

	res.Output = reply.Output
	res.Position = image.Pt(reply.X, reply.Y)
	res.Precompressed = reply.Precompressed
	res.Elapsed = time.Duration(reply.ElapsedMS) * time.Millisecond
	if reply.Reclaimed {
		w.logger.Debug("worker reclaimed memory after job", logging.Int(logging.FieldJobIndex, job.Index))
	}
	return res, errorFromFields(reply.ErrorKind, reply.Error)
}

// close ends the worker's input, waits for its log stream to drain, and reaps
// the process.
func (w *workerProcess) close() {
	_ = w.stdin.Close()
	<-w.logsDone
	if err := w.cmd.Wait(); err != nil {
		w.logger.Warn("worker exited with error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "worker_exit"),
			logging.String(logging.FieldErrorHint, "check worker logs above"),
		)
	}
}
