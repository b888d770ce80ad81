package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one batch run.
	FieldRunID = "run_id"
	// FieldJobIndex is the 1-based position of a job in listing order.
	FieldJobIndex = "job_index"
	// FieldSource is the input image a log line refers to.
	FieldSource = "source"
	// FieldOutput is the written output image.
	FieldOutput = "output"
	// FieldStrategy is the execution strategy chosen for the run.
	FieldStrategy = "strategy"
	// FieldWorker identifies a pool worker.
	FieldWorker = "worker"
	// FieldEventType classifies notable events for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
)

type contextKey int

const (
	runIDKey contextKey = iota
	jobKey
)

type jobInfo struct {
	index  int
	source string
}

// WithRunID stores the run identifier on ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run identifier stored on ctx.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithJob stores the job index and source path on ctx.
func WithJob(ctx context.Context, index int, source string) context.Context {
	return context.WithValue(ctx, jobKey, jobInfo{index: index, source: source})
}

// JobFromContext returns the job index and source path stored on ctx.
func JobFromContext(ctx context.Context) (int, string, bool) {
	if ctx == nil {
		return 0, "", false
	}
	info, ok := ctx.Value(jobKey).(jobInfo)
	return info.index, info.source, ok
}

// ContextFields extracts standardized slog attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	fields := make([]slog.Attr, 0, 3)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if index, source, ok := JobFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldJobIndex, index), slog.String(FieldSource, source))
	}
	return fields
}

// WithContext returns logger augmented with the fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
