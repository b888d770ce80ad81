// Package logging assembles the structured slog loggers used by the watermark
// CLI and its worker processes.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag log lines with the run identifier, job index and
// source path. A no-op logger is provided for tests and for wiring code that
// has no logger yet.
package logging
