package preflight

import (
	"fmt"
	"strings"

	"watermark/internal/config"
	"watermark/internal/faults"
)

// Result reports the outcome of a single preflight check. Warning marks a
// check that passed only after correcting something, such as creating a
// missing directory.
type Result struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// RunAll executes every check that applies to cfg, in dispatch order.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckOverlayFile(cfg.Watermark.Path),
		EnsureDirectory("Input directory", cfg.Paths.InputDir, false),
		EnsureDirectory("Output directory", cfg.Paths.OutputDir, true),
	}
	if last := results[len(results)-1]; last.Passed {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes))
	}
	return results
}

// Failed returns the failing results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err folds failing results into one invalid-parameter error, or nil when
// every check passed.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return faults.Invalid("preflight failed: %s", strings.Join(parts, "; "))
}
