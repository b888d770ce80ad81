package main

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"watermark/internal/batch"
)

var printer = message.NewPrinter(language.English)

var titleCaser = cases.Title(language.English)

// renderSummary formats the end-of-run report: a status line followed by the
// counters table.
func renderSummary(summary batch.Summary, runErr error, runID string, colorize bool) string {
	var b strings.Builder

	kind := statusOK
	detail := printer.Sprintf("%d images watermarked", summary.Completed)
	var runFailure *batch.RunError
	switch {
	case errors.As(runErr, &runFailure):
		kind = statusError
		detail = printer.Sprintf("stopped at job #%d (%s)", runFailure.Index, runFailure.Path)
	case runErr != nil:
		kind = statusError
		detail = runErr.Error()
	case summary.Completed == 0:
		kind = statusWarn
		detail = "no images found"
	}
	b.WriteString(renderStatusLine("Batch", kind, detail, colorize))
	b.WriteString("\n")

	rows := [][]string{
		{"Run", runID},
		{"Strategy", strategyLabel(summary.Strategy)},
		{"Workers", printer.Sprintf("%d", summary.Workers)},
		{"Attempted", printer.Sprintf("%d", summary.Attempted)},
		{"Completed", printer.Sprintf("%d", summary.Completed)},
		{"Failed", printer.Sprintf("%d", summary.Failed)},
		{"Reclaims", printer.Sprintf("%d", summary.Reclaims)},
		{"Peak memory", formatMiB(summary.PeakBytes)},
		{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
	}
	b.WriteString(renderTable(summaryColumns, rows))
	return b.String()
}

func strategyLabel(s batch.Strategy) string {
	return titleCaser.String(strings.ReplaceAll(s.String(), "-", " "))
}

func formatMiB(bytes uint64) string {
	if bytes == 0 {
		return "n/a"
	}
	return printer.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
}
