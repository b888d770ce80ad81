package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"strings"

	"watermark/internal/logging"
)

// forwardLogs re-emits a worker's JSON log lines through logger, keeping the
// worker's level and message. Lines that are not JSON are forwarded verbatim
// at warn level.
func forwardLogs(ctx context.Context, r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxMessageBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			logger.Warn("worker output", logging.String("line", line))
			continue
		}
		level := parseRecordLevel(record["level"])
		msg, _ := record["msg"].(string)
		logger.Log(ctx, level, msg, logging.Args(recordAttrs(record)...)...)
	}
	// Drain so the worker never blocks on a full stderr pipe.
	_, _ = io.Copy(io.Discard, r)
}

func parseRecordLevel(v any) slog.Level {
	s, _ := v.(string)
	level, _ := logging.ParseLevel(s)
	return level
}

// recordAttrs returns the record's fields in key order, minus the ones the
// parent's own handler regenerates.
func recordAttrs(record map[string]any) []logging.Attr {
	keys := make([]string, 0, len(record))
	for key := range record {
		switch key {
		case "ts", "time", "level", "msg", "source", logging.FieldComponent, logging.FieldWorker:
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	attrs := make([]logging.Attr, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, logging.Any(key, record[key]))
	}
	return attrs
}
