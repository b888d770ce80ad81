package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"watermark/internal/batch"
	"watermark/internal/logging"
)

// newWorkerCommand is the entry point of an isolated pool worker. It speaks
// the line protocol on stdin and stdout and logs JSON to stderr, which the
// parent forwards into its own log stream.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:         workerCommandName,
		Short:       "Run as an isolated batch worker",
		Hidden:      true,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			newLogger := func(level string) *slog.Logger {
				logger, err := logging.New(logging.Options{Level: level, Format: "json", OutputPaths: []string{"stderr"}})
				if err != nil {
					return logging.NewNop()
				}
				return logger
			}
			return batch.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), newLogger)
		},
	}
}
