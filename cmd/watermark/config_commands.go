package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"watermark/internal/config"
	"watermark/internal/preflight"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and run the preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			results := preflight.RunAll(cfg)
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r.Name, preflightKind(r.Passed, r.Warning), r.Detail, colorize))
			}
			if err := preflight.Err(results); err != nil {
				return err
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			source := ctx.configPath
			if !ctx.configExists {
				source += " (not found, defaults)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", source)
			fmt.Fprintln(out, renderTable(settingsColumns, configRows(cfg)))
			return nil
		},
	}
}

func configRows(cfg *config.Config) [][]string {
	itoa := strconv.Itoa
	return [][]string{
		{"paths.input_dir", cfg.Paths.InputDir},
		{"paths.output_dir", cfg.Paths.OutputDir},
		{"paths.recursive", yesNo(cfg.Paths.Recursive)},
		{"watermark.path", cfg.Watermark.Path},
		{"watermark.opacity", strconv.FormatFloat(cfg.Watermark.Opacity, 'f', -1, 64)},
		{"watermark.position", cfg.Watermark.Position},
		{"watermark.scale", strconv.FormatFloat(cfg.Watermark.Scale, 'f', -1, 64) + "%"},
		{"watermark.quality", itoa(cfg.Watermark.Quality)},
		{"watermark.margin_vertical", itoa(cfg.Watermark.MarginVertical) + " px"},
		{"watermark.margin_horizontal", itoa(cfg.Watermark.MarginHorizontal) + " px"},
		{"output.suffix_length", itoa(cfg.Output.SuffixLength)},
		{"memory.check_interval", cfg.CheckInterval().String()},
		{"memory.threshold_mb", itoa(cfg.Memory.ThresholdMB)},
		{"memory.batch_size", itoa(cfg.Memory.BatchSize)},
		{"memory.mixed_mode", yesNo(cfg.Memory.MixedMode)},
		{"memory.advanced", yesNo(cfg.Memory.Advanced)},
		{"memory.precompression", yesNo(cfg.Memory.Precompression)},
		{"memory.large_image_threshold", itoa(cfg.Memory.LargeImageThreshold) + " px"},
		{"concurrency.enabled", yesNo(cfg.Concurrency.Enabled)},
		{"concurrency.workers", workersLabel(cfg.Concurrency.Workers)},
		{"journal.enabled", yesNo(cfg.Journal.Enabled)},
		{"journal.path", cfg.Journal.Path},
		{"logging.format", cfg.Logging.Format},
		{"logging.level", cfg.Logging.Level},
		{"logging.file", cfg.Logging.File},
	}
}

func workersLabel(workers int) string {
	if workers == 0 {
		return "auto"
	}
	return strconv.Itoa(workers)
}
