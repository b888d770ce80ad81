package batch

import (
	"log/slog"

	"watermark/internal/config"
	"watermark/internal/geometry"
	"watermark/internal/memory"
	"watermark/internal/outpath"
	"watermark/internal/overlay"
	"watermark/internal/raster"
)

// PolicyFromConfig snapshots the placement and encoding options.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Placement: geometry.Placement(cfg.Watermark.Position),
		Margins: geometry.Margins{
			Vertical:   cfg.Watermark.MarginVertical,
			Horizontal: cfg.Watermark.MarginHorizontal,
		},
		ScalePercent: cfg.Watermark.Scale,
		Quality:      cfg.Watermark.Quality,
	}
}

// BudgetFromConfig converts the memory section into a governor budget.
func BudgetFromConfig(cfg *config.Config) memory.Budget {
	return memory.Budget{
		SampleInterval:      cfg.CheckInterval(),
		ByteThreshold:       cfg.ThresholdBytes(),
		BatchSize:           int64(cfg.Memory.BatchSize),
		MixedMode:           cfg.Memory.MixedMode,
		Precompress:         cfg.Memory.Precompression,
		LargeImageThreshold: cfg.Memory.LargeImageThreshold,
	}
}

// NewPipeline builds the processor and governor for one run: the overlay is
// decoded and prepared exactly once here and shared by every job.
func NewPipeline(cfg *config.Config, strategy Strategy, codec raster.Codec, logger *slog.Logger, opts ...memory.Option) (*Processor, *memory.Governor, error) {
	desc, err := overlay.Load(codec, cfg.Watermark.Path, cfg.Watermark.Opacity)
	if err != nil {
		return nil, nil, err
	}
	resolver, err := outpath.New(outpath.Options{
		InputRoot:    cfg.Paths.InputDir,
		OutputRoot:   cfg.Paths.OutputDir,
		Recursive:    cfg.Paths.Recursive,
		Mode:         strategy.NamingMode(),
		SuffixLength: cfg.Output.SuffixLength,
	})
	if err != nil {
		return nil, nil, err
	}
	governor := memory.NewGovernor(BudgetFromConfig(cfg), logger, opts...)
	return NewProcessor(codec, desc, resolver, governor, PolicyFromConfig(cfg), logger), governor, nil
}
