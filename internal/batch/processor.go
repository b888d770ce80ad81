package batch

import (
	"context"
	"log/slog"
	"time"

	"watermark/internal/geometry"
	"watermark/internal/logging"
	"watermark/internal/memory"
	"watermark/internal/outpath"
	"watermark/internal/overlay"
	"watermark/internal/raster"
)

// Processor runs the single-job pipeline. It holds only read-only run state
// and is safe for concurrent use.
type Processor struct {
	codec    raster.Codec
	overlay  *overlay.Descriptor
	resolver *outpath.Resolver
	governor *memory.Governor
	policy   Policy
	logger   *slog.Logger
}

// NewProcessor wires the collaborators built once per run.
func NewProcessor(codec raster.Codec, desc *overlay.Descriptor, resolver *outpath.Resolver, governor *memory.Governor, policy Policy, logger *slog.Logger) *Processor {
	return &Processor{
		codec:    codec,
		overlay:  desc,
		resolver: resolver,
		governor: governor,
		policy:   policy,
		logger:   logging.NewComponentLogger(logger, "processor"),
	}
}

// Policy returns the snapshot stamped onto new jobs.
func (p *Processor) Policy() Policy {
	return p.policy
}

// Process decodes job.Source, composites the overlay, and writes the result.
// Errors carry a faults marker and the stage that failed.
func (p *Processor) Process(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	result := Result{Index: job.Index, Source: job.Source}
	logger := logging.WithContext(ctx, p.logger)

	base, err := p.codec.Decode(job.Source)
	if err != nil {
		return result, err
	}
	base = raster.EnsureAlpha(base)
	base, result.Precompressed = p.governor.Precompress(p.codec, base)

	baseSize := geometry.SizeOf(base.Bounds())
	scaled, err := p.overlay.ScaleFor(p.codec, baseSize, job.Policy.ScalePercent)
	if err != nil {
		return result, err
	}
	margin := job.Policy.Margins.Select(baseSize)
	at, err := geometry.ComputePosition(job.Policy.Placement, baseSize, scaled.Size(), scaled.TrailingMargin, margin)
	if err != nil {
		return result, err
	}
	result.Position = at

	composed := p.codec.Composite(base, scaled.Image, at)
	// Outputs keep the source extension.
	if raster.LacksAlpha(job.Source) {
		composed = raster.ToOpaque(composed)
	}

	dest, err := p.resolver.Resolve(job.Source)
	if err != nil {
		return result, err
	}
	if err := outpath.Ensure(dest); err != nil {
		return result, err
	}
	if err := p.codec.Encode(composed, dest, job.Policy.Quality); err != nil {
		return result, err
	}

	result.Output = dest
	result.Elapsed = time.Since(start)
	logger.Debug("job pipeline finished",
		logging.String("base", baseSize.String()),
		logging.String("overlay", scaled.Size().String()),
		logging.Int("x", at.X),
		logging.Int("y", at.Y),
		logging.Bool("precompressed", result.Precompressed),
	)
	return result, nil
}
