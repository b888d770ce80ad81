package memory

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"watermark/internal/geometry"
	"watermark/internal/logging"
)

// Budget is the run-wide memory policy.
type Budget struct {
	// SampleInterval is the background sampler period; zero disables it.
	SampleInterval time.Duration
	// ByteThreshold is the resident set size above which reclamation is requested.
	ByteThreshold uint64
	// BatchSize requests reclamation every BatchSize completed jobs; zero disables it.
	BatchSize int64
	// MixedMode checks resident memory after every job before falling back to
	// the batch-size heuristic.
	MixedMode bool
	// Precompress enables downscaling of base images larger than
	// LargeImageThreshold on either side.
	Precompress         bool
	LargeImageThreshold int
}

// Trigger names what caused a reclamation request.
type Trigger string

const (
	TriggerSampler   Trigger = "sampler"
	TriggerThreshold Trigger = "threshold"
	TriggerBatch     Trigger = "batch"
	TriggerFinal     Trigger = "final"
)

// Resizer is the slice of the raster codec the precompression policy needs.
type Resizer interface {
	Resize(img image.Image, width, height int) *image.NRGBA
}

// Option customises a Governor.
type Option func(*Governor)

// WithSampler replaces the resident memory reader.
func WithSampler(sample func() (uint64, error)) Option {
	return func(g *Governor) {
		if sample != nil {
			g.sample = sample
		}
	}
}

// WithReclaimer replaces the reclamation hint.
func WithReclaimer(reclaim func()) Option {
	return func(g *Governor) {
		if reclaim != nil {
			g.reclaim = reclaim
		}
	}
}

// Governor applies a Budget. AfterJob, CheckNow and Precompress are safe for
// concurrent use; Start and Stop are owned by the scheduler.
type Governor struct {
	budget  Budget
	logger  *slog.Logger
	sample  func() (uint64, error)
	reclaim func()

	reclaims atomic.Int64
	peak     atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewGovernor returns a governor for budget. The default sampler reads the
// process resident set size and the default reclaimer is debug.FreeOSMemory.
func NewGovernor(budget Budget, logger *slog.Logger, opts ...Option) *Governor {
	g := &Governor{
		budget:  budget,
		logger:  logging.NewComponentLogger(logger, "memory"),
		sample:  ResidentBytes,
		reclaim: debug.FreeOSMemory,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the background sampler. It is a no-op when the sample
// interval is zero.
func (g *Governor) Start(ctx context.Context) error {
	if g.budget.SampleInterval <= 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return errors.New("memory sampler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running = true
	g.wg.Add(1)
	go g.loop(runCtx)
	return nil
}

// Stop signals the sampler and waits until it has exited.
func (g *Governor) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	g.running = false
	g.cancel = nil
	g.mu.Unlock()

	cancel()
	g.wg.Wait()
}

func (g *Governor) loop(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.budget.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.checkThreshold(TriggerSampler)
		}
	}
}

// AfterJob applies the per-job heuristic once completed jobs have finished.
// In mixed mode resident memory is checked first and the batch-size rule only
// applies when usage is under the threshold. It reports whether reclamation
// was requested.
func (g *Governor) AfterJob(completed int64) bool {
	if g.budget.MixedMode && g.checkThreshold(TriggerThreshold) {
		return true
	}
	if g.budget.BatchSize > 0 && completed > 0 && completed%g.budget.BatchSize == 0 {
		g.request(TriggerBatch, 0)
		return true
	}
	return false
}

// CheckNow samples resident memory and requests reclamation when it exceeds
// the threshold. Isolated workers call it after every job.
func (g *Governor) CheckNow() bool {
	return g.checkThreshold(TriggerThreshold)
}

// Reclaim requests reclamation unconditionally, used once the last job of a
// run has finished.
func (g *Governor) Reclaim() {
	g.request(TriggerFinal, 0)
}

// Reclaims returns the number of reclamation requests issued so far.
func (g *Governor) Reclaims() int64 {
	return g.reclaims.Load()
}

// PeakBytes returns the highest resident size observed by any sample.
func (g *Governor) PeakBytes() uint64 {
	return g.peak.Load()
}

func (g *Governor) checkThreshold(trigger Trigger) bool {
	if g.budget.ByteThreshold == 0 {
		return false
	}
	used, err := g.sample()
	if err != nil {
		g.logger.Debug("memory sample failed", logging.Error(err))
		return false
	}
	for {
		peak := g.peak.Load()
		if used <= peak || g.peak.CompareAndSwap(peak, used) {
			break
		}
	}
	if used <= g.budget.ByteThreshold {
		return false
	}
	g.request(trigger, used)
	return true
}

func (g *Governor) request(trigger Trigger, used uint64) {
	g.reclaims.Add(1)
	g.logger.Debug("requesting memory reclamation",
		logging.String(logging.FieldEventType, "memory_reclaim"),
		logging.String("trigger", string(trigger)),
		logging.Uint64("resident_bytes", used),
		logging.Uint64("threshold_bytes", g.budget.ByteThreshold),
	)
	g.reclaim()
}

// Precompress downscales img so its longer side equals the large image
// threshold when precompression is enabled and either side exceeds it.
func (g *Governor) Precompress(codec Resizer, img *image.NRGBA) (*image.NRGBA, bool) {
	if !g.budget.Precompress || img == nil {
		return img, false
	}
	size := geometry.SizeOf(img.Bounds())
	target, shrink := geometry.FitWithin(size, g.budget.LargeImageThreshold)
	if !shrink {
		return img, false
	}
	g.logger.Debug("precompressing large image",
		logging.String("from", size.String()),
		logging.String("to", target.String()),
	)
	return codec.Resize(img, target.Width, target.Height), true
}
