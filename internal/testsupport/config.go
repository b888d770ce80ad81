package testsupport

import (
	"path/filepath"
	"testing"

	"watermark/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a validated-shape config rooted in a per-test temp
// directory: input/, output/, Logo.png and journal.db all live under it. The
// overlay file itself is only created by WithOverlay.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Watermark.Path = filepath.Join(base, "Logo.png")
	cfgVal.Journal.Path = filepath.Join(base, "journal.db")

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithOverlay writes a width x height PNG overlay at the configured path. Its
// bottom padding rows are fully transparent.
func WithOverlay(width, height, padding int) ConfigOption {
	return func(b *configBuilder) {
		WriteOverlayPNG(b.t, b.cfg.Watermark.Path, width, height, padding)
	}
}

// WithConcurrency enables pooled execution with the given worker count.
func WithConcurrency(workers int, isolated bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Concurrency.Enabled = true
		b.cfg.Concurrency.Workers = workers
		b.cfg.Memory.Advanced = isolated
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
