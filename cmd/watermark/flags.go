package main

import (
	"github.com/spf13/pflag"

	"watermark/internal/config"
)

// runFlags holds the values bound to the run flags. Only flags the user set
// become overrides, so the config file keeps precedence over flag defaults.
type runFlags struct {
	inputDir            string
	outputDir           string
	recursive           bool
	watermarkPath       string
	opacity             float64
	position            string
	scale               float64
	quality             int
	marginVertical      int
	marginHorizontal    int
	suffixLength        int
	checkInterval       int
	thresholdMB         int
	batchSize           int
	mixedMode           bool
	advancedMemory      bool
	precompression      bool
	largeImageThreshold int
	concurrent          bool
	workers             int
	journal             bool
	journalPath         string
	logFormat           string
	logLevel            string
	logFile             string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	def := config.Default()
	fs.StringVarP(&f.inputDir, "input-folder", "i", def.Paths.InputDir, "Directory containing the source images")
	fs.StringVarP(&f.outputDir, "output-folder", "O", def.Paths.OutputDir, "Directory receiving watermarked images")
	fs.BoolVarP(&f.recursive, "recursive", "r", def.Paths.Recursive, "Process subdirectories and mirror them under the output folder")
	fs.StringVarP(&f.watermarkPath, "watermark", "w", def.Watermark.Path, "Watermark image file")
	fs.Float64VarP(&f.opacity, "opacity", "o", def.Watermark.Opacity, "Watermark opacity between 0 and 1")
	fs.StringVarP(&f.position, "position", "p", def.Watermark.Position, "Watermark position: left_top, top, right_top, bottom, right_bottom, left_bottom")
	fs.Float64VarP(&f.scale, "scale", "s", def.Watermark.Scale, "Watermark width as a percentage of the image's shorter side (1-100)")
	fs.IntVarP(&f.quality, "quality", "q", def.Watermark.Quality, "JPEG output quality (1-100)")
	fs.IntVar(&f.marginVertical, "margin-vertical", def.Watermark.MarginVertical, "Edge margin in pixels for portrait images")
	fs.IntVar(&f.marginHorizontal, "margin-horizontal", def.Watermark.MarginHorizontal, "Edge margin in pixels for landscape images")
	fs.IntVar(&f.suffixLength, "uuid-length", def.Output.SuffixLength, "Length of the random output suffix used by parallel runs (4-36)")
	fs.IntVar(&f.checkInterval, "memory-check-interval", def.Memory.CheckInterval, "Seconds between background memory samples")
	fs.IntVar(&f.thresholdMB, "gc-memory-threshold", def.Memory.ThresholdMB, "Resident memory in MB above which memory is reclaimed")
	fs.IntVar(&f.batchSize, "gc-batch-size", def.Memory.BatchSize, "Reclaim memory every N completed images")
	fs.BoolVar(&f.mixedMode, "enable-mixed-mode", def.Memory.MixedMode, "Check memory after every image before applying the batch rule")
	fs.BoolVar(&f.advancedMemory, "enable-advanced-memory-management", def.Memory.Advanced, "Run parallel workers as separate processes")
	fs.BoolVar(&f.precompression, "enable-precompression", def.Memory.Precompression, "Downscale very large images before watermarking")
	fs.IntVar(&f.largeImageThreshold, "large-image-threshold", def.Memory.LargeImageThreshold, "Longest side in pixels above which precompression applies")
	fs.BoolVar(&f.concurrent, "enable-parallel", def.Concurrency.Enabled, "Process images in parallel")
	fs.IntVar(&f.workers, "workers", def.Concurrency.Workers, "Parallel worker count (0 = one per CPU)")
	fs.BoolVar(&f.journal, "journal", def.Journal.Enabled, "Record the run in the SQLite journal")
	fs.StringVar(&f.journalPath, "journal-path", def.Journal.Path, "Journal database file")
	fs.StringVar(&f.logFormat, "log-format", def.Logging.Format, "Log format: console or json")
	fs.StringVar(&f.logLevel, "log-level", def.Logging.Level, "Log level: debug, info, warn or error")
	fs.StringVar(&f.logFile, "log-file", def.Logging.File, "Also write logs to this file")
}

// overrides converts the flags that were explicitly set into config overrides.
func (f *runFlags) overrides(fs *pflag.FlagSet) config.Overrides {
	var o config.Overrides
	bind(fs, "input-folder", &o.InputDir, f.inputDir)
	bind(fs, "output-folder", &o.OutputDir, f.outputDir)
	bind(fs, "recursive", &o.Recursive, f.recursive)
	bind(fs, "watermark", &o.WatermarkPath, f.watermarkPath)
	bind(fs, "opacity", &o.Opacity, f.opacity)
	bind(fs, "position", &o.Position, f.position)
	bind(fs, "scale", &o.Scale, f.scale)
	bind(fs, "quality", &o.Quality, f.quality)
	bind(fs, "margin-vertical", &o.MarginVertical, f.marginVertical)
	bind(fs, "margin-horizontal", &o.MarginHorizontal, f.marginHorizontal)
	bind(fs, "uuid-length", &o.SuffixLength, f.suffixLength)
	bind(fs, "memory-check-interval", &o.CheckInterval, f.checkInterval)
	bind(fs, "gc-memory-threshold", &o.ThresholdMB, f.thresholdMB)
	bind(fs, "gc-batch-size", &o.BatchSize, f.batchSize)
	bind(fs, "enable-mixed-mode", &o.MixedMode, f.mixedMode)
	bind(fs, "enable-advanced-memory-management", &o.AdvancedMemory, f.advancedMemory)
	bind(fs, "enable-precompression", &o.Precompression, f.precompression)
	bind(fs, "large-image-threshold", &o.LargeImageThreshold, f.largeImageThreshold)
	bind(fs, "enable-parallel", &o.Concurrent, f.concurrent)
	bind(fs, "workers", &o.Workers, f.workers)
	bind(fs, "journal", &o.Journal, f.journal)
	bind(fs, "journal-path", &o.JournalPath, f.journalPath)
	bind(fs, "log-format", &o.LogFormat, f.logFormat)
	bind(fs, "log-level", &o.LogLevel, f.logLevel)
	bind(fs, "log-file", &o.LogFile, f.logFile)
	return o
}

func bind[T any](fs *pflag.FlagSet, name string, dst **T, value T) {
	if fs == nil || !fs.Changed(name) {
		return
	}
	v := value
	*dst = &v
}
