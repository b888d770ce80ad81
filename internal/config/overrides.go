package config

// Overrides carries explicitly supplied values that win over the config file.
// A nil field means "not supplied".
type Overrides struct {
	InputDir            *string
	OutputDir           *string
	Recursive           *bool
	WatermarkPath       *string
	Opacity             *float64
	Position            *string
	Scale               *float64
	Quality             *int
	MarginVertical      *int
	MarginHorizontal    *int
	SuffixLength        *int
	CheckInterval       *int
	ThresholdMB         *int
	BatchSize           *int
	MixedMode           *bool
	AdvancedMemory      *bool
	Precompression      *bool
	LargeImageThreshold *int
	Concurrent          *bool
	Workers             *int
	Journal             *bool
	JournalPath         *string
	LogFormat           *string
	LogLevel            *string
	LogFile             *string
}

// Apply copies every supplied value into cfg.
func (o Overrides) Apply(cfg *Config) {
	set(&cfg.Paths.InputDir, o.InputDir)
	set(&cfg.Paths.OutputDir, o.OutputDir)
	set(&cfg.Paths.Recursive, o.Recursive)
	set(&cfg.Watermark.Path, o.WatermarkPath)
	set(&cfg.Watermark.Opacity, o.Opacity)
	set(&cfg.Watermark.Position, o.Position)
	set(&cfg.Watermark.Scale, o.Scale)
	set(&cfg.Watermark.Quality, o.Quality)
	set(&cfg.Watermark.MarginVertical, o.MarginVertical)
	set(&cfg.Watermark.MarginHorizontal, o.MarginHorizontal)
	set(&cfg.Output.SuffixLength, o.SuffixLength)
	set(&cfg.Memory.CheckInterval, o.CheckInterval)
	set(&cfg.Memory.ThresholdMB, o.ThresholdMB)
	set(&cfg.Memory.BatchSize, o.BatchSize)
	set(&cfg.Memory.MixedMode, o.MixedMode)
	set(&cfg.Memory.Advanced, o.AdvancedMemory)
	set(&cfg.Memory.Precompression, o.Precompression)
	set(&cfg.Memory.LargeImageThreshold, o.LargeImageThreshold)
	set(&cfg.Concurrency.Enabled, o.Concurrent)
	set(&cfg.Concurrency.Workers, o.Workers)
	set(&cfg.Journal.Enabled, o.Journal)
	set(&cfg.Journal.Path, o.JournalPath)
	set(&cfg.Logging.Format, o.LogFormat)
	set(&cfg.Logging.Level, o.LogLevel)
	set(&cfg.Logging.File, o.LogFile)
}

func set[T any](dst *T, value *T) {
	if value != nil {
		*dst = *value
	}
}
