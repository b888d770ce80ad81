package config

const (
	defaultInputDir            = "original"
	defaultOutputDir           = "output"
	defaultWatermarkPath       = "Logo.png"
	defaultOpacity             = 0.65
	defaultPosition            = "bottom"
	defaultScale               = 15.0
	defaultQuality             = 100
	defaultMarginVertical      = 20
	defaultMarginHorizontal    = 15
	defaultSuffixLength        = 6
	defaultCheckInterval       = 5
	defaultThresholdMB         = 500
	defaultBatchSize           = 20
	defaultLargeImageThreshold = 3000
	defaultJournalPath         = "~/.local/share/watermark/journal.db"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with the documented defaults. Every
// switch is off.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:  defaultInputDir,
			OutputDir: defaultOutputDir,
		},
		Watermark: Watermark{
			Path:             defaultWatermarkPath,
			Opacity:          defaultOpacity,
			Position:         defaultPosition,
			Scale:            defaultScale,
			Quality:          defaultQuality,
			MarginVertical:   defaultMarginVertical,
			MarginHorizontal: defaultMarginHorizontal,
		},
		Output: Output{
			SuffixLength: defaultSuffixLength,
		},
		Memory: Memory{
			CheckInterval:       defaultCheckInterval,
			ThresholdMB:         defaultThresholdMB,
			BatchSize:           defaultBatchSize,
			LargeImageThreshold: defaultLargeImageThreshold,
		},
		Journal: Journal{
			Path: defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
