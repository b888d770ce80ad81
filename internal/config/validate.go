package config

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"watermark/internal/faults"
	"watermark/internal/geometry"
	"watermark/internal/logging"
)

// Validate ensures the configuration is usable. Errors are tagged with
// faults.ErrInvalidParameter.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validatePaths,
		c.validateWatermark,
		c.validateOutput,
		c.validateMemory,
		c.validateConcurrency,
		c.validateJournal,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return faults.Invalid("%v", err)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.InputDir == "" {
		return fmt.Errorf("paths.input_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateWatermark() error {
	w := c.Watermark
	if w.Path == "" {
		return fmt.Errorf("watermark.path must be set")
	}
	if math.IsNaN(w.Opacity) || w.Opacity < 0 || w.Opacity > 1 {
		return fmt.Errorf("watermark.opacity must be between 0 and 1")
	}
	if !geometry.Placement(w.Position).Valid() {
		return fmt.Errorf("watermark.position %q is not a supported placement", w.Position)
	}
	if math.IsNaN(w.Scale) || w.Scale < 1 || w.Scale > 100 {
		return fmt.Errorf("watermark.scale must be between 1 and 100, got %v", w.Scale)
	}
	if err := ensureRange("watermark.quality", w.Quality, 1, 100); err != nil {
		return err
	}
	return ensureNonNegativeMap(map[string]int{
		"watermark.margin_vertical":   w.MarginVertical,
		"watermark.margin_horizontal": w.MarginHorizontal,
	})
}

func (c *Config) validateOutput() error {
	return ensureRange("output.suffix_length", c.Output.SuffixLength, 4, 36)
}

func (c *Config) validateMemory() error {
	if err := ensurePositiveMap(map[string]int{
		"memory.check_interval": c.Memory.CheckInterval,
		"memory.threshold_mb":   c.Memory.ThresholdMB,
		"memory.batch_size":     c.Memory.BatchSize,
	}); err != nil {
		return err
	}
	return ensureRange("memory.large_image_threshold", c.Memory.LargeImageThreshold, 100, 10000)
}

func (c *Config) validateConcurrency() error {
	if c.Concurrency.Workers < 0 {
		return fmt.Errorf("concurrency.workers must not be negative")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Path) == "" {
		return fmt.Errorf("journal.path must be set when journal.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains([]string{"console", "json"}, c.Logging.Format) {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func ensureRange(key string, value, lo, hi int) error {
	if value < lo || value > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, value)
	}
	return nil
}

// ensurePositiveMap and ensureNonNegativeMap report keys in sorted order so
// the same configuration always produces the same message.
func ensurePositiveMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func ensureNonNegativeMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}

func sortedKeys(values map[string]int) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
