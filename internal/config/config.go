package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"watermark/internal/faults"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output directory configuration.
type Paths struct {
	InputDir  string `toml:"input_dir" yaml:"input_dir"`
	OutputDir string `toml:"output_dir" yaml:"output_dir"`
	Recursive bool   `toml:"recursive" yaml:"recursive"`
}

// Watermark describes the overlay and how it is placed.
type Watermark struct {
	Path             string  `toml:"path" yaml:"path"`
	Opacity          float64 `toml:"opacity" yaml:"opacity"`
	Position         string  `toml:"position" yaml:"position"`
	Scale            float64 `toml:"scale" yaml:"scale"`
	Quality          int     `toml:"quality" yaml:"quality"`
	MarginVertical   int     `toml:"margin_vertical" yaml:"margin_vertical"`
	MarginHorizontal int     `toml:"margin_horizontal" yaml:"margin_horizontal"`
}

// Output controls output naming.
type Output struct {
	SuffixLength int `toml:"suffix_length" yaml:"suffix_length"`
}

// Memory contains the memory pressure policy.
type Memory struct {
	CheckInterval       int  `toml:"check_interval" yaml:"check_interval"`
	ThresholdMB         int  `toml:"threshold_mb" yaml:"threshold_mb"`
	BatchSize           int  `toml:"batch_size" yaml:"batch_size"`
	MixedMode           bool `toml:"mixed_mode" yaml:"mixed_mode"`
	Advanced            bool `toml:"advanced" yaml:"advanced"`
	Precompression      bool `toml:"precompression" yaml:"precompression"`
	LargeImageThreshold int  `toml:"large_image_threshold" yaml:"large_image_threshold"`
}

// Concurrency selects pooled execution.
type Concurrency struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Workers bounds the pool size; zero means one worker per CPU.
	Workers int `toml:"workers" yaml:"workers"`
}

// Journal configures the optional SQLite run journal.
type Journal struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
	File   string `toml:"file" yaml:"file"`
}

// Config encapsulates every option of a batch run.
//
// Configuration sections:
//   - Paths: input and output directories, recursion
//   - Watermark: overlay file, opacity, placement, scale, quality, margins
//   - Output: unique suffix length
//   - Memory: sampler interval, threshold, batch size, precompression
//   - Concurrency: pooled execution and worker count
//   - Journal: SQLite run history
//   - Logging: log format, level and optional file
type Config struct {
	Paths       Paths       `toml:"paths" yaml:"paths"`
	Watermark   Watermark   `toml:"watermark" yaml:"watermark"`
	Output      Output      `toml:"output" yaml:"output"`
	Memory      Memory      `toml:"memory" yaml:"memory"`
	Concurrency Concurrency `toml:"concurrency" yaml:"concurrency"`
	Journal     Journal     `toml:"journal" yaml:"journal"`
	Logging     Logging     `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path of the per-user configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/watermark/config.toml")
}

// Load locates and decodes a configuration file, applies overrides, then
// normalizes and validates the result. It also reports the resolved file path
// and whether that file existed. Every validation failure is tagged with
// faults.ErrInvalidParameter.
func Load(path string, overrides Overrides) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	overrides.Apply(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, faults.Invalid("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := Decode(file, formatFor(path), cfg); err != nil {
		return faults.Invalid("parse config %s: %v", path, err)
	}
	return nil
}

// Decode reads a TOML or YAML document from r into cfg. Unknown keys are
// rejected so misspelled options do not silently fall back to defaults.
func Decode(r io.Reader, format string, cfg *Config) error {
	switch format {
	case "yaml":
		decoder := yaml.NewDecoder(r)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case "toml":
		decoder := toml.NewDecoder(r)
		decoder.DisallowUnknownFields()
		return decoder.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config format %q", format)
	}
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("watermark.toml")
	if err != nil {
		return "", false, err
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{projectPath, defaultPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// CheckInterval returns the background sampler period.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Memory.CheckInterval) * time.Second
}

// ThresholdBytes returns the memory threshold in bytes.
func (c *Config) ThresholdBytes() uint64 {
	return uint64(c.Memory.ThresholdMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
