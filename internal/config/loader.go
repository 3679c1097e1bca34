package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFromPath picks the syntax from the file extension. Anything other
// than .toml is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads the configuration file at path on top of [Default] and
// validates the result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a config in the given format from r over
// [Default] and validates the result. Unknown keys are errors.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	cfg.expandEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv resolves ${VAR} references in provider credentials and URLs so
// secrets can stay out of the file.
func (c *Config) expandEnv() {
	for i := range c.Transcribe.Providers {
		p := &c.Transcribe.Providers[i]
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BaseURL = os.ExpandEnv(p.BaseURL)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Paths.WorkDir == "" {
		errs = append(errs, errors.New("paths.work_dir must not be empty"))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}

	s := cfg.Segment
	if s.TopDB <= 0 {
		errs = append(errs, fmt.Errorf("segment.top_db %.2f must be positive", s.TopDB))
	}
	if s.MinimumSilent < 0 || s.MinimumNonSilent < 0 || s.SilentBuffer < 0 {
		errs = append(errs, errors.New("segment durations must not be negative"))
	}
	if s.FrameLength <= 0 || s.HopLength <= 0 {
		errs = append(errs, fmt.Errorf("segment.frame_length %d and hop_length %d must be positive", s.FrameLength, s.HopLength))
	}

	if cfg.Transcribe.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("transcribe.concurrency %d must be positive", cfg.Transcribe.Concurrency))
	}
	for i, p := range cfg.Transcribe.Providers {
		prefix := fmt.Sprintf("transcribe.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if !slices.Contains(ProviderNames, p.Name) {
			slog.Warn("unknown transcriber name, it must be registered before use",
				"name", p.Name, "known", ProviderNames)
		}
		if p.Name == "whisper" && p.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for whisper", prefix))
		}
		if p.Name == "openai" && p.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for openai", prefix))
		}
		if p.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout_seconds must not be negative", prefix))
		}
	}

	a := cfg.Align
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"align.substring_threshold", a.SubstringThreshold},
		{"align.match_threshold_short", a.MatchThresholdShort},
		{"align.match_threshold_long", a.MatchThresholdLong},
	} {
		if th.value < 0 || th.value > 1 {
			errs = append(errs, fmt.Errorf("%s %.3f is out of range [0, 1]", th.name, th.value))
		}
	}
	if a.ShortLongSeparator < 0 {
		errs = append(errs, fmt.Errorf("align.short_long_separator %d must not be negative", a.ShortLongSeparator))
	}
	if a.BacktrackLimit < 0 || a.ForwardtrackLimit < 0 {
		errs = append(errs, errors.New("align.backtrack_limit and align.forwardtrack_limit must not be negative"))
	}
	if a.MaxNameLength <= 0 {
		errs = append(errs, fmt.Errorf("align.max_name_length %d must be positive", a.MaxNameLength))
	}

	c := cfg.Clips
	if c.StartTrimThreshold < 0 || c.EndTrimThreshold < 0 || c.StartTrimBuffer < 0 || c.EndTrimBuffer < 0 {
		errs = append(errs, errors.New("clips trim thresholds and buffers must not be negative"))
	}
	if c.BitDepth != 16 && c.BitDepth != 24 && c.BitDepth != 32 {
		errs = append(errs, fmt.Errorf("clips.bit_depth %d is invalid; valid values: 16, 24, 32", c.BitDepth))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("clips.concurrency %d must be positive", c.Concurrency))
	}
	if !strings.HasPrefix(c.Extension, ".") {
		errs = append(errs, fmt.Errorf("clips.extension %q must start with a dot", c.Extension))
	}

	if cfg.Trace.MaxSizeMB < 0 || cfg.Trace.MaxBackups < 0 {
		errs = append(errs, errors.New("trace.max_size_mb and trace.max_backups must not be negative"))
	}

	return errors.Join(errs...)
}
