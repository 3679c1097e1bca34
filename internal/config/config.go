// Package config provides the configuration schema, loader and transcriber
// registry for takesplit.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded with
// [Load] on top of [Default].
type Config struct {
	LogLevel   LogLevel         `yaml:"log_level" toml:"log_level"`
	Paths      PathsConfig      `yaml:"paths" toml:"paths"`
	Audio      AudioConfig      `yaml:"audio" toml:"audio"`
	Segment    SegmentConfig    `yaml:"segment" toml:"segment"`
	Transcribe TranscribeConfig `yaml:"transcribe" toml:"transcribe"`
	Align      AlignConfig      `yaml:"align" toml:"align"`
	Clips      ClipsConfig      `yaml:"clips" toml:"clips"`
	Trace      TraceConfig      `yaml:"trace" toml:"trace"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// PathsConfig locates inputs and the working directory. Every intermediate
// and output file lives under WorkDir.
type PathsConfig struct {
	// Audio is the source recording (WAV).
	Audio string `yaml:"audio" toml:"audio"`

	// Script is the tab-separated "text<TAB>id" script.
	Script string `yaml:"script" toml:"script"`

	// WorkDir receives Segments/, Timestamps.txt, Transcript.txt, Clips/,
	// ClipsOrdered/ and NotFound.txt. Default: ".".
	WorkDir string `yaml:"work_dir" toml:"work_dir"`
}

// AudioConfig controls how the recording is loaded.
type AudioConfig struct {
	// SampleRate is the rate the recording is resampled to on load.
	// Sample offsets in Timestamps.txt are at this rate.
	SampleRate int `yaml:"sample_rate" toml:"sample_rate"`
}

// SegmentConfig tunes silence-based segmentation. Durations are seconds.
type SegmentConfig struct {
	TopDB            float64 `yaml:"top_db" toml:"top_db"`
	MinimumSilent    float64 `yaml:"minimum_silent" toml:"minimum_silent"`
	MinimumNonSilent float64 `yaml:"minimum_non_silent" toml:"minimum_non_silent"`
	SilentBuffer     float64 `yaml:"silent_buffer" toml:"silent_buffer"`
	FrameLength      int     `yaml:"frame_length" toml:"frame_length"`
	HopLength        int     `yaml:"hop_length" toml:"hop_length"`

	// ExportSegments writes each segment to Segments/ for inspection.
	ExportSegments bool `yaml:"export_segments" toml:"export_segments"`
}

// TranscribeConfig selects speech-to-text backends.
type TranscribeConfig struct {
	// Concurrency is the number of segments transcribed at once.
	Concurrency int `yaml:"concurrency" toml:"concurrency"`

	// Providers are tried in order; later entries are fallbacks.
	Providers []ProviderEntry `yaml:"providers" toml:"providers"`

	Breaker BreakerConfig `yaml:"breaker" toml:"breaker"`
}

// ProviderEntry configures one transcriber. Name selects the factory in the
// [Registry].
type ProviderEntry struct {
	Name     string `yaml:"name" toml:"name"`
	APIKey   string `yaml:"api_key" toml:"api_key"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`
	Model    string `yaml:"model" toml:"model"`
	Language string `yaml:"language" toml:"language"`

	// TimeoutSeconds bounds a single request. Zero uses the provider default.
	TimeoutSeconds float64 `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	MaxFailures         int     `yaml:"max_failures" toml:"max_failures"`
	ResetTimeoutSeconds float64 `yaml:"reset_timeout_seconds" toml:"reset_timeout_seconds"`
}

// AlignConfig holds the matching thresholds and lookup bounds.
type AlignConfig struct {
	SubstringThreshold  float64 `yaml:"substring_threshold" toml:"substring_threshold"`
	MatchThresholdShort float64 `yaml:"match_threshold_short" toml:"match_threshold_short"`
	MatchThresholdLong  float64 `yaml:"match_threshold_long" toml:"match_threshold_long"`

	// ShortLongSeparator is the normalised line length above which the long
	// threshold applies.
	ShortLongSeparator int `yaml:"short_long_separator" toml:"short_long_separator"`

	BacktrackLimit    int `yaml:"backtrack_limit" toml:"backtrack_limit"`
	ForwardtrackLimit int `yaml:"forwardtrack_limit" toml:"forwardtrack_limit"`

	// MaxNameLength caps the generated part of UNKNOWN clip names.
	MaxNameLength int `yaml:"max_name_length" toml:"max_name_length"`
}

// ClipsConfig controls clip refinement and output.
type ClipsConfig struct {
	StartTrimThreshold float64 `yaml:"start_trim_threshold" toml:"start_trim_threshold"`
	EndTrimThreshold   float64 `yaml:"end_trim_threshold" toml:"end_trim_threshold"`

	// StartTrimBuffer and EndTrimBuffer are seconds re-added after trimming.
	StartTrimBuffer float64 `yaml:"start_trim_buffer" toml:"start_trim_buffer"`
	EndTrimBuffer   float64 `yaml:"end_trim_buffer" toml:"end_trim_buffer"`

	BitDepth    int    `yaml:"bit_depth" toml:"bit_depth"`
	Concurrency int    `yaml:"concurrency" toml:"concurrency"`
	Extension   string `yaml:"extension" toml:"extension"`
}

// TraceConfig configures the alignment decision trace. An empty Path
// disables it.
type TraceConfig struct {
	Path       string `yaml:"path" toml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// MetricsConfig exposes Prometheus metrics while a command runs. An empty
// ListenAddr disables the endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
}

// Default returns the built-in configuration. Thresholds and limits are
// tuned for single-speaker voice-over sessions recorded at 48 kHz.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Paths:    PathsConfig{WorkDir: "."},
		Audio:    AudioConfig{SampleRate: 48000},
		Segment: SegmentConfig{
			TopDB:            40,
			MinimumSilent:    0.5,
			MinimumNonSilent: 0.2,
			SilentBuffer:     0.25,
			FrameLength:      2048,
			HopLength:        512,
		},
		Transcribe: TranscribeConfig{
			Concurrency: 4,
			Breaker:     BreakerConfig{MaxFailures: 5, ResetTimeoutSeconds: 30},
		},
		Align: AlignConfig{
			SubstringThreshold:  0.724,
			MatchThresholdShort: 0.875,
			MatchThresholdLong:  0.775,
			ShortLongSeparator:  50,
			BacktrackLimit:      20,
			ForwardtrackLimit:   20,
			MaxNameLength:       100,
		},
		Clips: ClipsConfig{
			StartTrimThreshold: 0.0025,
			EndTrimThreshold:   0.0025,
			StartTrimBuffer:    0,
			EndTrimBuffer:      0.1,
			BitDepth:           32,
			Concurrency:        4,
			Extension:          ".wav",
		},
		Trace: TraceConfig{Path: "log.txt", MaxSizeMB: 50, MaxBackups: 3},
	}
}
