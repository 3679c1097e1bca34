package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/takesplit/internal/config"
)

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""), config.FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := config.Default()
	if cfg.Align != want.Align {
		t.Errorf("Align = %+v, want %+v", cfg.Align, want.Align)
	}
	if cfg.Clips != want.Clips {
		t.Errorf("Clips = %+v, want %+v", cfg.Clips, want.Clips)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want 48000", cfg.Audio.SampleRate)
	}
}

func TestLoadFromReader_YAMLOverridesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: debug
paths:
  audio: session.wav
  script: script.tsv
  work_dir: out
align:
  backtrack_limit: 5
transcribe:
  providers:
    - name: whisper
      base_url: http://localhost:8080
      language: de
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml), config.FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Paths.WorkDir != "out" {
		t.Errorf("WorkDir = %q, want out", cfg.Paths.WorkDir)
	}
	if cfg.Align.BacktrackLimit != 5 {
		t.Errorf("BacktrackLimit = %d, want 5", cfg.Align.BacktrackLimit)
	}
	if cfg.Align.ForwardtrackLimit != 20 {
		t.Errorf("ForwardtrackLimit = %d, want default 20", cfg.Align.ForwardtrackLimit)
	}
	if len(cfg.Transcribe.Providers) != 1 || cfg.Transcribe.Providers[0].Language != "de" {
		t.Errorf("Providers = %+v", cfg.Transcribe.Providers)
	}
}

func TestLoadFromReader_TOML(t *testing.T) {
	t.Parallel()
	doc := `
log_level = "warn"

[clips]
bit_depth = 16
end_trim_buffer = 0.2

[[transcribe.providers]]
name = "openai"
api_key = "sk-test"
`
	cfg, err := config.LoadFromReader(strings.NewReader(doc), config.FormatTOML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != config.LogWarn {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Clips.BitDepth != 16 || cfg.Clips.EndTrimBuffer != 0.2 {
		t.Errorf("Clips = %+v", cfg.Clips)
	}
	if cfg.Clips.Extension != ".wav" {
		t.Errorf("Extension = %q, want default .wav", cfg.Clips.Extension)
	}
	if len(cfg.Transcribe.Providers) != 1 || cfg.Transcribe.Providers[0].Name != "openai" {
		t.Errorf("Providers = %+v", cfg.Transcribe.Providers)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		format config.Format
		doc    string
	}{
		{name: "yaml", format: config.FormatYAML, doc: "align:\n  bogus: 1\n"},
		{name: "toml", format: config.FormatTOML, doc: "[align]\nbogus = 1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := config.LoadFromReader(strings.NewReader(tc.doc), tc.format); err == nil {
				t.Fatal("expected error for unknown field, got nil")
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.LogLevel = "verbose"
	cfg.Audio.SampleRate = 0
	cfg.Align.MatchThresholdShort = 1.5
	cfg.Clips.BitDepth = 12
	cfg.Clips.Extension = "wav"

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"log_level", "sample_rate", "match_threshold_short", "bit_depth", "extension"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_ThresholdErrorsInFieldOrder(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Align.SubstringThreshold = -0.1
	cfg.Align.MatchThresholdShort = 1.5
	cfg.Align.MatchThresholdLong = 2

	want := []string{"align.substring_threshold", "align.match_threshold_short", "align.match_threshold_long"}
	for range 20 {
		err := config.Validate(cfg)
		if err == nil {
			t.Fatal("expected validation error, got nil")
		}
		msg := err.Error()
		last := -1
		for _, name := range want {
			i := strings.Index(msg, name)
			if i <= last {
				t.Fatalf("threshold errors out of order, got: %v", err)
			}
			last = i
		}
	}
}

func TestValidate_ProviderRequirements(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entry   config.ProviderEntry
		wantErr string
	}{
		{name: "missing name", entry: config.ProviderEntry{}, wantErr: "name is required"},
		{name: "whisper without url", entry: config.ProviderEntry{Name: "whisper"}, wantErr: "base_url"},
		{name: "openai without key", entry: config.ProviderEntry{Name: "openai"}, wantErr: "api_key"},
		{name: "negative timeout", entry: config.ProviderEntry{Name: "whisper", BaseURL: "http://x", TimeoutSeconds: -1}, wantErr: "timeout_seconds"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Transcribe.Providers = []config.ProviderEntry{tc.entry}
			err := config.Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "takesplit.toml")
	if err := os.WriteFile(path, []byte("[audio]\nsample_rate = 44100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", cfg.Audio.SampleRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.WorkDir != "." {
		t.Errorf("WorkDir = %q, want .", cfg.Paths.WorkDir)
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()
	tests := map[string]config.Format{
		"a.yaml":   config.FormatYAML,
		"a.yml":    config.FormatYAML,
		"a.toml":   config.FormatTOML,
		"A.TOML":   config.FormatTOML,
		"noext":    config.FormatYAML,
		"dir/x.tO": config.FormatYAML,
	}
	for path, want := range tests {
		if got := config.FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error(`"trace" should be invalid`)
	}
}
