// Package whisper provides an STT Transcriber backed by a whisper.cpp server.
//
// Each clip is resampled to the server's rate, wrapped in a 16-bit PCM WAV
// container and POSTed to the server's /inference endpoint as
// multipart/form-data.
//
// Usage:
//
//	t, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	text, err := t.Transcribe(ctx, stt.Clip{Samples: s, SampleRate: 48000})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/takesplit/pkg/audio"
	"github.com/MrWong99/takesplit/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16; whisper.cpp reads 16-bit PCM WAV.
	bitsPerSample = 16

	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 2 * time.Minute
)

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel sets the model identifier forwarded to the server (e.g.
// "small.en"). When empty the server uses whichever model it was started
// with; this is the default.
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithLanguage sets the language code sent to the server. Defaults to "en".
// An empty string lets the server auto-detect.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithSampleRate sets the rate clips are resampled to before upload.
// Defaults to 16000, which is what whisper models are trained on.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) { t.sampleRate = rate }
}

// WithHTTPClient replaces the HTTP client. The default has a two minute
// timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) { t.httpClient = c }
}

// Transcriber implements stt.Transcriber against a whisper.cpp HTTP server.
// It holds no per-request state and is safe for concurrent use.
type Transcriber struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	httpClient *http.Client
}

// New creates a Transcriber for the whisper.cpp server at serverURL (e.g.
// "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Transcriber, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	t := &Transcriber{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(t)
	}
	if t.sampleRate <= 0 {
		return nil, fmt.Errorf("whisper: invalid sample rate %d", t.sampleRate)
	}
	return t, nil
}

// Name implements stt.Transcriber.
func (t *Transcriber) Name() string { return "whisper" }

// Transcribe implements stt.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, clip stt.Clip) (string, error) {
	samples := audio.Resample(clip.Samples, clip.SampleRate, t.sampleRate)
	wav, err := audio.EncodeWAV(samples, t.sampleRate, bitsPerSample)
	if err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return stt.CleanText(result.Text), nil
}
