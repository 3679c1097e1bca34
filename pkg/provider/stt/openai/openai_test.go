package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/takesplit/pkg/provider/stt"
	"github.com/MrWong99/takesplit/pkg/provider/stt/openai"
)

func clip() stt.Clip {
	return stt.Clip{Index: 1, Samples: make([]float32, 1600), SampleRate: 16000}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := openai.New("", ""); err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	type seen struct {
		path, model, language, auth string
		hasFile                     bool
	}
	got := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _, ferr := r.FormFile("file")
		got <- seen{
			path:     r.URL.Path,
			model:    r.FormValue("model"),
			language: r.FormValue("language"),
			auth:     r.Header.Get("Authorization"),
			hasFile:  ferr == nil,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  goodbye\nnow "})
	}))
	t.Cleanup(srv.Close)

	tr, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := tr.Transcribe(context.Background(), clip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "goodbye now" {
		t.Errorf("Transcribe = %q, want %q", text, "goodbye now")
	}

	s := <-got
	if !strings.HasSuffix(s.path, "/audio/transcriptions") {
		t.Errorf("path = %q, want .../audio/transcriptions", s.path)
	}
	if s.model != openai.DefaultModel || s.language != "en" {
		t.Errorf("model=%q language=%q", s.model, s.language)
	}
	if s.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", s.auth)
	}
	if !s.hasFile {
		t.Error("request has no file part")
	}
	if tr.Name() != "openai" {
		t.Errorf("Name() = %q", tr.Name())
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	tr, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tr.Transcribe(context.Background(), clip()); err == nil {
		t.Fatal("expected error for HTTP 400, got nil")
	}
}
