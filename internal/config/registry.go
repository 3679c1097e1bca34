package config

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/takesplit/pkg/provider/stt"
	"github.com/MrWong99/takesplit/pkg/provider/stt/openai"
	"github.com/MrWong99/takesplit/pkg/provider/stt/whisper"
)

// ProviderNames lists the transcribers registered by [NewRegistry].
var ProviderNames = []string{"whisper", "openai"}

// ErrProviderNotRegistered is returned by [Registry.CreateTranscriber] when
// no factory has been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// TranscriberFactory builds a transcriber from its configuration entry.
type TranscriberFactory func(ProviderEntry) (stt.Transcriber, error)

// Registry maps provider names to transcriber constructors. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]TranscriberFactory
}

// NewRegistry returns a [Registry] with the built-in whisper and openai
// factories registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]TranscriberFactory)}
	r.Register("whisper", newWhisper)
	r.Register("openai", newOpenAI)
	return r
}

// Register registers factory under name, replacing any earlier one.
func (r *Registry) Register(name string, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// CreateTranscriber instantiates the transcriber registered under entry.Name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	t, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create stt/%q: %w", entry.Name, err)
	}
	return t, nil
}

// CreateAll instantiates every entry in order.
func (r *Registry) CreateAll(entries []ProviderEntry) ([]stt.Transcriber, error) {
	out := make([]stt.Transcriber, 0, len(entries))
	for _, e := range entries {
		t, err := r.CreateTranscriber(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func timeout(e ProviderEntry) time.Duration {
	return time.Duration(e.TimeoutSeconds * float64(time.Second))
}

func newWhisper(e ProviderEntry) (stt.Transcriber, error) {
	opts := []whisper.Option{whisper.WithModel(e.Model)}
	if e.Language != "" {
		opts = append(opts, whisper.WithLanguage(e.Language))
	}
	if d := timeout(e); d > 0 {
		opts = append(opts, whisper.WithHTTPClient(&http.Client{Timeout: d}))
	}
	t, err := whisper.New(e.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func newOpenAI(e ProviderEntry) (stt.Transcriber, error) {
	var opts []openai.Option
	if e.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(e.BaseURL))
	}
	if e.Language != "" {
		opts = append(opts, openai.WithLanguage(e.Language))
	}
	if d := timeout(e); d > 0 {
		opts = append(opts, openai.WithTimeout(d))
	}
	t, err := openai.New(e.APIKey, e.Model, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}
