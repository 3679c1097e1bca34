// Package mock provides a test double for the stt.Transcriber interface.
//
// Example:
//
//	m := &mock.Transcriber{Texts: map[int]string{0: "hello there"}}
//	text, _ := m.Transcribe(ctx, stt.Clip{Index: 0})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/takesplit/pkg/provider/stt"
)

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcriber is a mock implementation of stt.Transcriber. It is safe for
// concurrent use.
type Transcriber struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Texts maps clip index to the returned text. Missing indices return "".
	Texts map[int]string

	// Err, if non-nil, is returned for every call.
	Err error

	// Fn, if set, overrides Texts and Err.
	Fn func(ctx context.Context, clip stt.Clip) (string, error)

	// Calls records the index of every clip passed to Transcribe.
	Calls []int
}

// Transcribe records the call and returns the configured result.
func (m *Transcriber) Transcribe(ctx context.Context, clip stt.Clip) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, clip.Index)
	fn, err, text := m.Fn, m.Err, m.Texts[clip.Index]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, clip)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Name returns ProviderName or "mock".
func (m *Transcriber) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

// CallCount returns the number of Transcribe calls so far.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
