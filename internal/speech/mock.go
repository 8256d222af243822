package speech

import (
	"context"
	"sync"
)

// MockSynthesizer is an in-process synthesizer for tests and for running the
// service without a speech endpoint configured.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []MockCall

	// Script overrides results per input text; unscripted inputs get a
	// deterministic payload derived from the text.
	Script map[string]MockResult
	Delay  func(text string) // optional hook to block a call, for ordering tests
}

type MockCall struct {
	Text      string
	Directive string
}

type MockResult struct {
	Audio []byte
	Err   error
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceDirective string) ([]byte, error) {
	if m.Delay != nil {
		m.Delay(text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Text: text, Directive: voiceDirective})
	scripted, ok := m.Script[text]
	m.mu.Unlock()

	if ok {
		return scripted.Audio, scripted.Err
	}
	return []byte("audio:" + text), nil
}

func (m *MockSynthesizer) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}
