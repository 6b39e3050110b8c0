package mock

import (
	"context"
	"sync"
)

// MockSynthesizer is a test double for ai.Synthesizer.
type MockSynthesizer struct {
	// SynthesizeFunc is called by Synthesize if set.
	// If nil, echoes the query back.
	SynthesizeFunc func(ctx context.Context, query, contextText string) (string, error)

	// SummarizeFunc is called by Summarize if set.
	SummarizeFunc func(ctx context.Context, title, body string) (string, error)

	mu          sync.Mutex
	callCount   int
	lastContext string
}

// NewMockSynthesizer creates a mock synthesizer with default behavior.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// Synthesize records the context and returns a canned answer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, query, contextText string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastContext = contextText
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, query, contextText)
	}
	return "mock answer: " + query, nil
}

// Summarize returns the title as the summary.
func (m *MockSynthesizer) Summarize(ctx context.Context, title, body string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, title, body)
	}
	return "summary of " + title, nil
}

// CallCount returns the number of times any method was called.
func (m *MockSynthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastContext returns the context passed to the most recent Synthesize call.
func (m *MockSynthesizer) LastContext() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContext
}

// Reset clears the call count and injected behavior.
func (m *MockSynthesizer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastContext = ""
	m.SynthesizeFunc = nil
	m.SummarizeFunc = nil
}
