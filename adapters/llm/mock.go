package llm

import (
	"context"
	"sync"

	"github.com/satriahrh/voxrelay/domain/repositories"
)

// MockLLM returns a canned reply. Used for local development without provider keys
// and in tests.
type MockLLM struct {
	Reply string
	Err   error

	mu       sync.Mutex
	requests []repositories.CompletionRequest
}

// NewMockLLM creates a mock that answers every call with reply
func NewMockLLM(reply string) *MockLLM {
	return &MockLLM{Reply: reply}
}

// Name implements LargeLanguageModel
func (m *MockLLM) Name() string { return "mock" }

// Complete implements LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}

// Calls returns the number of Complete calls received
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the requests received
func (m *MockLLM) Requests() []repositories.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repositories.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
