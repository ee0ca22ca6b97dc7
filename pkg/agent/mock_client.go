package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"omniagent/pkg/agent/llm"
)

// MockStep is one scripted outcome of MockLLMClient.Generate.
type MockStep struct {
	Result llm.Result
	Err    error
}

// MockJSON scripts a successful structured response.
func MockJSON(v any) MockStep {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock client: cannot marshal %T: %v", v, err))
	}
	return MockStep{Result: llm.Result{Text: string(raw), JSON: raw}}
}

// MockText scripts a successful free-text response.
func MockText(text string) MockStep {
	return MockStep{Result: llm.Result{Text: text}}
}

// MockError scripts a failure.
func MockError(err error) MockStep {
	return MockStep{Err: err}
}

// MockLLMClient replays scripted steps in order and records every request.
// When Gate is non-nil each call blocks until a value is received from Gate
// or the context ends.
type MockLLMClient struct {
	Gate chan struct{}

	model    string
	steps    []MockStep
	next     int
	requests []llm.Request
	mu       sync.Mutex
}

// NewMockLLMClient creates a mock that returns steps in order.
func NewMockLLMClient(model string, steps ...MockStep) *MockLLMClient {
	return &MockLLMClient{model: model, steps: steps}
}

// Generate returns the next scripted step.
//
//nolint:gocritic // Request passed by value for interface consistency
func (m *MockLLMClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return llm.Result{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next >= len(m.steps) {
		return llm.Result{}, fmt.Errorf("mock client %s: no more responses", m.model)
	}
	step := m.steps[m.next]
	m.next++
	if step.Err != nil {
		return llm.Result{}, step.Err
	}
	res := step.Result
	if res.Model == "" {
		res.Model = m.model
	}
	return res, nil
}

// GetModelName returns the mock's model name.
func (m *MockLLMClient) GetModelName() string {
	return m.model
}

// Requests returns a copy of the requests received so far.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns how many times Generate was called.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Enqueue appends more scripted steps.
func (m *MockLLMClient) Enqueue(steps ...MockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}
