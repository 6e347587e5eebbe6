package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests and examples.
// Scripted responses (Enqueue) are returned first-in first-out; when the
// script is exhausted, canned prompt/response pairs (AddResponse) are matched
// against the last user message.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	script    []Response
	responses map[string]string
	requests  []Request
	err       error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// Enqueue appends a scripted response returned by the next Generate call.
// Responses without usage counters get small deterministic defaults so usage
// accounting stays assertable.
func (m *MockModel) Enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Fail makes every subsequent Generate call return err wrapped as a
// ProviderError.
func (m *MockModel) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request seen, in order, for assertions.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, &ProviderError{Provider: m.info.Provider, Err: m.err}
	}

	var resp Response
	if len(m.script) > 0 {
		resp = m.script[0]
		m.script = m.script[1:]
	} else {
		input := req.LastUserText()
		text := m.responses[input]
		if text == "" {
			text = fmt.Sprintf("Mock response to: %s", input)
		}
		resp = Response{Text: text}
	}

	if resp.Usage.InputTokens == 0 && resp.Usage.OutputTokens == 0 {
		resp.Usage.InputTokens = 10
		resp.Usage.OutputTokens = 5
	}
	resp.Usage.Provider = m.info.Provider
	resp.Usage.Model = m.info.Name

	return &resp, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
