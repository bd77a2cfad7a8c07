package mock

import (
	"context"
	"strings"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateTextFunc is called by GenerateText if set.
	// If nil, uses default deterministic behavior.
	GenerateTextFunc func(ctx context.Context, prompt, input string) (string, error)

	callCount int
}

// NewMockGenerator creates a mock generator with default deterministic behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateText echoes the input prefixed with the prompt's first word, so
// tests can assert both prompt and input reached the generator.
func (m *MockGenerator) GenerateText(ctx context.Context, prompt, input string) (string, error) {
	m.callCount++

	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, prompt, input)
	}

	tag := prompt
	if i := strings.IndexByte(prompt, ' '); i > 0 {
		tag = prompt[:i]
	}
	return strings.ToLower(strings.TrimSuffix(tag, ":")) + ": " + input, nil
}

// CallCount returns the number of times GenerateText was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.GenerateTextFunc = nil
}
