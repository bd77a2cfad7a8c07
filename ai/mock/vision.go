package mock

import "context"

// MockVision is a test double for ai.Vision.
// It allows custom behavior injection via function fields.
type MockVision struct {
	// ProcessOCRFunc is called by ProcessOCR if set.
	// If nil, returns fixed placeholder text.
	ProcessOCRFunc func(ctx context.Context, image []byte, contentType string) (string, error)

	// ProcessVLMFunc is called by ProcessVLM if set.
	// If nil, returns fixed placeholder text.
	ProcessVLMFunc func(ctx context.Context, image []byte, contentType, prompt string) (string, error)

	callCount int
}

// NewMockVision creates a mock vision service with default behavior.
func NewMockVision() *MockVision {
	return &MockVision{}
}

// ProcessOCR returns placeholder extracted text.
func (m *MockVision) ProcessOCR(ctx context.Context, image []byte, contentType string) (string, error) {
	m.callCount++

	if m.ProcessOCRFunc != nil {
		return m.ProcessOCRFunc(ctx, image, contentType)
	}
	return "mock ocr text", nil
}

// ProcessVLM returns placeholder answer text.
func (m *MockVision) ProcessVLM(ctx context.Context, image []byte, contentType, prompt string) (string, error) {
	m.callCount++

	if m.ProcessVLMFunc != nil {
		return m.ProcessVLMFunc(ctx, image, contentType, prompt)
	}
	return "mock vlm answer", nil
}

// CallCount returns the number of times any method was called.
func (m *MockVision) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockVision) Reset() {
	m.callCount = 0
	m.ProcessOCRFunc = nil
	m.ProcessVLMFunc = nil
}
