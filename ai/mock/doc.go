// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// ai.Vision, and ai.Provider for use in unit tests. The mocks allow tests
// to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockVision := mock.NewMockVision()
//	mockVision.ProcessOCRFunc = func(ctx context.Context, image []byte, contentType string) (string, error) {
//		return "extracted text", nil
//	}
//
//	// Check call counts
//	count := mockVision.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockGenerator: Echoes the input prefixed with the prompt's first word
//   - MockVision: Returns fixed placeholder text
//   - MockProvider: Aggregates the three mock services
package mock
