package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator runs prompt-driven text transformation: redaction, translation,
// summarization, extraction. Implementations must be thread-safe for
// concurrent use.
type Generator interface {
	// GenerateText applies the instruction prompt to the input text and
	// returns the transformed result.
	GenerateText(ctx context.Context, prompt, input string) (string, error)
}

// Vision covers image-based inference.
// Implementations must be thread-safe for concurrent use.
type Vision interface {
	// ProcessOCR extracts the text visible in an image or scanned page.
	ProcessOCR(ctx context.Context, image []byte, contentType string) (string, error)

	// ProcessVLM answers a free-form prompt about an image.
	ProcessVLM(ctx context.Context, image []byte, contentType, prompt string) (string, error)
}

// Provider aggregates the inference services for convenient initialization
// and lifecycle management. A provider creates and manages its service
// instances, ensuring they share configuration and resources.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the prompt-driven generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Vision returns the image inference service.
	// The returned Vision is safe for concurrent use.
	Vision() Vision

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
