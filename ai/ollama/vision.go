package ollama

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/poiesic/docflow/ai"
)

// Vision implements ai.Vision using Ollama multimodal models.
type Vision struct {
	client llms.Model
	logger *slog.Logger
}

// newVision is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newVision(config *ai.Config) (*Vision, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := ollama.New(
		ollama.WithServerURL(config.Host),
		ollama.WithModel(config.VisionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Vision{
		client: client,
		logger: slog.Default().With("component", "ollama-vision"),
	}, nil
}

// NewVision creates a new vision service using the provided configuration.
//
// Returns ai.Vision interface to enforce abstraction.
func NewVision(config *ai.Config) (ai.Vision, error) {
	return newVision(config)
}

// ProcessOCR extracts the text visible in an image or scanned page.
func (v *Vision) ProcessOCR(ctx context.Context, image []byte, contentType string) (string, error) {
	return v.prompt(ctx, image, contentType, ai.OCRPrompt)
}

// ProcessVLM answers a free-form prompt about an image.
func (v *Vision) ProcessVLM(ctx context.Context, image []byte, contentType, prompt string) (string, error) {
	return v.prompt(ctx, image, contentType, prompt)
}

func (v *Vision) prompt(ctx context.Context, image []byte, contentType, prompt string) (string, error) {
	v.logger.Debug("running vision prompt", "content_type", contentType, "image_bytes", len(image))

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(contentType, image),
				llms.TextPart(prompt),
			},
		},
	}

	response, err := v.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		v.logger.Error("failed to process image", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		v.logger.Debug("no choices returned from model")
		return "", nil
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
