package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434", cfg.Host)
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://inference.local:11434/"),
		WithEmbeddingModel("nomic-embed-text"),
		WithGenerationModel("llama3.2:3b"),
		WithVisionModel("llava:7b"),
	)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://inference.local:11434", cfg.Host, "trailing slash stripped")
	assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
	assert.Equal(t, "llama3.2:3b", cfg.GenerationModel)
	assert.Equal(t, "llava:7b", cfg.VisionModel)
}

func TestConfig_ValidateRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing host", func(c *Config) { c.Host = "" }},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"missing generation model", func(c *Config) { c.GenerationModel = "" }},
		{"missing vision model", func(c *Config) { c.VisionModel = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
