// Package ollama implements the ai service interfaces against a local or
// remote Ollama instance, using one client per model role (embedding,
// generation, vision).
package ollama
