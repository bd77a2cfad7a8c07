// Package ai defines the inference service contracts the pipeline calls
// out to: text embedding, prompt-driven generation, and vision (OCR and
// visual question answering). Concrete providers live in subpackages; mock
// implements everything in-memory for tests.
package ai
