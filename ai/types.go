package ai

// TaskPrompts maps the fixed processing task vocabulary to the instruction
// prompt sent to the generation model. Custom prompts on a job override
// these.
var TaskPrompts = map[string]string{
	"redact":    "Redact all personally identifiable information in the following text. Replace each redacted span with [REDACTED] and change nothing else.",
	"translate": "Translate the following text to English. Preserve formatting and output only the translation.",
	"summarize": "Summarize the following text in a short paragraph. Output only the summary.",
	"extract":   "Extract the key facts from the following text as a bulleted list. Output only the list.",
}

// OCRPrompt is the instruction sent to the vision model for text
// extraction.
const OCRPrompt = "Extract all text visible in this image. Output only the extracted text, preserving the reading order."
