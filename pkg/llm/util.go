package llm

import (
	"strings"
)

// CleanJSONBlock removes markdown code blocks from a JSON string if present.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	// Look for ```json start
	start := strings.Index(text, "```json")
	if start != -1 {
		text = text[start+len("```json"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	start = strings.Index(text, "```")
	if start != -1 {
		text = text[start+len("```"):]
		if end := strings.LastIndex(text, "```"); end != -1 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	return text
}

// Excerpt shortens text for log lines.
func Excerpt(text string, n int) string {
	r := []rune(strings.Join(strings.Fields(text), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
