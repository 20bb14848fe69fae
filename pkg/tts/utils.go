package tts

import (
	"regexp"
	"strings"
)

var (
	speakerLabelRegex = regexp.MustCompile(`(?m)^[A-Za-z]+(\s*\([^)]+\))?:\s*`)
	emphasisRegex     = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
)

// StripSpeakerLabels removes speaker labels like "Luna:" or "Aria (female):" from scripts.
func StripSpeakerLabels(script string) string {
	return speakerLabelRegex.ReplaceAllString(script, "")
}

// CleanForSpeech removes markup a narration model sometimes emits despite
// being asked for plain text.
func CleanForSpeech(text string) string {
	text = StripSpeakerLabels(text)
	text = emphasisRegex.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
