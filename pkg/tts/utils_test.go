package tts

import "testing"

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Plain", "The gulls cried.", "The gulls cried."},
		{"SpeakerLabel", "Narrator: The gulls cried.", "The gulls cried."},
		{"Emphasis", "The *old* bridge and the __river__.", "The old bridge and the river."},
		{"Whitespace", "  Onward.\n", "Onward."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanForSpeech(tt.in); got != tt.want {
				t.Errorf("CleanForSpeech() = %q, want %q", got, tt.want)
			}
		})
	}
}
