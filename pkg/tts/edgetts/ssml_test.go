package edgetts

import (
	"strings"
	"testing"
)

func TestBuildSSML(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"Plain", "The tide turned.", []string{"The tide turned.", "<voice name='en-GB-SoniaNeural'>"}},
		{"Ampersand", "Fish & chips at O'Neill's", []string{"Fish &amp; chips at O&apos;Neill&apos;s"}},
		{"Markup", "<break/>pause", []string{"&lt;break/&gt;pause"}},
		{"Quotes", `The sign read "Closed"`, []string{`The sign read &quot;Closed&quot;`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSSML("en-GB-SoniaNeural", tt.text)
			for _, exp := range tt.expected {
				if !strings.Contains(got, exp) {
					t.Errorf("buildSSML() = %v, expected to contain %v", got, exp)
				}
			}
		})
	}
}
