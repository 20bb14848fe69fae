package config

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"", 0, false},
		{"10s", 10 * time.Second, false},
		{"1m", 1 * time.Minute, false},
		{"1.5h", 90 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 168 * time.Hour, false},
		{"2d2h", 50 * time.Hour, false},
		{"100ms", 100 * time.Millisecond, false},
		{"invalid", 0, true},
		{"3dx", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	type wrapper struct {
		Time Duration `yaml:"time"`
	}

	var w wrapper
	if err := yaml.Unmarshal([]byte("time: 2d\n"), &w); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if w.Time.Std() != 48*time.Hour {
		t.Errorf("Expected 48h, got %v", w.Time.Std())
	}

	out, err := yaml.Marshal(wrapper{Time: Duration(90 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "1m30s") {
		t.Errorf("expected marshaled duration 1m30s, got %q", out)
	}
}
