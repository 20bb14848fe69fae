package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"echopaths/pkg/model"
)

func testJourney() *model.Journey {
	return &model.Journey{StartAddress: "Central Station", EndAddress: "Harbour", TravelMode: model.TravelBicycling, DurationSeconds: 900}
}

func TestRender_Outline(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	got, err := m.Render(Outline, OutlineData{Journey: testJourney(), Total: 15, Duration: "15 mins", Style: model.StyleNoir.Instruction()})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"exactly 15 chapters long",
		"Journey: Central Station to Harbour by bicycling.",
		"Total Duration: Approx 15 mins.",
		model.StyleNoir.Instruction(),
		"An array of 15 strings",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("outline prompt missing %q:\n%s", want, got)
		}
	}
}

func TestRender_Segment(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tests := []struct {
		name        string
		data        SegmentData
		contains    []string
		notContains []string
	}{
		{
			name: "FirstSegment",
			data: SegmentData{Journey: testJourney(), Index: 1, Total: 15, ChapterGoal: "Set out", Seconds: 60, Words: 145},
			contains: []string{
				"Segment 1 of approx 15",
				"CURRENT CHAPTER GOAL: Set out",
				"approx 145 words",
			},
			notContains: []string{"PREVIOUS NARRATIVE CONTEXT", "Position:"},
		},
		{
			name: "LaterSegment",
			data: SegmentData{
				Journey: testJourney(), Index: 4, Total: 15, ChapterGoal: "The chase",
				Context: "AAAA the bell rang", ContextChars: 13, Seconds: 60, Words: 145,
				Progress: "About 20% of the way.",
			},
			contains: []string{
				"PREVIOUS NARRATIVE CONTEXT",
				"...the bell rang",
				"CONTINUE SEAMLESSLY",
				"Position: About 20% of the way.",
			},
			notContains: []string{"AAAA"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Render(Segment, tt.data)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("missing %q:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("unexpected %q:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestNewManager_Override(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, Outline), []byte(`Plan {{.Total}} parts. {{template "journey" .}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	got, err := m.Render(Outline, OutlineData{Journey: testJourney(), Total: 3})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Plan 3 parts. Journey: Central Station to Harbour by bicycling." {
		t.Errorf("got %q", got)
	}

	// Templates not overridden keep working.
	if _, err := m.Render(Segment, SegmentData{Journey: testJourney(), Index: 1, Total: 3}); err != nil {
		t.Errorf("built-in segment template: %v", err)
	}
}

func TestNewManager_MissingDirFallsBack(t *testing.T) {
	if _, err := NewManager(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("expected built-ins when dir is missing, got %v", err)
	}
}
