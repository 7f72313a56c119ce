package common

import (
	"strings"
	"testing"
)

func TestImportanceScores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  Source
		want float64
	}{
		{name: "major character", src: Character{Role: "major"}, want: 0.9},
		{name: "minor character", src: Character{Role: "minor"}, want: 0.5},
		{name: "background character", src: Character{Role: "background"}, want: 0.2},
		{name: "unknown character role", src: Character{Role: "sidekick"}, want: 0.5},
		{name: "character role is case insensitive", src: Character{Role: "MAJOR"}, want: 0.9},
		{name: "major location", src: Location{Significance: "major"}, want: 0.8},
		{name: "minor location", src: Location{Significance: "minor"}, want: 0.4},
		{name: "background location", src: Location{Significance: "background"}, want: 0.2},
		{name: "unknown location significance", src: Location{}, want: 0.4},
		{name: "event is fixed", src: Event{}, want: 0.5},
		{name: "story is fixed", src: Story{}, want: 0.7},
		{name: "beat is fixed", src: Beat{}, want: 0.3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.src.Importance(); got != tc.want {
				t.Fatalf("Importance() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHashInputCoversSemanticFields(t *testing.T) {
	t.Parallel()

	a := Character{ID: "c1", Name: "Alice", Description: "A knight", Role: "major"}
	b := a
	b.Role = "background"
	if a.HashInput() != b.HashInput() {
		t.Errorf("role change altered the hash input: %q vs %q", a.HashInput(), b.HashInput())
	}

	b = a
	b.Description = "A retired knight"
	if a.HashInput() == b.HashInput() {
		t.Errorf("description change did not alter the hash input")
	}

	beat := Beat{ID: "b1", Title: "Opening", Content: "It begins."}
	edited := beat
	edited.Content = "It begins anew."
	if beat.HashInput() == edited.HashInput() {
		t.Errorf("beat content change did not alter the hash input")
	}
}

func TestHashContentIsStable(t *testing.T) {
	t.Parallel()

	if HashContent("Alice|A knight") != HashContent("Alice|A knight") {
		t.Errorf("equal inputs hashed differently")
	}
	if HashContent("Alice|A knight") == HashContent("Alice|A squire") {
		t.Errorf("different inputs hashed identically")
	}
	if len(HashContent("")) != 64 {
		t.Errorf("digest is not a sha256 hex string")
	}
}

func TestDisplayText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  Source
		want string
	}{
		{
			name: "name and description",
			src:  Character{Name: "Alice", Description: "A knight"},
			want: "Alice: A knight",
		},
		{
			name: "empty description dropped",
			src:  Character{Name: "Alice"},
			want: "Alice",
		},
		{
			name: "whitespace trimmed",
			src:  Event{Name: "  The Fall  ", Description: ""},
			want: "The Fall",
		},
		{
			name: "beat with title and content",
			src:  Beat{Title: "Opening", Content: "It begins."},
			want: "Opening: It begins.",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.src.DisplayText(); got != tc.want {
				t.Fatalf("DisplayText() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBeatDisplayNameFallsBackToID(t *testing.T) {
	t.Parallel()

	beat := Beat{ID: "b1"}
	if got := beat.DisplayName(); got != "b1" {
		t.Errorf("DisplayName() = %q, want the beat id", got)
	}
	beat.Title = "Opening"
	if got := beat.DisplayName(); got != "Opening" {
		t.Errorf("DisplayName() = %q, want the title", got)
	}
}

func TestFallbackSummary(t *testing.T) {
	t.Parallel()

	got := FallbackSummary(Character{Name: " Alice "})
	if got != "Character: Alice" {
		t.Errorf("FallbackSummary() = %q, want %q", got, "Character: Alice")
	}
	if !strings.HasPrefix(FallbackSummary(Location{Name: "Keep"}), "Location: ") {
		t.Errorf("location fallback missing kind prefix")
	}
}
