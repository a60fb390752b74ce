package matching

import (
	"testing"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

func TestScoreExactMatch(t *testing.T) {
	expected := Input{Title: "Blinding Lights", Artist: "The Weeknd"}
	candidate := Input{Title: "Blinding Lights", Artist: "The Weeknd"}

	result := Score(expected, candidate, true)
	if result.MatchType != MatchExact {
		t.Errorf("expected exact match, got %s (confidence %v)", result.MatchType, result.Confidence)
	}
}

func TestScoreFeaturedArtistIgnored(t *testing.T) {
	expected := Input{Title: "Memories", Artist: "Maroon 5"}
	candidate := Input{Title: "Memories (feat. Someone)", Artist: "Maroon 5"}

	result := Score(expected, candidate, false)
	if result.Confidence < HighThreshold {
		t.Errorf("expected high confidence ignoring feat annotation, got %v", result.Confidence)
	}
}

func TestScoreArtistAmongMultiple(t *testing.T) {
	expected := Input{Title: "Stay", Artist: "Justin Bieber"}
	candidate := Input{Title: "Stay", Artist: "The Kid LAROI, Justin Bieber"}

	result := Score(expected, candidate, false)
	if result.MatchType == MatchNone {
		t.Errorf("expected artist to be found among multiple, got none (confidence %v)", result.Confidence)
	}
}

func TestScoreVersionPenaltyAppliesToRemix(t *testing.T) {
	expected := Input{Title: "Sandstorm", Artist: "Darude"}
	candidate := Input{Title: "Sandstorm (Remix)", Artist: "Darude"}

	withPenalty := Score(expected, candidate, true)
	withoutPenalty := Score(expected, candidate, false)

	if withPenalty.Confidence >= withoutPenalty.Confidence {
		t.Errorf("expected version-aware score to be penalized: with=%v without=%v", withPenalty.Confidence, withoutPenalty.Confidence)
	}
	if withPenalty.VersionType != "remix" {
		t.Errorf("expected detected version type remix, got %s", withPenalty.VersionType)
	}
}

func TestScoreNoMatch(t *testing.T) {
	expected := Input{Title: "Totally Different Song", Artist: "Artist A"}
	candidate := Input{Title: "Nothing Alike Whatsoever", Artist: "Someone Else"}

	result := Score(expected, candidate, false)
	if result.MatchType != MatchNone {
		t.Errorf("expected no match, got %s (confidence %v)", result.MatchType, result.Confidence)
	}
}

func TestVersionPenaltyTable(t *testing.T) {
	tc := []struct {
		expected, candidate string
		want                float64
	}{
		{"original", "original", 0.00},
		{"original", "remix", 0.35},
		{"extended", "original", 0.05},
		{"remix", "remix", 0.00},
	}

	for _, tt := range tc {
		got := VersionPenalty(models.VersionType(tt.expected), models.VersionType(tt.candidate))
		if got != tt.want {
			t.Errorf("VersionPenalty(%s, %s) = %v, want %v", tt.expected, tt.candidate, got, tt.want)
		}
	}
}
