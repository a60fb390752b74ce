package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// fakeCatalog answers SearchTracks from a canned map keyed by a substring
// match against the query, so tests can assert which strategy's query
// string actually reached the catalog.
type fakeCatalog struct {
	byQueryContains map[string][]models.Track
	calls           []string
}

func (f *fakeCatalog) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}
func (f *fakeCatalog) GetPlaylists(ctx context.Context) ([]models.Playlist, error) { return nil, nil }
func (f *fakeCatalog) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	return nil, nil
}
func (f *fakeCatalog) Name() string { return "fake" }

func (f *fakeCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	f.calls = append(f.calls, query)
	for substr, tracks := range f.byQueryContains {
		if strings.Contains(strings.ToLower(query), substr) {
			return tracks, nil
		}
	}
	return nil, nil
}

func TestResolveNonYouTubeSourcedIsNoOp(t *testing.T) {
	track := models.Track{ID: "1", Title: "Already Resolved", Artists: []string{"Someone"}}
	res, err := Resolve(context.Background(), &fakeCatalog{}, track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Resolved != nil || res.Strategy != "" {
		t.Errorf("expected no-op resolution, got %+v", res)
	}
}

func TestResolveSucceedsOnCleanedStrategy(t *testing.T) {
	cat := &fakeCatalog{
		byQueryContains: map[string][]models.Track{
			"mr. clean": {
				{ID: "yg1", Title: "Mr. Clean", Artists: []string{"Yung Gravy"}, DurationMS: 180000},
			},
		},
	}
	track := models.Track{
		RawTitle:    "Mr. Clean (Official Music Video)",
		RawUploader: "Yung Gravy",
	}

	res, err := Resolve(context.Background(), cat, track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Resolved == nil {
		t.Fatal("expected a resolved track")
	}
	if res.Strategy != "cleaned" {
		t.Errorf("expected cleaned strategy to succeed, got %q", res.Strategy)
	}
	if res.Resolved.ID != "yg1" {
		t.Errorf("expected track yg1, got %s", res.Resolved.ID)
	}
}

func TestResolveFallsBackToSwappedStrategy(t *testing.T) {
	// Uploader/title inverted: catalog only recognizes the swapped form.
	cat := &fakeCatalog{
		byQueryContains: map[string][]models.Track{
			"yung gravy mr": {
				{ID: "yg1", Title: "Mr. Clean", Artists: []string{"Yung Gravy"}, DurationMS: 180000},
			},
		},
	}
	track := models.Track{
		RawTitle:    "Yung Gravy",
		RawUploader: "Mr. Clean",
	}

	res, err := Resolve(context.Background(), cat, track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Resolved == nil {
		t.Fatal("expected the swapped strategy to recover a match")
	}
	if res.Strategy != "swapped" {
		t.Errorf("expected swapped strategy, got %q", res.Strategy)
	}
}

func TestResolveExhaustsAllStrategiesWithoutMatch(t *testing.T) {
	cat := &fakeCatalog{} // no canned results, ever
	track := models.Track{
		RawTitle:    "Completely Unrelated Noise",
		RawUploader: "Nobody Channel",
	}

	res, err := Resolve(context.Background(), cat, track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Resolved != nil {
		t.Error("expected no resolution when the catalog has nothing")
	}
	if len(cat.calls) != 4 {
		t.Errorf("expected all 4 strategies to be attempted, got %d calls", len(cat.calls))
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	cat := &fakeCatalog{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	track := models.Track{RawTitle: "x", RawUploader: "y"}
	_, err := Resolve(ctx, cat, track)
	if err == nil {
		t.Error("expected a cancellation error")
	}
}
