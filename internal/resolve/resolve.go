// Package resolve implements the External-ID Resolver (C5): for a raw
// (uploader, title) pair produced by YouTube ingestion, find a canonical
// streaming-catalog track by querying the catalog with a sequential
// fallback chain of strategies, each validated through the Match Scorer
// (C2).
package resolve

import (
	"context"
	"fmt"

	"github.com/Nezreka/SoulSync-sub002/internal/matching"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/normalize"
	"github.com/Nezreka/SoulSync-sub002/internal/services"
)

// candidatesPerStrategy is the number of catalog search results fetched and
// scored at each strategy step.
const candidatesPerStrategy = 10

// strategy describes one step of the fallback chain: how to build the
// catalog query and the expected (title, artist) pair to score candidates
// against, plus the confidence floor required to accept a candidate.
type strategy struct {
	name      string
	threshold float64
	query     string
	expected  matching.Input
}

// Resolution is the outcome of resolving a single YouTube-sourced track.
type Resolution struct {
	Track      models.Track // the original raw track handed in
	Resolved   *models.Track
	Strategy   string // name of the strategy that succeeded; "" if none did
	Confidence float64
}

// Resolve runs track through the four-strategy fallback chain against
// catalog, returning the first strategy to produce a candidate at or above
// its threshold. If track is not YouTube-sourced (has no raw fields), it is
// returned unresolved immediately — the resolver has nothing to do.
//
// Cancellation is cooperative: ctx is checked before every catalog call and
// between strategies, so a cancelled context stops work at the next
// convenient point rather than mid-HTTP-call.
func Resolve(ctx context.Context, catalog services.Catalog, track models.Track) (*Resolution, error) {
	if !track.IsYouTubeSourced() {
		return &Resolution{Track: track}, nil
	}

	cleanedTitle := normalize.CleanYouTube(track.RawTitle, track.RawUploader)
	cleanedUploader := track.RawUploader

	strategies := []strategy{
		{
			name:      "cleaned",
			threshold: 0.75,
			query:     fmt.Sprintf("%s %s", cleanedUploader, cleanedTitle),
			expected:  matching.Input{Title: cleanedTitle, Artist: cleanedUploader},
		},
		{
			name:      "swapped",
			threshold: 0.75,
			query:     fmt.Sprintf("%s %s", cleanedTitle, cleanedUploader),
			expected:  matching.Input{Title: cleanedUploader, Artist: cleanedTitle},
		},
		{
			name:      "raw",
			threshold: 0.60,
			query:     fmt.Sprintf("%s %s", track.RawUploader, track.RawTitle),
			expected:  matching.Input{Title: track.RawTitle, Artist: track.RawUploader},
		},
		{
			name:      "title_first_raw",
			threshold: 0.50,
			query:     fmt.Sprintf("%s %s", track.RawTitle, track.RawUploader),
			expected:  matching.Input{Title: track.RawTitle, Artist: track.RawUploader},
		},
	}

	res := &Resolution{Track: track}

	for _, s := range strategies {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		best, bestConfidence, err := bestCandidate(ctx, catalog, s)
		if err != nil {
			return res, fmt.Errorf("resolve strategy %s: %w", s.name, err)
		}
		if best != nil && bestConfidence >= s.threshold {
			res.Resolved = best
			res.Strategy = s.name
			res.Confidence = bestConfidence
			return res, nil
		}
	}

	return res, nil
}

// bestCandidate fetches up to candidatesPerStrategy results for s.query and
// returns the highest-scoring one, its confidence (including the
// album-preference bonus), or (nil, 0, nil) if the catalog returned no
// results.
func bestCandidate(ctx context.Context, catalog services.Catalog, s strategy) (*models.Track, float64, error) {
	if ctx.Err() != nil {
		return nil, 0, ctx.Err()
	}

	candidates, err := catalog.SearchTracks(ctx, s.query, candidatesPerStrategy)
	if err != nil {
		return nil, 0, err
	}

	var best *models.Track
	bestConfidence := 0.0

	for i := range candidates {
		cand := candidates[i]
		result := matching.Score(s.expected, matching.Input{
			Title:      cand.Title,
			Artist:     cand.PrimaryArtist(),
			Album:      cand.Album,
			DurationMS: cand.DurationMS,
		}, false)

		confidence := result.Confidence + matching.AlbumPreferenceBonus(cand)
		if confidence > 1 {
			confidence = 1
		}

		if best == nil || confidence > bestConfidence {
			best = &candidates[i]
			bestConfidence = confidence
		}
	}

	return best, bestConfidence, nil
}
