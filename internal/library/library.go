// Package library implements the Local-Library Index (C4): a one-shot bulk
// load of the active media server's tracks into an in-memory store, bucketed
// for fast candidate shortlisting, and scored against lookups with the
// Match Scorer.
package library

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/Nezreka/SoulSync-sub002/internal/matching"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/normalize"
)

// fuzzyPrefilterThreshold is the shortlist size above which a fuzzy
// pre-filter narrows candidates before the (much more expensive) Match
// Scorer pass runs over them. Artist-bucketed shortlists rarely get this
// large; title-only lookups scan the whole library and benefit from it.
const fuzzyPrefilterThreshold = 200

// fuzzyPrefilterKeep is how many top fuzzy matches survive the pre-filter.
const fuzzyPrefilterKeep = 50

// DefaultMinConfidence is the floor used by Exists when the caller doesn't
// override it; the GUI-existence gate uses HighExistenceConfidence instead.
const (
	DefaultMinConfidence  = 0.70
	HighExistenceConfidence = 0.80
)

// MediaLibrary is implemented by each media-server backend (Plex, Jellyfin,
// Navidrome). BulkLoad is called once per analysis phase.
type MediaLibrary interface {
	BulkLoad(ctx context.Context) ([]models.LibraryTrack, error)
	Source() models.ServerSource
}

// Index is the bulk-loaded, queryable local-library store.
type Index struct {
	source models.ServerSource
	tracks []models.LibraryTrack
	// buckets maps an artist name's path-check normalization (the whole name,
	// lowercased, letters and digits only) to the tracks by that artist, so a
	// lookup only scores a shortlist
	// instead of the entire library.
	buckets map[string][]models.LibraryTrack
}

// Load bulk-loads lib's tracks and builds the artist-bucketed index.
func Load(ctx context.Context, lib MediaLibrary) (*Index, error) {
	tracks, err := lib.BulkLoad(ctx)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		source:  lib.Source(),
		tracks:  tracks,
		buckets: make(map[string][]models.LibraryTrack),
	}
	for _, t := range tracks {
		key := artistBucketKey(t.ArtistName)
		idx.buckets[key] = append(idx.buckets[key], t)
	}
	return idx, nil
}

// Len reports how many tracks were loaded.
func (idx *Index) Len() int { return len(idx.tracks) }

// Exists answers whether a track matching (title, artist) is already present
// in the local library. minConfidence <= 0 defaults to DefaultMinConfidence.
// If serverFilter is non-nil, only tracks from that server are considered
// (the index itself always belongs to exactly one server, so this is a
// fast no-op reject when it doesn't match).
func (idx *Index) Exists(title, artist string, minConfidence float64, serverFilter *models.ServerSource) (*models.LibraryTrack, float64) {
	if serverFilter != nil && *serverFilter != idx.source {
		return nil, 0
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	titleOnly := strings.TrimSpace(artist) == ""
	if titleOnly {
		minConfidence += 0.05
	}

	if len(idx.tracks) == 0 {
		return nil, 0
	}
	shortlist := fuzzyPrefilter(idx.shortlist(artist), title)

	var best *models.LibraryTrack
	bestConfidence := 0.0

	for i := range shortlist {
		candidate := shortlist[i]
		expected := matching.Input{Title: title, Artist: artist, Album: ""}
		cand := matching.Input{Title: candidate.Title, Artist: candidate.ArtistName, Album: candidate.AlbumTitle}
		result := matching.Score(expected, cand, false)
		if result.Confidence > bestConfidence {
			bestConfidence = result.Confidence
			t := candidate
			best = &t
		}
	}

	if best == nil || bestConfidence < minConfidence {
		return nil, bestConfidence
	}
	return best, bestConfidence
}

// shortlist returns the candidate tracks to score for a lookup: when artist
// is non-empty, only its bucket; otherwise the full library (title-only
// lookups can't pre-filter by artist).
func (idx *Index) shortlist(artist string) []models.LibraryTrack {
	if strings.TrimSpace(artist) == "" {
		return idx.tracks
	}
	key := artistBucketKey(artist)
	if bucket, ok := idx.buckets[key]; ok {
		return bucket
	}
	return nil
}

// fuzzyPrefilter narrows a large shortlist to its top fuzzy title matches
// against title before the authoritative (and costlier) Match Scorer pass.
// Below fuzzyPrefilterThreshold it is a no-op: the scorer is cheap enough at
// that size that pre-filtering would only risk dropping the true match.
func fuzzyPrefilter(shortlist []models.LibraryTrack, title string) []models.LibraryTrack {
	if len(shortlist) <= fuzzyPrefilterThreshold || strings.TrimSpace(title) == "" {
		return shortlist
	}

	titles := make([]string, len(shortlist))
	for i, t := range shortlist {
		titles[i] = t.Title
	}

	matches := fuzzy.Find(title, titles)
	if len(matches) == 0 {
		return shortlist
	}
	if len(matches) > fuzzyPrefilterKeep {
		matches = matches[:fuzzyPrefilterKeep]
	}

	out := make([]models.LibraryTrack, 0, len(matches))
	for _, m := range matches {
		out = append(out, shortlist[m.Index])
	}
	return out
}

// artistBucketKey is a cheap, aggressive normalization used purely to
// bucket tracks for shortlisting; it is not the confidence-bearing
// comparison itself (that's C2's job on the shortlist).
func artistBucketKey(artist string) string {
	return normalize.NormalizeForPathCheck(artist)
}
