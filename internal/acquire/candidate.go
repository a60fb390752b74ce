// Package acquire implements the Candidate Verifier (C7), Acquisition
// Controller (C8), and Transfer Poller (C9): the pipeline stages that turn
// a missing track into a verified, queued, and ultimately completed P2P
// download.
package acquire

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Nezreka/SoulSync-sub002/internal/matching"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/normalize"
)

var leadingTrackNumber = regexp.MustCompile(`^\d{1,3}[\s\-\.]+`)

// VerifyCandidates implements spec §4.7: score every raw search result
// against (expectedTitle, expectedArtist), drop anything below 0.50, sort
// by confidence net of version penalty, keep only candidates whose
// on-disk path contains the expected artist under aggressive
// normalization, then apply the quality-preference filter. The returned
// slice is already sorted best-first; the head is "the next thing to
// try". Never returns an empty slice due to quality filtering alone — if
// the preferred tier matches nothing, the full artist-verified list is
// returned instead.
func VerifyCandidates(raw []models.Candidate, expectedTitle, expectedArtist, qualityPreference string) []models.Candidate {
	expectedVersion := matching.DetectVersion(expectedTitle)

	scored := make([]models.Candidate, 0, len(raw))
	for _, c := range raw {
		title := titleFromFilename(c.Filename)
		result := matching.Score(
			matching.Input{Title: expectedTitle, Artist: expectedArtist},
			matching.Input{Title: title},
			false,
		)
		candVersion := matching.DetectVersion(title)

		c.Confidence = result.Confidence
		c.ConfidenceSet = true
		c.VersionType = candVersion
		c.VersionPenalty = matching.VersionPenalty(expectedVersion, candVersion)

		if c.Confidence < 0.50 {
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return (scored[i].Confidence - scored[i].VersionPenalty) > (scored[j].Confidence - scored[j].VersionPenalty)
	})

	verified := filterArtistInPath(scored, expectedArtist)
	return applyQualityPreference(verified, qualityPreference)
}

// filterArtistInPath keeps only candidates whose normalized filename
// contains the normalized expected artist as a substring — the daemon's
// own confidence score is filename-only and routinely returns the right
// title by the wrong artist, so this is the cheapest high-precision guard
// available.
func filterArtistInPath(candidates []models.Candidate, expectedArtist string) []models.Candidate {
	artistNorm := normalize.NormalizeForPathCheck(expectedArtist)
	if artistNorm == "" {
		return candidates
	}

	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		pathNorm := normalize.NormalizeForPathCheck(c.Filename)
		if strings.Contains(pathNorm, artistNorm) {
			out = append(out, c)
		}
	}
	return out
}

// applyQualityPreference keeps only candidates matching pref's tier,
// falling back to the full input list if that tier matches nothing (never
// drop to zero because of a quality preference).
func applyQualityPreference(candidates []models.Candidate, pref string) []models.Candidate {
	if pref == "" || strings.EqualFold(pref, "any") {
		return candidates
	}

	filtered := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if matchesQualityTier(c, pref) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}

func matchesQualityTier(c models.Candidate, pref string) bool {
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "flac":
		return c.Quality == models.QualityFLAC
	case "320+ mp3":
		return c.Quality == models.QualityMP3 && c.BitrateKbps >= 320
	case "256+ mp3":
		return c.Quality == models.QualityMP3 && c.BitrateKbps >= 256
	default:
		return true
	}
}

// titleFromFilename extracts a rough comparable title from a peer-reported
// file path: the basename, extension stripped, with a leading track-number
// prefix ("01 ", "01 - ", "01.") removed.
func titleFromFilename(filename string) string {
	parts := strings.Split(filename, "/")
	base := parts[len(parts)-1]
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = leadingTrackNumber.ReplaceAllString(base, "")
	return strings.TrimSpace(base)
}
