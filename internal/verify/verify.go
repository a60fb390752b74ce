// Package verify implements the Fingerprint Verifier (C10): confirming a
// completed download is actually the expected recording via Chromaprint
// fingerprinting and an AcoustID lookup, before the Acquisition Controller
// (C8) marks a track permanently done.
package verify

import (
	"context"
	"fmt"

	"github.com/Nezreka/SoulSync-sub002/internal/matching"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/normalize"
)

// Thresholds from spec §4.10, carried verbatim from
// original_source/core/acoustid_verification.py's MIN_ACOUSTID_SCORE /
// TITLE_MATCH_THRESHOLD / ARTIST_MATCH_THRESHOLD.
const (
	minFingerprintScore = 0.80
	titleMatchThreshold = 0.70
	artistMatchThreshold = 0.60
)

// Lookup is the capability Verifier needs from an AcoustID-compatible
// fingerprint service; satisfied by *AcoustIDClient.
type Lookup interface {
	FingerprintAndLookup(ctx context.Context, audioFile string) (*LookupResult, error)
}

// Verifier implements the acquire.FingerprintVerifier interface (duck
// typed — this package does not import internal/acquire to avoid a
// dependency cycle with C8).
type Verifier struct {
	lookup  Lookup
	enabled bool
	apiKey  string
}

// NewVerifier builds a Verifier. enabled/apiKey come from
// Config.Fingerprint; a disabled verifier or one with no api key always
// returns DISABLED without attempting a lookup.
func NewVerifier(lookup Lookup, enabled bool, apiKey string) *Verifier {
	return &Verifier{lookup: lookup, enabled: enabled, apiKey: apiKey}
}

// Verify implements spec §4.10's full algorithm: precondition checks,
// fingerprint+lookup, score threshold, then the title/artist decision
// table. Every failure mode except a confident mismatch resolves to SKIP,
// per the original's fail-open design principle.
func (v *Verifier) Verify(ctx context.Context, filePath, expectedTitle, expectedArtist string) models.VerificationOutcome {
	if !v.enabled || v.apiKey == "" || v.lookup == nil {
		return models.VerificationOutcome{Result: models.VerificationDisabled, Reason: "fingerprint verification disabled or unconfigured"}
	}

	result, err := v.lookup.FingerprintAndLookup(ctx, filePath)
	if err != nil {
		return models.VerificationOutcome{Result: models.VerificationSkip, Reason: fmt.Sprintf("verification error: %v", err)}
	}
	if result == nil || len(result.Recordings) == 0 {
		return models.VerificationOutcome{Result: models.VerificationSkip, Reason: "track not found in fingerprint database"}
	}

	if result.BestScore < minFingerprintScore {
		return models.VerificationOutcome{Result: models.VerificationSkip, Reason: "fingerprint score too low to verify"}
	}

	best, titleSim, artistSim := bestMatch(result.Recordings, expectedTitle, expectedArtist)
	if best == nil {
		return models.VerificationOutcome{Result: models.VerificationSkip, Reason: "no recordings with title/artist info"}
	}

	if titleSim >= titleMatchThreshold && artistSim >= artistMatchThreshold {
		return models.VerificationOutcome{Result: models.VerificationPass, Reason: fmt.Sprintf(
			"matched '%s' by '%s' (title=%.0f%%, artist=%.0f%%)", best.Title, best.Artist, titleSim*100, artistSim*100)}
	}

	if titleSim >= titleMatchThreshold {
		// Title matches but artist doesn't on the best combined match —
		// could be a cover or collaboration; scan all recordings for a
		// secondary artist match before giving up.
		for _, rec := range result.Recordings {
			if sim(expectedArtist, rec.Artist) >= artistMatchThreshold {
				return models.VerificationOutcome{Result: models.VerificationPass, Reason: "found expected artist among secondary recordings"}
			}
		}
		return models.VerificationOutcome{Result: models.VerificationSkip, Reason: "title matches but artist unclear"}
	}

	// Title doesn't match on the best combined candidate: scan every
	// recording in case a different one independently clears both bars.
	for _, rec := range result.Recordings {
		if sim(expectedTitle, rec.Title) >= titleMatchThreshold && sim(expectedArtist, rec.Artist) >= artistMatchThreshold {
			return models.VerificationOutcome{Result: models.VerificationPass, Reason: "found a matching recording among secondary results"}
		}
	}

	top := result.Recordings[0]
	return models.VerificationOutcome{Result: models.VerificationFail, Reason: fmt.Sprintf(
		"audio identified as '%s' by '%s', expected '%s' by '%s'", top.Title, top.Artist, expectedTitle, expectedArtist)}
}

// bestMatch finds the recording with the highest 0.6*title+0.4*artist
// combined similarity against expected, per spec §4.10 step 3.
func bestMatch(recordings []Recording, expectedTitle, expectedArtist string) (*Recording, float64, float64) {
	var best *Recording
	var bestTitleSim, bestArtistSim, bestCombined float64

	for i := range recordings {
		rec := recordings[i]
		titleSim := sim(expectedTitle, rec.Title)
		artistSim := sim(expectedArtist, rec.Artist)
		combined := titleSim*0.6 + artistSim*0.4
		if combined > bestCombined {
			bestCombined = combined
			best = &rec
			bestTitleSim = titleSim
			bestArtistSim = artistSim
		}
	}
	return best, bestTitleSim, bestArtistSim
}

// sim normalizes both strings (C1's permissive form) then ratios them; the
// original's standalone _normalize strips version parentheticals too, but
// reusing normalize.NormalizeForMatch is deliberate here — see DESIGN.md.
func sim(a, b string) float64 {
	na, nb := normalize.NormalizeForMatch(a), normalize.NormalizeForMatch(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return matching.SimilarityRatio(na, nb)
}
