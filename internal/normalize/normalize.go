// Package normalize implements the text-comparison forms used throughout
// the acquisition pipeline (C1): a permissive form for title/artist
// similarity scoring, a maximally aggressive form for testing whether an
// artist name appears inside a peer-reported file path, and a YouTube-only
// reduction that strips ingestion noise before a raw (uploader, title) pair
// is handed to the external-id resolver.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// Parentheticals dropped outright: they carry no version-identity
	// signal and only add noise to title similarity.
	dropParens = regexp.MustCompile(`(?i)\s*\((?:explicit|clean|radio\s*edit|radio\s*version)\)`)

	featParen = regexp.MustCompile(`(?i)\s*\((?:feat\.?|ft\.?|featuring)\s+[^)]*\)`)
	featTrail = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+.*$`)
	nonAlnum  = regexp.MustCompile(`[^a-z0-9 ]`)
	multiWS   = regexp.MustCompile(`\s+`)

	bracketed  = regexp.MustCompile(`[\(\[\{<【][^\)\]\}>】]*[\)\]\}>】]`)
	pipeOrDash = regexp.MustCompile(`\s*[|\-–—].*$`)
)

// videoNoise is a published set of YouTube upload-noise tokens; the first
// occurrence (case-insensitively) truncates the title at that point.
var videoNoise = []string{
	"official music video", "official video", "official audio",
	"visualizer", "lyric video", "lyrics video", "directors cut",
	"director's cut", "vevo", "topic",
}

// NormalizeForMatch lowercases s, removes featuring annotations and a small
// set of explicitly-noisy parentheticals (radio edit/version, explicit,
// clean), strips all non-alphanumeric characters except spaces, and
// collapses whitespace. It deliberately preserves version-bearing
// parentheticals ((extended), (live), (acoustic), (remix), (instrumental)),
// year markers, and deluxe/bonus markers, since those carry meaning for the
// Match Scorer. If the result is empty, the original input is returned
// unchanged.
func NormalizeForMatch(s string) string {
	if s == "" {
		return s
	}
	orig := s
	out := strings.ToLower(strings.TrimSpace(s))

	out = dropParens.ReplaceAllString(out, "")
	out = featParen.ReplaceAllString(out, "")
	out = featTrail.ReplaceAllString(out, "")
	out = nonAlnum.ReplaceAllString(out, "")
	out = multiWS.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)

	if out == "" {
		return orig
	}
	return out
}

// NormalizeForPathCheck produces the strictest comparable form: lowercase
// with every non-alphanumeric character dropped, no spaces retained. It is
// used only to test whether an expected artist name appears as a substring
// of a peer-reported file path (Candidate Verifier, C7).
func NormalizeForPathCheck(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanYouTube reduces a raw YouTube (title, uploader) pair to a form
// suitable for catalog lookup: it strips a leading "<artist> - <title>"
// prefix when the uploader corroborates the leading segment, drops all
// bracketed content, truncates at the first remaining pipe or dash, strips
// a published set of video-noise tokens, and strips a trailing
// "feat. ..." clause. If the result is shorter than two characters, the
// original title is returned unchanged.
func CleanYouTube(title, uploader string) string {
	orig := title
	out := title

	if uploader != "" {
		if sep := leadingArtistPrefixLen(out, uploader); sep > 0 {
			out = strings.TrimLeft(out[sep:], " -–—")
		}
	}

	out = bracketed.ReplaceAllString(out, "")
	out = pipeOrDash.ReplaceAllString(out, "")

	lower := strings.ToLower(out)
	for _, token := range videoNoise {
		if idx := strings.Index(lower, token); idx >= 0 {
			out = out[:idx]
			lower = lower[:idx]
		}
	}

	out = featTrail.ReplaceAllString(out, "")
	out = multiWS.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)

	if len([]rune(out)) < 2 {
		return orig
	}
	return out
}

// leadingArtistPrefixLen returns the byte length of a "<artist> - " (or en
// dash / em dash variant) prefix in title whose leading segment, under
// aggressive normalization, is a substring of (or contains) the normalized
// uploader name. Returns 0 if no such prefix is found.
func leadingArtistPrefixLen(title, uploader string) int {
	for _, sep := range []string{" - ", " – ", " — "} {
		idx := strings.Index(title, sep)
		if idx <= 0 {
			continue
		}
		lead := NormalizeForPathCheck(title[:idx])
		up := NormalizeForPathCheck(uploader)
		if lead == "" || up == "" {
			continue
		}
		if strings.Contains(up, lead) || strings.Contains(lead, up) {
			return idx + len(sep)
		}
	}
	return 0
}
