package matching

import (
	"regexp"
	"strings"
)

var parenthetical = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)

// BuildQueries generates an ordered, deduplicated sequence of P2P search
// queries for (title, primaryArtist, album), most specific first (C3).
// Guarantees at least one non-empty query; the first is always the most
// specific.
func BuildQueries(title, primaryArtist, album string) []string {
	title = strings.TrimSpace(title)
	primaryArtist = strings.TrimSpace(primaryArtist)
	album = strings.TrimSpace(album)

	seen := make(map[string]bool)
	var queries []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		key := strings.ToLower(q)
		if seen[key] {
			return
		}
		seen[key] = true
		queries = append(queries, q)
	}

	add(primaryArtist + " " + title)

	stripped := strings.TrimSpace(parenthetical.ReplaceAllString(title, ""))
	if stripped != "" && stripped != title {
		add(primaryArtist + " " + stripped)
	}

	if word := firstMeaningfulArtistWord(primaryArtist); word != "" {
		add(title + " " + word)
	}

	add(title)

	if album != "" {
		for _, v := range albumAwareVariants(title, album) {
			add(v)
		}
	}

	if len(queries) == 0 {
		add(title)
	}
	return queries
}

// firstMeaningfulArtistWord returns the first word of artist, skipping a
// leading "The" when it is followed by another word.
func firstMeaningfulArtistWord(artist string) string {
	fields := strings.Fields(artist)
	if len(fields) == 0 {
		return ""
	}
	if strings.EqualFold(fields[0], "the") && len(fields) > 1 {
		return fields[1]
	}
	return fields[0]
}

// albumAwareVariants returns additional candidate queries when album
// appears inside title: the title with its parenthetical album reference
// stripped, both alone and with the album name appended in a plain
// "<title> <album>" form. Callers dedup against the rest of the sequence.
func albumAwareVariants(title, album string) []string {
	lowerTitle := strings.ToLower(title)
	lowerAlbum := strings.ToLower(album)
	if !strings.Contains(lowerTitle, lowerAlbum) {
		return nil
	}

	stripped := strings.TrimSpace(parenthetical.ReplaceAllString(title, ""))
	return []string{
		stripped + " " + album,
		stripped,
	}
}
