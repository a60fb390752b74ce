package matching

import "github.com/Nezreka/SoulSync-sub002/internal/models"

// albumThreshold is the track count above which an album-type release counts
// as a "real" album rather than an EP, per spec (album of 10+ tracks).
const albumThreshold = 10

// AlbumPreferenceBonus nudges the External-ID Resolver toward catalog tracks
// that belong to a substantial album over a single or EP of the same song,
// since a single is more likely to be a truncated/promotional re-release of
// a track that already has a canonical album home. Unknown album metadata
// (the common case outside Spotify) contributes no bonus.
func AlbumPreferenceBonus(candidate models.Track) float64 {
	switch candidate.AlbumType {
	case models.AlbumTypeAlbum:
		if candidate.AlbumTrackCount >= albumThreshold {
			return 0.05
		}
		return 0
	case models.AlbumTypeSingle:
		return -0.02
	case models.AlbumTypeCompilation:
		return 0.02
	default:
		return 0
	}
}
