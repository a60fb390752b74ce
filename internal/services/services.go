// package services defines the Catalog interface for interacting with
// external streaming-catalog HTTP APIs (Spotify, YouTube Music ingestion)
// that source playlists for the acquisition pipeline.
package services

import (
	"context"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// Catalog is implemented by each external playlist source. Playlists and
// Tracks returned are treated as immutable for the duration of a run.
type Catalog interface {
	// Authenticate performs OAuth or API-key authentication with the service.
	Authenticate(ctx context.Context, credentials map[string]string) error
	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)
	// GetPlaylist retrieves a specific playlist by ID, with tracks populated.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)
	// SearchTracks queries the catalog for up to limit candidate tracks
	// matching query. Used by the External-ID Resolver (C5).
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
	// Name returns the name of the service (e.g., "Spotify", "YouTube Music").
	Name() string
}
