// YouTube Music API [Catalog] implementation
//
// Communicates with the FastAPI proxy server (music/) running on port 8080.
// The proxy wraps ytmusicapi Python library for YouTube Music operations.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"` // Duration in seconds
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
	ISRC        string          `json:"isrc,omitempty"`
	SetVideoID  string          `json:"setVideoId,omitempty"` // For playlist operations
}

// YouTubePlaylist represents a playlist from YouTube Music.
type YouTubePlaylist struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Privacy     string         `json:"privacy"`
	Thumbnails  []YouTubeImage `json:"thumbnails"`
	TrackCount  int            `json:"trackCount"`
	Tracks      []YouTubeTrack `json:"tracks,omitempty"`
}

// YouTubeService implements the Catalog interface for YouTube Music via proxy.
type YouTubeService struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	return &YouTubeService{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube Music"
}

// Authenticate stores the authentication file path for subsequent requests.
//
// Expects credentials["auth_file"] to contain the path to browser.json or oauth.json.
func (y *YouTubeService) Authenticate(ctx context.Context, credentials map[string]string) error {
	authFile, ok := credentials["auth_file"]
	if !ok || authFile == "" {
		return fmt.Errorf("missing auth_file in credentials")
	}

	y.authFile = authFile
	return nil
}

func (y *YouTubeService) doRequest(ctx context.Context, method, endpoint string, _, result any) error {
	apiURL := y.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("youtube music API error (status %d): %s", resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("youtube music API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// GetPlaylists retrieves all playlists for the authenticated user, with
// tracks populated as raw, unresolved entries (see GetPlaylist).
//
// Calls GET /api/library/playlists on the proxy.
func (y *YouTubeService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var ytPlaylists []struct {
		PlaylistID string `json:"playlistId"`
		Title      string `json:"title"`
	}

	if err := y.doRequest(ctx, http.MethodGet, "/api/library/playlists", nil, &ytPlaylists); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(ytPlaylists))
	for _, ytp := range ytPlaylists {
		full, err := y.GetPlaylist(ctx, ytp.PlaylistID)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *full)
	}

	return playlists, nil
}

// GetPlaylist retrieves a specific playlist by ID with its tracks.
//
// YouTube Music never carries a verified catalog (title, artist) pair: the
// "artists" field is the uploading channel, not necessarily the recording
// artist. Every resulting Track therefore carries only RawTitle/RawUploader
// and must pass through the External-ID Resolver (C5) before it can be
// compared against the local library.
//
// Calls GET /api/playlists/{id} on the proxy.
func (y *YouTubeService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var ytPlaylist struct {
		ID     string         `json:"id"`
		Title  string         `json:"title"`
		Tracks []YouTubeTrack `json:"tracks"`
	}

	endpoint := fmt.Sprintf("/api/playlists/%s", playlistID)
	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &ytPlaylist); err != nil {
		return nil, err
	}

	playlist := models.Playlist{
		ID:   ytPlaylist.ID,
		Name: ytPlaylist.Title,
	}

	for _, ytt := range ytPlaylist.Tracks {
		track := models.Track{
			ID:         ytt.VideoID,
			RawTitle:   ytt.Title,
			DurationMS: ytt.DurationSec * 1000,
			Artists:    []string{""}, // unresolved until C5 runs
		}
		if len(ytt.Artists) > 0 {
			track.RawUploader = ytt.Artists[0].Name
		}
		playlist.Tracks = append(playlist.Tracks, track)
	}

	return &playlist, nil
}

// SearchTracks queries the YouTube Music proxy's search endpoint for up to
// limit candidates matching query. Used both directly and as the catalog
// target of the External-ID Resolver (C5) when YouTube is itself the
// reconciliation target (rare; usually Spotify plays this role and YouTube
// is the ingestion source).
//
// Calls GET /api/search?q={query}&filter=songs on the proxy.
func (y *YouTubeService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs", url.QueryEscape(query))

	var results []struct {
		VideoID string          `json:"videoId"`
		Title   string          `json:"title"`
		Artists []YouTubeArtist `json:"artists"`
		Album   *struct {
			Name string `json:"name"`
		} `json:"album"`
		DurationSec int    `json:"duration_seconds"`
		ISRC        string `json:"isrc,omitempty"`
	}

	if err := y.doRequest(ctx, http.MethodGet, endpoint, nil, &results); err != nil {
		return nil, err
	}

	if len(results) > limit {
		results = results[:limit]
	}

	tracks := make([]models.Track, 0, len(results))
	for _, result := range results {
		track := models.Track{
			ID:         result.VideoID,
			Title:      result.Title,
			DurationMS: result.DurationSec * 1000,
		}
		for _, a := range result.Artists {
			track.Artists = append(track.Artists, a.Name)
		}
		if len(track.Artists) == 0 {
			track.Artists = []string{""}
		}
		if result.Album != nil {
			track.Album = result.Album.Name
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
