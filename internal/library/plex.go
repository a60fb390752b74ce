package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// PlexClient talks to a Plex Media Server, authenticating via the
// `X-Plex-Token` header issued out-of-band (plex.tv sign-in, captured once
// and stored in config).
type PlexClient struct {
	baseURL      string
	token        string
	musicLibrary string
	http         *resty.Client
}

func NewPlexClient(baseURL, token, musicLibrary string) *PlexClient {
	return &PlexClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		musicLibrary: musicLibrary,
		http:         resty.New().SetTimeout(10 * time.Second).SetHeader("Accept", "application/json"),
	}
}

func (c *PlexClient) Source() models.ServerSource { return models.ServerPlex }

type plexSectionsResponse struct {
	MediaContainer struct {
		Directory []struct {
			Key   string `json:"key"`
			Title string `json:"title"`
			Type  string `json:"type"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

type plexTracksResponse struct {
	MediaContainer struct {
		Metadata []plexTrack `json:"Metadata"`
		Size     int         `json:"size"`
		TotalSize int        `json:"totalSize"`
	} `json:"MediaContainer"`
}

type plexTrack struct {
	Title           string `json:"title"`
	GrandparentTitle string `json:"grandparentTitle"` // artist
	ParentTitle     string `json:"parentTitle"`       // album
	Index           int    `json:"index"`             // track number
	Duration        int    `json:"duration"`          // ms
	RatingKey       string `json:"ratingKey"`
	Media           []struct {
		Part []struct {
			File string `json:"file"`
		} `json:"Part"`
	} `json:"Media"`
}

// BulkLoad finds the configured music library section and pages through its
// `/library/sections/{key}/all?type=10` (track) listing.
func (c *PlexClient) BulkLoad(ctx context.Context) ([]models.LibraryTrack, error) {
	sectionKey, err := c.findMusicSection(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.LibraryTrack
	const pageSize = 500

	for start := 0; ; start += pageSize {
		var resp plexTracksResponse
		r, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Plex-Token", c.token).
			SetQueryParam("type", "10").
			SetHeader("X-Plex-Container-Start", fmt.Sprintf("%d", start)).
			SetHeader("X-Plex-Container-Size", fmt.Sprintf("%d", pageSize)).
			SetResult(&resp).
			Get(fmt.Sprintf("%s/library/sections/%s/all", c.baseURL, sectionKey))
		if err != nil {
			return nil, fmt.Errorf("plex library listing failed: %w", err)
		}
		if r.IsError() {
			return nil, fmt.Errorf("plex library listing status %d", r.StatusCode())
		}

		for _, t := range resp.MediaContainer.Metadata {
			all = append(all, plexTrackToLibraryTrack(t))
		}

		if len(resp.MediaContainer.Metadata) < pageSize {
			break
		}
	}

	return all, nil
}

func (c *PlexClient) findMusicSection(ctx context.Context) (string, error) {
	var resp plexSectionsResponse
	r, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", c.token).
		SetResult(&resp).
		Get(c.baseURL + "/library/sections")
	if err != nil {
		return "", fmt.Errorf("plex sections request failed: %w", err)
	}
	if r.IsError() {
		return "", fmt.Errorf("plex sections status %d", r.StatusCode())
	}

	for _, d := range resp.MediaContainer.Directory {
		if d.Type != "artist" {
			continue
		}
		if c.musicLibrary == "" || strings.EqualFold(d.Title, c.musicLibrary) {
			return d.Key, nil
		}
	}
	return "", fmt.Errorf("no music library section named %q found", c.musicLibrary)
}

// TriggerScan asks Plex to refresh the configured music library section,
// satisfying [scan.Trigger] for the Scan Coordinator (C12).
func (c *PlexClient) TriggerScan(ctx context.Context) error {
	sectionKey, err := c.findMusicSection(ctx)
	if err != nil {
		return err
	}
	r, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", c.token).
		Get(fmt.Sprintf("%s/library/sections/%s/refresh", c.baseURL, sectionKey))
	if err != nil {
		return fmt.Errorf("plex scan refresh failed: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("plex scan refresh status %d", r.StatusCode())
	}
	return nil
}

// IsScanning reports whether the configured music library section is
// currently being refreshed.
func (c *PlexClient) IsScanning(ctx context.Context) (bool, error) {
	sectionKey, err := c.findMusicSection(ctx)
	if err != nil {
		return false, err
	}
	var resp struct {
		MediaContainer struct {
			Directory []struct {
				Key      string `json:"key"`
				Scanning bool   `json:"scanning"`
			} `json:"Directory"`
		} `json:"MediaContainer"`
	}
	r, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Plex-Token", c.token).
		SetResult(&resp).
		Get(c.baseURL + "/library/sections")
	if err != nil {
		return false, fmt.Errorf("plex scanning-status request failed: %w", err)
	}
	if r.IsError() {
		return false, fmt.Errorf("plex scanning-status status %d", r.StatusCode())
	}
	for _, d := range resp.MediaContainer.Directory {
		if d.Key == sectionKey {
			return d.Scanning, nil
		}
	}
	return false, nil
}

func plexTrackToLibraryTrack(t plexTrack) models.LibraryTrack {
	lt := models.LibraryTrack{
		ID:           t.RatingKey,
		Title:        t.Title,
		ArtistName:   t.GrandparentTitle,
		AlbumTitle:   t.ParentTitle,
		ServerSource: models.ServerPlex,
	}
	if t.Index > 0 {
		n := t.Index
		lt.TrackNumber = &n
	}
	if t.Duration > 0 {
		d := time.Duration(t.Duration) * time.Millisecond
		lt.Duration = &d
	}
	if len(t.Media) > 0 && len(t.Media[0].Part) > 0 {
		lt.FilePath = t.Media[0].Part[0].File
	}
	return lt
}
