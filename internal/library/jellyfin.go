package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// JellyfinClient talks to a Jellyfin server's Items API, authenticating via
// an API key issued from the Jellyfin admin dashboard.
type JellyfinClient struct {
	baseURL string
	apiKey  string
	userID  string
	http    *resty.Client
}

func NewJellyfinClient(baseURL, apiKey, userID string) *JellyfinClient {
	return &JellyfinClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		userID:  userID,
		http:    resty.New().SetTimeout(10 * time.Second),
	}
}

func (c *JellyfinClient) Source() models.ServerSource { return models.ServerJellyfin }

type jellyfinItemsResponse struct {
	Items            []jellyfinItem `json:"Items"`
	TotalRecordCount int            `json:"TotalRecordCount"`
}

type jellyfinItem struct {
	ID              string `json:"Id"`
	Name            string `json:"Name"`
	Album           string `json:"Album"`
	IndexNumber     int    `json:"IndexNumber"`
	RunTimeTicks    int64  `json:"RunTimeTicks"` // 100ns units
	Path            string `json:"Path"`
	ArtistItems     []struct {
		Name string `json:"Name"`
	} `json:"ArtistItems"`
}

// BulkLoad pages through `/Users/{id}/Items?IncludeItemTypes=Audio`.
func (c *JellyfinClient) BulkLoad(ctx context.Context) ([]models.LibraryTrack, error) {
	var all []models.LibraryTrack
	const pageSize = 500

	for start := 0; ; start += pageSize {
		var resp jellyfinItemsResponse
		r, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Emby-Token", c.apiKey).
			SetQueryParams(map[string]string{
				"IncludeItemTypes": "Audio",
				"Recursive":        "true",
				"StartIndex":       fmt.Sprintf("%d", start),
				"Limit":            fmt.Sprintf("%d", pageSize),
				"Fields":           "Path,ArtistItems",
			}).
			SetResult(&resp).
			Get(fmt.Sprintf("%s/Users/%s/Items", c.baseURL, c.userID))
		if err != nil {
			return nil, fmt.Errorf("jellyfin items request failed: %w", err)
		}
		if r.IsError() {
			return nil, fmt.Errorf("jellyfin items status %d", r.StatusCode())
		}

		for _, item := range resp.Items {
			all = append(all, jellyfinItemToLibraryTrack(item))
		}

		if len(resp.Items) < pageSize {
			break
		}
	}

	return all, nil
}

// jellyfinTask is the subset of Jellyfin's ScheduledTasks response used
// to detect whether a library scan is still running.
type jellyfinTask struct {
	Key   string `json:"Key"`
	State string `json:"State"`
}

// TriggerScan kicks off Jellyfin's library refresh task, satisfying
// [scan.Trigger] for the Scan Coordinator (C12).
func (c *JellyfinClient) TriggerScan(ctx context.Context) error {
	r, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Emby-Token", c.apiKey).
		Post(c.baseURL + "/Library/Refresh")
	if err != nil {
		return fmt.Errorf("jellyfin library refresh failed: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("jellyfin library refresh status %d", r.StatusCode())
	}
	return nil
}

// IsScanning reports whether Jellyfin's library-scan scheduled task is
// currently running.
func (c *JellyfinClient) IsScanning(ctx context.Context) (bool, error) {
	var tasks []jellyfinTask
	r, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Emby-Token", c.apiKey).
		SetResult(&tasks).
		Get(c.baseURL + "/ScheduledTasks")
	if err != nil {
		return false, fmt.Errorf("jellyfin scheduled-tasks request failed: %w", err)
	}
	if r.IsError() {
		return false, fmt.Errorf("jellyfin scheduled-tasks status %d", r.StatusCode())
	}
	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.Key), "refreshlibrary") && task.State == "Running" {
			return true, nil
		}
	}
	return false, nil
}

func jellyfinItemToLibraryTrack(item jellyfinItem) models.LibraryTrack {
	lt := models.LibraryTrack{
		ID:           item.ID,
		Title:        item.Name,
		AlbumTitle:   item.Album,
		FilePath:     item.Path,
		ServerSource: models.ServerJellyfin,
	}
	if len(item.ArtistItems) > 0 {
		lt.ArtistName = item.ArtistItems[0].Name
	}
	if item.IndexNumber > 0 {
		n := item.IndexNumber
		lt.TrackNumber = &n
	}
	if item.RunTimeTicks > 0 {
		d := time.Duration(item.RunTimeTicks*100) * time.Nanosecond
		lt.Duration = &d
	}
	return lt
}
