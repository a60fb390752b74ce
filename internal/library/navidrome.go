package library

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// NavidromeClient talks to a Navidrome server via its Subsonic-compatible
// REST API, authenticating with the salted-token scheme Subsonic requires
// (token = md5(password + salt), sent alongside the salt in cleartext;
// the password itself is never sent over the wire).
type NavidromeClient struct {
	baseURL  string
	username string
	password string
	http     *resty.Client
}

// NewNavidromeClient builds a client for the Navidrome server at baseURL.
func NewNavidromeClient(baseURL, username, password string) *NavidromeClient {
	return &NavidromeClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     resty.New().SetTimeout(10_000_000_000), // 10s
	}
}

func (c *NavidromeClient) Source() models.ServerSource { return models.ServerNavidrome }

func (c *NavidromeClient) authParams() map[string]string {
	salt := randomHex(8)
	sum := md5.Sum([]byte(c.password + salt))
	return map[string]string{
		"u": c.username,
		"t": hex.EncodeToString(sum[:]),
		"s": salt,
		"v": "1.16.1",
		"c": "mtap",
		"f": "json",
	}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

type subsonicEnvelope struct {
	SubsonicResponse struct {
		Status string `json:"status"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
		SearchResult3 struct {
			Song []navidromeSong `json:"song"`
		} `json:"searchResult3"`
	} `json:"subsonic-response"`
}

type navidromeSong struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Track       int    `json:"track"`
	DurationSec int    `json:"duration"`
	Path        string `json:"path"`
}

// BulkLoad fetches every song visible to the Subsonic `search3` endpoint in
// pages, since Subsonic has no "list everything" call; an empty query with
// a high pageSize returns the full catalog in most server implementations.
func (c *NavidromeClient) BulkLoad(ctx context.Context) ([]models.LibraryTrack, error) {
	var all []models.LibraryTrack
	const pageSize = 500

	for offset := 0; ; offset += pageSize {
		var env subsonicEnvelope
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(c.authParams()).
			SetQueryParams(map[string]string{
				"query":        "",
				"songCount":    strconv.Itoa(pageSize),
				"songOffset":   strconv.Itoa(offset),
				"artistCount":  "0",
				"albumCount":   "0",
			}).
			SetResult(&env).
			Get(c.baseURL + "/rest/search3")
		if err != nil {
			return nil, fmt.Errorf("navidrome search3 request failed: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("navidrome search3 status %d", resp.StatusCode())
		}
		if env.SubsonicResponse.Status == "failed" {
			return nil, fmt.Errorf("navidrome API error: %s", env.SubsonicResponse.Error.Message)
		}

		songs := env.SubsonicResponse.SearchResult3.Song
		if len(songs) == 0 {
			break
		}

		for _, s := range songs {
			all = append(all, navidromeSongToLibraryTrack(s))
		}

		if len(songs) < pageSize {
			break
		}
	}

	return all, nil
}

type subsonicScanEnvelope struct {
	SubsonicResponse struct {
		Status     string `json:"status"`
		ScanStatus struct {
			Scanning bool `json:"scanning"`
		} `json:"scanStatus"`
	} `json:"subsonic-response"`
}

// TriggerScan kicks off a Subsonic `startScan` media scan, satisfying
// [scan.Trigger] for the Scan Coordinator (C12).
func (c *NavidromeClient) TriggerScan(ctx context.Context) error {
	var env subsonicScanEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.authParams()).
		SetResult(&env).
		Get(c.baseURL + "/rest/startScan")
	if err != nil {
		return fmt.Errorf("navidrome startScan request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("navidrome startScan status %d", resp.StatusCode())
	}
	if env.SubsonicResponse.Status == "failed" {
		return fmt.Errorf("navidrome startScan API error")
	}
	return nil
}

// IsScanning reports whether a Navidrome media scan is currently running.
func (c *NavidromeClient) IsScanning(ctx context.Context) (bool, error) {
	var env subsonicScanEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(c.authParams()).
		SetResult(&env).
		Get(c.baseURL + "/rest/getScanStatus")
	if err != nil {
		return false, fmt.Errorf("navidrome getScanStatus request failed: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("navidrome getScanStatus status %d", resp.StatusCode())
	}
	return env.SubsonicResponse.ScanStatus.Scanning, nil
}

func navidromeSongToLibraryTrack(s navidromeSong) models.LibraryTrack {
	lt := models.LibraryTrack{
		ID:           s.ID,
		Title:        s.Title,
		ArtistName:   s.Artist,
		AlbumTitle:   s.Album,
		FilePath:     s.Path,
		ServerSource: models.ServerNavidrome,
	}
	if s.Track > 0 {
		n := s.Track
		lt.TrackNumber = &n
	}
	if s.DurationSec > 0 {
		d := time.Duration(s.DurationSec) * time.Second
		lt.Duration = &d
	}
	return lt
}
