package acquire

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// TransferDaemon is the capability surface the Acquisition Controller (C8)
// and Transfer Poller (C9) need from the P2P backend (slskd/Soulseek).
type TransferDaemon interface {
	// Search issues a search for query and returns the raw candidates the
	// daemon has collected once its search completes (or the search-level
	// timeout elapses, whichever is first).
	Search(ctx context.Context, query string) ([]models.Candidate, error)
	// Dispatch requests a download of filename from username, returning the
	// daemon-assigned transfer id if one is available immediately (slskd
	// frequently assigns it asynchronously, discovered later via C9).
	Dispatch(ctx context.Context, username, filename string, sizeBytes int64) (transferID string, err error)
	// Cancel stops an in-flight transfer. remove additionally deletes the
	// daemon's bookkeeping row for it.
	Cancel(ctx context.Context, transferID, username string, remove bool) error
	// Downloads snapshots the daemon's full transfer table, used by C9 to
	// reconcile tracked ActiveDownloads against daemon-reported state.
	Downloads(ctx context.Context) ([]TransferRow, error)
}

// TransferRow is one flattened (user, file) entry from the daemon's
// transfer table, after reconciling the two tree layouts slskd returns
// (user → directories → files, and user → files) into a single shape.
type TransferRow struct {
	TransferID  string
	Username    string
	Filename    string
	State       string // daemon's raw state string, classified by ClassifyState
	ProgressPct float64
}

// SlskdClient talks to a slskd instance's HTTP API.
type SlskdClient struct {
	baseURL string
	http    *resty.Client
}

// NewSlskdClient builds a client for the slskd instance at baseURL,
// authenticating with an API key issued from slskd's own configuration.
func NewSlskdClient(baseURL, apiKey string) *SlskdClient {
	return &SlskdClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: resty.New().
			SetTimeout(15 * time.Second).
			SetHeader("X-API-Key", apiKey),
	}
}

type slskdSearchRequest struct {
	SearchText string `json:"searchText"`
}

type slskdSearchCreated struct {
	ID string `json:"id"`
}

type slskdSearchState struct {
	IsComplete bool               `json:"isComplete"`
	Responses  []slskdSearchResp  `json:"responses"`
}

type slskdSearchResp struct {
	Username string           `json:"username"`
	Files    []slskdSearchFile `json:"files"`
}

type slskdSearchFile struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	BitRate     int    `json:"bitRate"`
	Extension   string `json:"extension"`
}

// searchPollInterval and searchTimeout bound how long Search waits for a
// slskd search to converge before returning whatever was collected so far.
const (
	searchPollInterval = 500 * time.Millisecond
	searchTimeout      = 10 * time.Second
)

// Search creates a slskd search, polls it to completion (or timeout), and
// flattens the per-peer file listing into [models.Candidate] values with
// Quality inferred from file extension and Confidence left unset — C7
// scores and sets it.
func (c *SlskdClient) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	var created slskdSearchCreated
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(slskdSearchRequest{SearchText: query}).
		SetResult(&created).
		Post(c.baseURL + "/api/v0/searches")
	if err != nil {
		return nil, fmt.Errorf("slskd search create failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("slskd search create status %d", resp.StatusCode())
	}

	deadline := time.Now().Add(searchTimeout)
	var state slskdSearchState

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r, err := c.http.R().SetContext(ctx).SetResult(&state).
			Get(fmt.Sprintf("%s/api/v0/searches/%s", c.baseURL, created.ID))
		if err != nil {
			return nil, fmt.Errorf("slskd search poll failed: %w", err)
		}
		if r.IsError() {
			return nil, fmt.Errorf("slskd search poll status %d", r.StatusCode())
		}

		if state.IsComplete || time.Now().After(deadline) {
			break
		}
		time.Sleep(searchPollInterval)
	}

	var candidates []models.Candidate
	for _, resp := range state.Responses {
		for _, f := range resp.Files {
			candidates = append(candidates, models.Candidate{
				Filename:    strings.ReplaceAll(f.Filename, "\\", "/"),
				Username:    resp.Username,
				SizeBytes:   f.Size,
				Quality:     qualityFromExtension(f.Extension),
				BitrateKbps: f.BitRate,
			})
		}
	}
	return candidates, nil
}

func qualityFromExtension(ext string) models.Quality {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "flac":
		return models.QualityFLAC
	case "mp3":
		return models.QualityMP3
	case "aac", "m4a":
		return models.QualityAAC
	case "ogg", "opus":
		return models.QualityOGG
	default:
		return models.QualityUnknown
	}
}

type slskdEnqueueRequest struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type slskdEnqueueResponse struct {
	ID string `json:"id"`
}

// Dispatch enqueues a download via slskd's per-user transfer endpoint.
func (c *SlskdClient) Dispatch(ctx context.Context, username, filename string, sizeBytes int64) (string, error) {
	var out slskdEnqueueResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody([]slskdEnqueueRequest{{Filename: filename, Size: sizeBytes}}).
		SetResult(&out).
		Post(fmt.Sprintf("%s/api/v0/transfers/downloads/%s", c.baseURL, username))
	if err != nil {
		return "", fmt.Errorf("slskd dispatch failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("slskd dispatch status %d", resp.StatusCode())
	}
	return out.ID, nil
}

// Cancel stops an in-flight transfer, optionally removing its bookkeeping
// row from the daemon entirely.
func (c *SlskdClient) Cancel(ctx context.Context, transferID, username string, remove bool) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("remove", fmt.Sprintf("%t", remove)).
		Delete(fmt.Sprintf("%s/api/v0/transfers/downloads/%s/%s", c.baseURL, username, transferID))
	if err != nil {
		return fmt.Errorf("slskd cancel failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slskd cancel status %d", resp.StatusCode())
	}
	return nil
}

// slskd's transfers endpoint nests two ways in practice: directories
// grouping files, and a flat file list. slskdUserTransfers carries both
// (Directories[].Files and Files, each of slskdTransferFile); Downloads
// reads the files under Directories and the flat Files list alike.
type slskdUserTransfers struct {
	Username    string `json:"username"`
	Directories []struct {
		Files []slskdTransferFile `json:"files"`
	} `json:"directories"`
	Files []slskdTransferFile `json:"files"`
}

type slskdTransferFile struct {
	ID                string  `json:"id"`
	Filename          string  `json:"filename"`
	State             string  `json:"state"`
	PercentComplete   float64 `json:"percentComplete"`
}

// Downloads fetches and flattens the full transfer table.
func (c *SlskdClient) Downloads(ctx context.Context) ([]TransferRow, error) {
	var users []slskdUserTransfers
	resp, err := c.http.R().SetContext(ctx).SetResult(&users).
		Get(c.baseURL + "/api/v0/transfers/downloads")
	if err != nil {
		return nil, fmt.Errorf("slskd downloads snapshot failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("slskd downloads snapshot status %d", resp.StatusCode())
	}

	var rows []TransferRow
	for _, u := range users {
		for _, dir := range u.Directories {
			for _, f := range dir.Files {
				rows = append(rows, transferRowFrom(u.Username, f))
			}
		}
		for _, f := range u.Files {
			rows = append(rows, transferRowFrom(u.Username, f))
		}
	}
	return rows, nil
}

func transferRowFrom(username string, f slskdTransferFile) TransferRow {
	return TransferRow{
		TransferID:  f.ID,
		Username:    username,
		Filename:    strings.ReplaceAll(f.Filename, "\\", "/"),
		State:       f.State,
		ProgressPct: f.PercentComplete,
	}
}
