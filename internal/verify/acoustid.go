package verify

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Recording is one AcoustID lookup hit.
type Recording struct {
	MBID   string
	Title  string
	Artist string
	Score  float64
}

// LookupResult is the flattened result of fingerprinting + looking up a
// file, mirroring acoustid_client.py's fingerprint_and_lookup return shape.
type LookupResult struct {
	Recordings []Recording
	BestScore  float64
}

// AcoustIDClient fingerprints local files via the fpcalc binary and looks
// the fingerprint up against the AcoustID web service.
type AcoustIDClient struct {
	apiKey  string
	fpcalc  string
	http    *resty.Client
}

const acoustidLookupURL = "https://api.acoustid.org/v2/lookup"

// NewAcoustIDClient builds a client using fpcalcPath (as resolved by
// FpcalcLocator) to generate fingerprints and apiKey to query AcoustID.
func NewAcoustIDClient(apiKey, fpcalcPath string) *AcoustIDClient {
	return &AcoustIDClient{
		apiKey: apiKey,
		fpcalc: fpcalcPath,
		http:   resty.New().SetTimeout(15 * time.Second),
	}
}

// fingerprintFile shells out to fpcalc, parsing its "DURATION=" and
// "FINGERPRINT=" stdout lines.
func (c *AcoustIDClient) fingerprintFile(ctx context.Context, audioFile string) (fingerprint string, durationSec int, err error) {
	cmd := exec.CommandContext(ctx, c.fpcalc, "-raw", audioFile)
	out, err := cmd.Output()
	if err != nil {
		return "", 0, fmt.Errorf("fpcalc: %w", err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DURATION="):
			durationSec, _ = strconv.Atoi(strings.TrimPrefix(line, "DURATION="))
		case strings.HasPrefix(line, "FINGERPRINT="):
			fingerprint = strings.TrimPrefix(line, "FINGERPRINT=")
		}
	}
	if fingerprint == "" {
		return "", 0, fmt.Errorf("fpcalc produced no fingerprint for %s", audioFile)
	}
	return fingerprint, durationSec, nil
}

type acoustidLookupResponse struct {
	Status  string `json:"status"`
	Error   struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Results []struct {
		ID         string  `json:"id"`
		Score      float64 `json:"score"`
		Recordings []struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"recordings"`
	} `json:"results"`
}

// FingerprintAndLookup is the end-to-end operation: fingerprint audioFile,
// then query AcoustID for matching recordings.
func (c *AcoustIDClient) FingerprintAndLookup(ctx context.Context, audioFile string) (*LookupResult, error) {
	fingerprint, duration, err := c.fingerprintFile(ctx, audioFile)
	if err != nil {
		return nil, err
	}

	var parsed acoustidLookupResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client":      c.apiKey,
			"duration":    strconv.Itoa(duration),
			"fingerprint": fingerprint,
			"meta":        "recordings",
		}).
		SetResult(&parsed).
		Get(acoustidLookupURL)
	if err != nil {
		return nil, fmt.Errorf("acoustid lookup: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("acoustid lookup status %d", resp.StatusCode())
	}
	if parsed.Status == "error" {
		return nil, fmt.Errorf("acoustid lookup error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	out := &LookupResult{}
	seen := map[string]bool{}
	for _, result := range parsed.Results {
		if result.Score > out.BestScore {
			out.BestScore = result.Score
		}
		for _, rec := range result.Recordings {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			artist := ""
			if len(rec.Artists) > 0 {
				artist = rec.Artists[0].Name
			}
			out.Recordings = append(out.Recordings, Recording{
				MBID: rec.ID, Title: rec.Title, Artist: artist, Score: result.Score,
			})
		}
	}
	return out, nil
}
