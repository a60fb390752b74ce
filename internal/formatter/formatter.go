// Package formatter exports wishlist and sync-status state to CSV,
// Markdown, plain text, and JSON, for operators who want to inspect MTAP's
// durable state outside the CLI's own table output.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/shared"
)

// WishlistReport is the exportable view of the wishlist store (C11): every
// permanently-failed track still being retried, plus when it was last
// attempted.
type WishlistReport struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Entries     []WishlistReportEntry  `json:"entries"`
}

// WishlistReportEntry flattens one [models.WishlistEntry] for export.
type WishlistReportEntry struct {
	Title         string     `json:"title"`
	Artist        string     `json:"artist"`
	Album         string     `json:"album,omitempty"`
	SourceType    string     `json:"source_type"`
	SourceName    string     `json:"source_name,omitempty"`
	RetryCount    int        `json:"retry_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	AddedAt       time.Time  `json:"added_at"`
}

// SyncReport is the exportable view of the sync status store (C13): every
// tracked playlist's last-synced state.
type SyncReport struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Entries     []SyncReportEntry   `json:"entries"`
}

// SyncReportEntry flattens one [models.SyncStatusRecord] for export,
// alongside the playlist's current snapshot so the report shows drift.
type SyncReportEntry struct {
	PlaylistID   string           `json:"playlist_id"`
	Name         string           `json:"name"`
	Owner        string           `json:"owner"`
	Status       models.SyncStatus `json:"status"`
	SnapshotID   string           `json:"snapshot_id"`
	LastSyncedAt time.Time        `json:"last_synced_at"`
}

// NewWishlistReport builds a report from the wishlist store's current
// entries.
func NewWishlistReport(entries []*models.WishlistEntry) *WishlistReport {
	out := make([]WishlistReportEntry, 0, len(entries))
	for _, e := range entries {
		ctx := e.SourceContext()
		out = append(out, WishlistReportEntry{
			Title:         e.Track().Title,
			Artist:        e.Track().PrimaryArtist(),
			Album:         e.Track().Album,
			SourceType:    string(e.SourceType()),
			SourceName:    ctx.Name,
			RetryCount:    e.RetryCount(),
			LastAttemptAt: e.LastAttemptAt(),
			AddedAt:       ctx.AddedAt,
		})
	}
	return &WishlistReport{GeneratedAt: time.Now(), Entries: out}
}

// NewSyncReport builds a report pairing each playlist with its computed
// [models.SyncStatus].
func NewSyncReport(playlists []models.Playlist, records map[string]*models.SyncStatusRecord) *SyncReport {
	out := make([]SyncReportEntry, 0, len(playlists))
	for _, p := range playlists {
		rec := records[p.ID]
		entry := SyncReportEntry{
			PlaylistID: p.ID,
			Name:       p.Name,
			Owner:      p.Owner,
			SnapshotID: p.SnapshotID,
			Status:     models.ComputeSyncStatus(p, rec),
		}
		if rec != nil {
			entry.LastSyncedAt = rec.LastSyncedAt
		}
		out = append(out, entry)
	}
	return &SyncReport{GeneratedAt: time.Now(), Entries: out}
}

// WishlistToCSV renders a wishlist report with columns: Title, Artist,
// Album, Source, Retries, LastAttempt, AddedAt.
func WishlistToCSV(report *WishlistReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Title", "Artist", "Album", "Source", "Retries", "LastAttempt", "AddedAt"}); err != nil {
		return nil, fmt.Errorf("write CSV headers: %w", err)
	}

	for _, e := range report.Entries {
		lastAttempt := ""
		if e.LastAttemptAt != nil {
			lastAttempt = e.LastAttemptAt.Format(time.RFC3339)
		}
		record := []string{
			e.Title, e.Artist, e.Album, e.SourceType,
			strconv.Itoa(e.RetryCount), lastAttempt, e.AddedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WishlistToMarkdown renders a wishlist report as a Markdown table, using
// humanize for relative "last attempted" timestamps.
func WishlistToMarkdown(report *WishlistReport) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Wishlist\n\n")
	buf.WriteString(fmt.Sprintf("%d tracks still pending acquisition as of %s.\n\n",
		len(report.Entries), report.GeneratedAt.Format(time.RFC1123)))
	buf.WriteString("| Title | Artist | Source | Retries | Last attempt |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, e := range report.Entries {
		lastAttempt := "never"
		if e.LastAttemptAt != nil {
			lastAttempt = humanize.Time(*e.LastAttemptAt)
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n", e.Title, e.Artist, e.SourceType, e.RetryCount, lastAttempt))
	}
	return buf.Bytes()
}

// SyncToCSV renders a sync report with columns: PlaylistID, Name, Owner,
// Status, LastSyncedAt.
func SyncToCSV(report *SyncReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"PlaylistID", "Name", "Owner", "Status", "LastSyncedAt"}); err != nil {
		return nil, fmt.Errorf("write CSV headers: %w", err)
	}

	for _, e := range report.Entries {
		lastSynced := ""
		if !e.LastSyncedAt.IsZero() {
			lastSynced = e.LastSyncedAt.Format(time.RFC3339)
		}
		if err := w.Write([]string{e.PlaylistID, e.Name, e.Owner, string(e.Status), lastSynced}); err != nil {
			return nil, fmt.Errorf("write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// WishlistToJSON marshals a wishlist report as pretty-printed JSON.
func WishlistToJSON(report *WishlistReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// SyncToJSON marshals a sync report as pretty-printed JSON.
func SyncToJSON(report *SyncReport) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// WriteWishlistCSV writes a wishlist report to filepath, defaulting to
// "wishlist.csv" if filepath is empty.
func WriteWishlistCSV(report *WishlistReport, filepath string) (string, error) {
	if filepath == "" {
		filepath = "wishlist.csv"
	}
	data, err := WishlistToCSV(report)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("write wishlist CSV: %w", err)
	}
	return filepath, nil
}

// WriteWishlistJSON writes a wishlist report to filepath, defaulting to
// "wishlist.json" if filepath is empty.
func WriteWishlistJSON(report *WishlistReport, filepath string) (string, error) {
	if filepath == "" {
		filepath = "wishlist.json"
	}
	data, err := WishlistToJSON(report)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("write wishlist JSON: %w", err)
	}
	return filepath, nil
}

// WriteSyncCSV writes a sync report to filepath, defaulting to
// "sync_status.csv" if filepath is empty.
func WriteSyncCSV(report *SyncReport, filepath string) (string, error) {
	if filepath == "" {
		filepath = "sync_status.csv"
	}
	data, err := SyncToCSV(report)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("write sync status CSV: %w", err)
	}
	return filepath, nil
}
