package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// wishlistPayload is the JSON blob stored in wishlist.payload_json,
// carrying everything about an entry besides its (norm_title, norm_artist)
// key and the columns queried directly (added_at, retry_count,
// last_attempt_at).
type wishlistPayload struct {
	Track         models.Track         `json:"track"`
	SourceType    models.SourceType    `json:"source_type"`
	SourceContext models.SourceContext `json:"source_context"`
}

// WishlistRepository implements the Wishlist Store (C11) against the
// `wishlist` table, grounded on MigrationRepository's CRUD shape (scan
// helpers, %w-wrapped errors) generalized from a soft-deleted,
// sequence-numbered table to wishlist's upsert-keyed, hard-deleted one.
type WishlistRepository struct {
	db *sql.DB
}

// NewWishlistRepository builds a WishlistRepository against db.
func NewWishlistRepository(db *sql.DB) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// Add upserts an entry keyed by (normTitle, normArtist): on conflict, the
// earliest added_at and source_context are kept and retry bookkeeping is
// untouched, per spec §4.11.
func (r *WishlistRepository) Add(normTitle, normArtist string, track models.Track, sourceType models.SourceType, ctx models.SourceContext) error {
	payload := wishlistPayload{Track: track, SourceType: sourceType, SourceContext: ctx}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal wishlist payload: %w", err)
	}

	addedAt := ctx.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	_, err = r.db.Exec(`
		INSERT INTO wishlist (norm_title, norm_artist, payload_json, added_at, retry_count)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT (norm_title, norm_artist) DO NOTHING
	`, normTitle, normArtist, string(payloadJSON), addedAt)
	if err != nil {
		return fmt.Errorf("upsert wishlist entry: %w", err)
	}
	return nil
}

// Resolve deletes the entry for (normTitle, normArtist). Idempotent: no
// error if the entry is already absent.
func (r *WishlistRepository) Resolve(normTitle, normArtist string) error {
	_, err := r.db.Exec(`DELETE FROM wishlist WHERE norm_title = ? AND norm_artist = ?`, normTitle, normArtist)
	if err != nil {
		return fmt.Errorf("delete wishlist entry: %w", err)
	}
	return nil
}

// Bump increments retry_count and sets last_attempt_at to now.
func (r *WishlistRepository) Bump(normTitle, normArtist string) error {
	result, err := r.db.Exec(`
		UPDATE wishlist SET retry_count = retry_count + 1, last_attempt_at = ?
		WHERE norm_title = ? AND norm_artist = ?
	`, time.Now(), normTitle, normArtist)
	if err != nil {
		return fmt.Errorf("bump wishlist entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("wishlist entry not found: %s/%s", normTitle, normArtist)
	}
	return nil
}

// List returns every entry ordered by added_at descending, per spec §4.11.
func (r *WishlistRepository) List() ([]*models.WishlistEntry, error) {
	rows, err := r.db.Query(`
		SELECT norm_title, norm_artist, payload_json, added_at, retry_count, last_attempt_at
		FROM wishlist
		ORDER BY added_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query wishlist: %w", err)
	}
	defer rows.Close()

	var entries []*models.WishlistEntry
	for rows.Next() {
		entry, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Get retrieves a single entry by key, or an error if absent.
func (r *WishlistRepository) Get(normTitle, normArtist string) (*models.WishlistEntry, error) {
	row := r.db.QueryRow(`
		SELECT norm_title, norm_artist, payload_json, added_at, retry_count, last_attempt_at
		FROM wishlist
		WHERE norm_title = ? AND norm_artist = ?
	`, normTitle, normArtist)
	return r.scanOne(row)
}

func (r *WishlistRepository) scanOne(row *sql.Row) (*models.WishlistEntry, error) {
	var (
		normTitle     string
		normArtist    string
		payloadJSON   string
		addedAt       time.Time
		retryCount    int
		lastAttemptAt sql.NullTime
	)
	if err := row.Scan(&normTitle, &normArtist, &payloadJSON, &addedAt, &retryCount, &lastAttemptAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("wishlist entry not found")
		}
		return nil, fmt.Errorf("scan wishlist entry: %w", err)
	}
	return buildEntry(normTitle, normArtist, payloadJSON, addedAt, retryCount, lastAttemptAt)
}

func (r *WishlistRepository) scanRow(rows *sql.Rows) (*models.WishlistEntry, error) {
	var (
		normTitle     string
		normArtist    string
		payloadJSON   string
		addedAt       time.Time
		retryCount    int
		lastAttemptAt sql.NullTime
	)
	if err := rows.Scan(&normTitle, &normArtist, &payloadJSON, &addedAt, &retryCount, &lastAttemptAt); err != nil {
		return nil, fmt.Errorf("scan wishlist entry: %w", err)
	}
	return buildEntry(normTitle, normArtist, payloadJSON, addedAt, retryCount, lastAttemptAt)
}

func buildEntry(normTitle, normArtist, payloadJSON string, addedAt time.Time, retryCount int, lastAttemptAt sql.NullTime) (*models.WishlistEntry, error) {
	var payload wishlistPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal wishlist payload: %w", err)
	}
	if payload.SourceContext.AddedAt.IsZero() {
		payload.SourceContext.AddedAt = addedAt
	}

	entry := models.NewWishlistEntry(normTitle, normArtist, payload.Track, payload.SourceType, payload.SourceContext)
	entry.SetRetryCount(retryCount)
	if lastAttemptAt.Valid {
		entry.SetLastAttemptAt(lastAttemptAt.Time)
	}
	return entry, nil
}
