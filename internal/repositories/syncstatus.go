package repositories

import (
	"database/sql"
	"fmt"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// SyncStatusRepository implements the Sync Status Store (C13) against the
// `sync_status` table, grounded on [WishlistRepository]'s CRUD shape
// (%w-wrapped errors, one scan-to-struct helper) generalized from an
// upsert-keyed table with a JSON payload to a plain-columned one, since
// [models.SyncStatusRecord] has no variable-shaped remainder to blob.
type SyncStatusRepository struct {
	db *sql.DB
}

// NewSyncStatusRepository builds a SyncStatusRepository against db.
func NewSyncStatusRepository(db *sql.DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

// Put rewrites the record for record.PlaylistID, per spec §4.13's "after
// every sync attempt (even with failures), the record is rewritten
// atomically" rule: a single upsert statement, never a read-modify-write.
func (r *SyncStatusRepository) Put(record models.SyncStatusRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO sync_status (playlist_id, name, owner, snapshot_id, last_synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (playlist_id) DO UPDATE SET
			name = excluded.name,
			owner = excluded.owner,
			snapshot_id = excluded.snapshot_id,
			last_synced_at = excluded.last_synced_at
	`, record.PlaylistID, record.Name, record.Owner, record.SnapshotID, record.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("upsert sync status: %w", err)
	}
	return nil
}

// Get retrieves the stored record for playlistID, or (nil, nil) if the
// playlist has never been synced — that is not an error condition, it's
// spec §4.13's "no record" case feeding into [models.ComputeSyncStatus].
func (r *SyncStatusRepository) Get(playlistID string) (*models.SyncStatusRecord, error) {
	row := r.db.QueryRow(`
		SELECT playlist_id, name, owner, snapshot_id, last_synced_at
		FROM sync_status
		WHERE playlist_id = ?
	`, playlistID)

	var rec models.SyncStatusRecord
	if err := row.Scan(&rec.PlaylistID, &rec.Name, &rec.Owner, &rec.SnapshotID, &rec.LastSyncedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan sync status: %w", err)
	}
	return &rec, nil
}

// List returns every stored sync status record, for a CLI/wishlist-style
// listing command.
func (r *SyncStatusRepository) List() ([]*models.SyncStatusRecord, error) {
	rows, err := r.db.Query(`
		SELECT playlist_id, name, owner, snapshot_id, last_synced_at
		FROM sync_status
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sync status: %w", err)
	}
	defer rows.Close()

	var out []*models.SyncStatusRecord
	for rows.Next() {
		var rec models.SyncStatusRecord
		if err := rows.Scan(&rec.PlaylistID, &rec.Name, &rec.Owner, &rec.SnapshotID, &rec.LastSyncedAt); err != nil {
			return nil, fmt.Errorf("scan sync status row: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}
