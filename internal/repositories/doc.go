// Package repositories implements SQLite persistence for MTAP's durable
// state: the Wishlist Store (C11) and the Sync Status Store (C13).
//
// [WishlistRepository] implements spec §4.11's add/resolve/list/bump
// operations against the `wishlist` table, keyed on (norm_title,
// norm_artist) rather than a generated id — there is exactly one entity
// type to persist here, so it is not expressed as a models.Repository[T]
// generic implementation the way a multi-entity teacher schema would.
//
// [SyncStatusRepository] implements spec §4.13's per-playlist sync record,
// rewritten atomically after every sync attempt via a single upsert.
package repositories
