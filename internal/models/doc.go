// Package models defines the domain entities shared across the missing-track
// acquisition pipeline (MTAP): playlists and tracks sourced from an external
// catalog, the local library's own track identity, P2P search candidates,
// in-flight download state, fingerprint verification outcomes, and the two
// durable records (wishlist entries, sync status) that survive a restart.
//
// Two categories of type live here, mirroring how the pipeline treats them:
//
//  1. Transient DTOs, rebuilt fresh every run and never persisted directly:
//     [Track], [Playlist], [LibraryTrack], [Candidate], [ActiveDownload].
//
//  2. Persistent entities with full lifecycle management, implementing
//     [Model] and stored via a [Repository]: [WishlistEntry]. [SyncStatusRecord]
//     is persisted too, one row per playlist in the SQLite sync_status table
//     (repositories.SyncStatusRepository), but it does not implement [Model].
package models
