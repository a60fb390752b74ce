// Package pipeline wires the Analysis Worker Pool (C6), Acquisition
// Controller (C8), Transfer Poller (C9), Scan Coordinator (C12), and Sync
// Status Store (C13) into the single per-playlist sync operation spec's
// OVERVIEW describes: reconcile against the local library, acquire
// whatever is missing, rescan, and record the sync attempt.
//
// The Acquisition Controllers for a single playlist sync share one
// [acquire.Poller] and run under a bounded worker pool (spec §5's global
// "concurrent active downloads" bound), but each Controller's own state
// transitions are still driven one poll result at a time, preserving the
// single-threaded-orchestrator property spec §5 requires.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/acquire"
	"github.com/Nezreka/SoulSync-sub002/internal/analysis"
	"github.com/Nezreka/SoulSync-sub002/internal/events"
	"github.com/Nezreka/SoulSync-sub002/internal/library"
	"github.com/Nezreka/SoulSync-sub002/internal/matching"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/normalize"
	"github.com/Nezreka/SoulSync-sub002/internal/scan"
)

// DefaultConcurrentDownloads matches spec §5's "global concurrent active
// downloads bound of 3 tracks".
const DefaultConcurrentDownloads = 3

// WishlistStore is the subset of [repositories.WishlistRepository] the
// pipeline needs: add permanently-failed tracks, resolve ones that
// eventually succeed.
type WishlistStore interface {
	Add(normTitle, normArtist string, track models.Track, sourceType models.SourceType, ctx models.SourceContext) error
	Resolve(normTitle, normArtist string) error
}

// SyncStatusStore is the subset of [repositories.SyncStatusRepository] the
// pipeline needs to record a sync attempt.
type SyncStatusStore interface {
	Put(record models.SyncStatusRecord) error
}

// Opts tunes the pipeline's worker counts and thresholds; see
// [shared.PipelineConfig] for the TOML-facing mirror of these fields.
type Opts struct {
	AnalysisWorkers     int
	ConcurrentDownloads int
	QualityPreference   string
	MaxRetries          int
	StallTimeout        time.Duration
	PollInterval        time.Duration
}

// Pipeline is the per-run assembly of every MTAP stage needed to reconcile
// one playlist against the local library and acquire whatever is missing.
type Pipeline struct {
	idx        *library.Index
	daemon     acquire.TransferDaemon
	verifier   acquire.FingerprintVerifier
	quarantine acquire.Quarantine
	bus        *events.Bus
	wishlist   WishlistStore
	syncStatus SyncStatusStore
	scanCoord  *scan.Coordinator

	opts Opts
}

// New builds a Pipeline. idx must already be bulk-loaded (C4). wishlist,
// syncStatus, and scanCoord may be nil, in which case that stage's effect
// (wishlisting permanent failures, recording sync status, requesting a
// rescan) is skipped — useful for a dry-run / preview invocation.
func New(idx *library.Index, daemon acquire.TransferDaemon, verifier acquire.FingerprintVerifier, quarantine acquire.Quarantine, bus *events.Bus, wishlist WishlistStore, syncStatus SyncStatusStore, scanCoord *scan.Coordinator, opts Opts) *Pipeline {
	if opts.AnalysisWorkers <= 0 {
		opts.AnalysisWorkers = analysis.DefaultWorkers
	}
	if opts.ConcurrentDownloads <= 0 {
		opts.ConcurrentDownloads = DefaultConcurrentDownloads
	}
	return &Pipeline{
		idx: idx, daemon: daemon, verifier: verifier, quarantine: quarantine,
		bus: bus, wishlist: wishlist, syncStatus: syncStatus, scanCoord: scanCoord,
		opts: opts,
	}
}

// Result is the outcome of syncing one playlist.
type Result struct {
	Analyzed  []analysis.Result
	Acquired  []*models.ActiveDownload // terminal state per missing track
}

// SyncPlaylist runs one full reconciliation cycle for playlist: analyze
// which tracks are already in the library (C6), acquire whatever is
// missing (C7/C8/C9 under a bounded worker pool), request a library
// rescan if anything completed (C12), reconcile the wishlist against the
// outcome (C11), and record the sync attempt (C13) — even if acquisition
// had failures, per spec §4.13's "after every sync attempt (even with
// failures)" rule.
func (p *Pipeline) SyncPlaylist(ctx context.Context, playlist models.Playlist) (*Result, error) {
	analyzed, err := analysis.Run(ctx, p.idx, playlist.Tracks, p.bus, analysis.Opts{Workers: p.opts.AnalysisWorkers})
	if err != nil && ctx.Err() != nil {
		return &Result{Analyzed: analyzed}, err
	}

	missing := analysis.Missing(analyzed)
	downloads := p.acquireAll(ctx, missing)

	p.reconcileWishlist(downloads)

	if p.scanCoord != nil && anyCompleted(downloads) {
		p.scanCoord.RequestScan("download completed")
	}

	if p.syncStatus != nil {
		record := models.SyncStatusRecord{
			PlaylistID: playlist.ID, Name: playlist.Name, Owner: playlist.Owner,
			SnapshotID: playlist.SnapshotID, LastSyncedAt: time.Now(),
		}
		if err := p.syncStatus.Put(record); err != nil {
			return &Result{Analyzed: analyzed, Acquired: downloads}, fmt.Errorf("record sync status: %w", err)
		}
	}

	return &Result{Analyzed: analyzed, Acquired: downloads}, nil
}

// acquireAll drives one [acquire.Controller] per missing track to a
// terminal state, under a bounded worker pool and one shared poller.
func (p *Pipeline) acquireAll(ctx context.Context, missing []models.Track) []*models.ActiveDownload {
	if len(missing) == 0 {
		return nil
	}

	controllers := make([]*acquire.Controller, len(missing))
	downloads := make([]*models.ActiveDownload, len(missing))
	for i, track := range missing {
		download := models.NewActiveDownload(i, track)
		queries := matching.BuildQueries(track.Title, track.PrimaryArtist(), track.Album)
		controllers[i] = acquire.NewController(p.daemon, p.verifier, p.quarantine, p.bus, download, queries, acquire.Opts{
			QualityPreference: p.opts.QualityPreference,
			MaxRetries:        p.opts.MaxRetries,
			StallTimeout:      p.opts.StallTimeout,
		})
		downloads[i] = download
	}

	// registry holds exactly the downloads that have been dispatched
	// (state Queued or later) and are therefore owned by the poller; a
	// download not yet in registry is owned solely by its dispatching
	// goroutine below. This handoff — rather than a shared lock around
	// every field access — is what keeps each ActiveDownload's mutation
	// single-threaded: before registration only Start's goroutine writes
	// to it, after registration only the poller's one goroutine does.
	reg := newRegistry()
	poller := acquire.NewPoller(p.daemon, p.bus, p.opts.PollInterval)

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	go poller.Run(pollCtx, reg.tracked, func(results []acquire.PollResult) {
		for _, r := range results {
			entry, ok := reg.get(r.DownloadIndex)
			if !ok {
				continue
			}
			_ = entry.controller.HandlePoll(ctx, r)
			if isTerminal(entry.download.State) {
				reg.remove(r.DownloadIndex)
				close(entry.done)
			}
		}
	})

	// Bounded fan-out: only opts.ConcurrentDownloads tracks may be
	// searching/dispatching/downloading at once, per spec §5's active-
	// downloads bound.
	sem := make(chan struct{}, p.opts.ConcurrentDownloads)
	var wg sync.WaitGroup
	for i := range controllers {
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			c := controllers[i]
			d := downloads[i]
			_ = c.Start(ctx)

			if isTerminal(d.State) {
				return // failed/cancelled before ever reaching a dispatched state
			}

			done := make(chan struct{})
			reg.put(i, &registryEntry{controller: c, download: d, done: done})

			select {
			case <-done:
			case <-ctx.Done():
			}
		}()
	}
	wg.Wait()

	return downloads
}

// registryEntry is one dispatched download the poller owns until it
// reaches a terminal state.
type registryEntry struct {
	controller *acquire.Controller
	download   *models.ActiveDownload
	done       chan struct{}
}

// registry tracks dispatched downloads for the poller to reconcile,
// guarded by a mutex over membership only — never over the downloads'
// own fields, which each entry's single current owner mutates directly.
type registry struct {
	mu      sync.Mutex
	entries map[int]*registryEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[int]*registryEntry)}
}

func (r *registry) put(index int, e *registryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[index] = e
}

func (r *registry) remove(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, index)
}

func (r *registry) get(index int) (*registryEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[index]
	return e, ok
}

// tracked implements the poller's snapshot callback: every currently
// dispatched download, described by its current candidate's filename
// (not the track title — the poller matches against what's actually on
// the wire, which may legitimately differ from the expected title).
func (r *registry) tracked() []acquire.Tracked {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]acquire.Tracked, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, acquire.Tracked{
			DownloadIndex:   e.download.DownloadIndex,
			TransferID:      e.download.TransferID,
			ExpectedFile:    currentFilename(e.download),
			APIMissingCount: e.download.APIMissingCount,
		})
	}
	return out
}

// currentFilename returns the filename of the candidate currently being
// attempted (the one the controller most recently dispatched), or "" if
// none is dispatched yet.
func currentFilename(d *models.ActiveDownload) string {
	if d.Candidate != nil {
		return d.Candidate.Filename
	}
	return ""
}

func isTerminal(s models.DownloadState) bool {
	switch s {
	case models.StateCompleted, models.StateFailed, models.StateCancelled:
		return true
	default:
		return false
	}
}

func anyCompleted(downloads []*models.ActiveDownload) bool {
	for _, d := range downloads {
		if d.State == models.StateCompleted {
			return true
		}
	}
	return false
}

// reconcileWishlist implements the C8↔C11 boundary: a track that exhausted
// every query/candidate and landed in Failed is wishlisted; a track that
// completes (whether on the first attempt or after a prior wishlist entry)
// has its wishlist entry resolved, since resolve is idempotent on a
// missing key.
func (p *Pipeline) reconcileWishlist(downloads []*models.ActiveDownload) {
	if p.wishlist == nil {
		return
	}
	for _, d := range downloads {
		normTitle := normalize.NormalizeForMatch(d.Track.Title)
		normArtist := normalize.NormalizeForMatch(d.Track.PrimaryArtist())

		switch d.State {
		case models.StateFailed:
			_ = p.wishlist.Add(normTitle, normArtist, d.Track, models.SourcePlaylist, models.SourceContext{AddedAt: time.Now()})
		case models.StateCompleted:
			_ = p.wishlist.Resolve(normTitle, normArtist)
		}
	}
}
