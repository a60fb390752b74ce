package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/acquire"
	"github.com/Nezreka/SoulSync-sub002/internal/events"
	"github.com/Nezreka/SoulSync-sub002/internal/library"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

type fakeMediaLibrary struct {
	tracks []models.LibraryTrack
}

func (f *fakeMediaLibrary) BulkLoad(ctx context.Context) ([]models.LibraryTrack, error) {
	return f.tracks, nil
}
func (f *fakeMediaLibrary) Source() models.ServerSource { return models.ServerPlex }

// fakeDaemon always immediately completes any dispatched transfer on the
// next Downloads() snapshot, so a pipeline test doesn't need to wait
// through Queued/Downloading polling ticks.
type fakeDaemon struct {
	mu            sync.Mutex
	searchResults map[string][]models.Candidate
	dispatched    map[string]string // "username/filename" -> transferID
	nextID        int
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{searchResults: map[string][]models.Candidate{}, dispatched: map[string]string{}}
}

func (f *fakeDaemon) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchResults[query], nil
}

func (f *fakeDaemon) Dispatch(ctx context.Context, username, filename string, sizeBytes int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "t" + time.Now().Format("150405") + "-" + username
	f.dispatched[username+"/"+filename] = id
	return id, nil
}

func (f *fakeDaemon) Cancel(ctx context.Context, transferID, username string, remove bool) error {
	return nil
}

func (f *fakeDaemon) Downloads(ctx context.Context) ([]acquire.TransferRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []acquire.TransferRow
	for key, id := range f.dispatched {
		username, filename := splitKey(key)
		rows = append(rows, acquire.TransferRow{
			TransferID: id, Username: username, Filename: filename,
			State: "Completed", ProgressPct: 100,
		})
	}
	return rows, nil
}

func splitKey(key string) (username, filename string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func TestSyncPlaylistAcquiresMissingTrackAndRecordsSyncStatus(t *testing.T) {
	missingTrack := models.Track{ID: "t1", Title: "Midnight City", Artists: []string{"M83"}, Album: "Hurry Up, We're Dreaming"}
	playlist := models.Playlist{ID: "pl1", Name: "Indie Favorites", Owner: "alice", SnapshotID: "snap-1", Tracks: []models.Track{missingTrack}}

	idx, err := library.Load(context.Background(), &fakeMediaLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	daemon := newFakeDaemon()
	daemon.searchResults["M83 Midnight City"] = []models.Candidate{
		{Filename: "M83/Hurry Up/01 Midnight City.flac", Username: "alice", Quality: models.QualityFLAC, SizeBytes: 1000},
	}

	wishlist := newFakeWishlist()
	syncStatus := newFakeSyncStatus()
	bus := events.NewBus()

	p := New(idx, daemon, nil, nil, bus, wishlist, syncStatus, nil, Opts{PollInterval: 5 * time.Millisecond, StallTimeout: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := p.SyncPlaylist(ctx, playlist)
	if err != nil {
		t.Fatalf("SyncPlaylist: %v", err)
	}

	if len(result.Acquired) != 1 {
		t.Fatalf("expected exactly 1 acquired download, got %d", len(result.Acquired))
	}
	if result.Acquired[0].State != models.StateCompleted {
		t.Errorf("expected download to complete, got state %v", result.Acquired[0].State)
	}

	rec, ok := syncStatus.records["pl1"]
	if !ok {
		t.Fatal("expected a sync status record to be written")
	}
	if rec.SnapshotID != "snap-1" {
		t.Errorf("unexpected snapshot id recorded: %q", rec.SnapshotID)
	}
}

func TestSyncPlaylistWishlistsExhaustedTrack(t *testing.T) {
	missingTrack := models.Track{ID: "t1", Title: "Some Obscure Song", Artists: []string{"Nobody Knows"}}
	playlist := models.Playlist{ID: "pl1", Name: "Deep Cuts", Owner: "alice", SnapshotID: "snap-1", Tracks: []models.Track{missingTrack}}

	idx, err := library.Load(context.Background(), &fakeMediaLibrary{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	daemon := newFakeDaemon() // no search results configured -> every query returns nothing
	wishlist := newFakeWishlist()
	syncStatus := newFakeSyncStatus()

	p := New(idx, daemon, nil, nil, nil, wishlist, syncStatus, nil, Opts{PollInterval: 5 * time.Millisecond, StallTimeout: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := p.SyncPlaylist(ctx, playlist)
	if err != nil {
		t.Fatalf("SyncPlaylist: %v", err)
	}
	if result.Acquired[0].State != models.StateFailed {
		t.Fatalf("expected download to fail when no candidates are ever found, got %v", result.Acquired[0].State)
	}
	if len(wishlist.added) != 1 {
		t.Errorf("expected exactly 1 wishlist addition, got %d", len(wishlist.added))
	}
}

type fakeWishlist struct {
	mu    sync.Mutex
	added []models.Track
}

func newFakeWishlist() *fakeWishlist { return &fakeWishlist{} }

func (f *fakeWishlist) Add(normTitle, normArtist string, track models.Track, sourceType models.SourceType, ctx models.SourceContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, track)
	return nil
}

func (f *fakeWishlist) Resolve(normTitle, normArtist string) error { return nil }

type fakeSyncStatus struct {
	mu      sync.Mutex
	records map[string]models.SyncStatusRecord
}

func newFakeSyncStatus() *fakeSyncStatus {
	return &fakeSyncStatus{records: map[string]models.SyncStatusRecord{}}
}

func (f *fakeSyncStatus) Put(record models.SyncStatusRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.PlaylistID] = record
	return nil
}
