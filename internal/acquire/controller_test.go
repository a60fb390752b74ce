package acquire

import (
	"context"
	"testing"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/events"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

type fakeDaemon struct {
	searchResults map[string][]models.Candidate
	dispatchErr   error
	dispatchCalls []string
	cancelCalls   []string
	nextTransfer  int
}

func (f *fakeDaemon) Search(ctx context.Context, query string) ([]models.Candidate, error) {
	return f.searchResults[query], nil
}

func (f *fakeDaemon) Dispatch(ctx context.Context, username, filename string, sizeBytes int64) (string, error) {
	f.dispatchCalls = append(f.dispatchCalls, username+"/"+filename)
	if f.dispatchErr != nil {
		return "", f.dispatchErr
	}
	f.nextTransfer++
	return "tx", nil
}

func (f *fakeDaemon) Cancel(ctx context.Context, transferID, username string, remove bool) error {
	f.cancelCalls = append(f.cancelCalls, transferID)
	return nil
}

func (f *fakeDaemon) Downloads(ctx context.Context) ([]TransferRow, error) { return nil, nil }

func track() models.Track {
	return models.Track{Title: "Mr. Brightside", Artists: []string{"The Killers"}}
}

func TestControllerStartDispatchesFirstMatchingQuery(t *testing.T) {
	daemon := &fakeDaemon{
		searchResults: map[string][]models.Candidate{
			"The Killers Mr. Brightside": {
				{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC},
			},
		},
	}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"The Killers Mr. Brightside"}, Opts{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if dl.State != models.StateQueued {
		t.Errorf("expected Queued, got %s", dl.State)
	}
	if dl.TransferID != "tx" {
		t.Errorf("expected transfer id set, got %q", dl.TransferID)
	}
}

func TestControllerStartFailsWhenAllQueriesExhausted(t *testing.T) {
	daemon := &fakeDaemon{searchResults: map[string][]models.Candidate{}}
	dl := models.NewActiveDownload(0, track())
	var gotFailed bool
	bus := events.NewBus()
	sub := bus.Subscribe(4)
	go func() {
		for e := range sub {
			if e.Type == events.Failed {
				gotFailed = true
			}
		}
	}()

	c := NewController(daemon, nil, nil, bus, dl, []string{"q1", "q2"}, Opts{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if dl.State != models.StateFailed {
		t.Errorf("expected Failed, got %s", dl.State)
	}
	if !gotFailed {
		t.Error("expected a Failed event to be published")
	}
}

func TestControllerRetryAdvancesToNextCandidateThenNextQuery(t *testing.T) {
	daemon := &fakeDaemon{
		searchResults: map[string][]models.Candidate{
			"q1": {
				{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC},
			},
			"q2": {
				{Filename: "The Killers/Mr Brightside.mp3", Username: "peer2", Quality: models.QualityMP3, BitrateKbps: 320},
			},
		},
	}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"q1", "q2"}, Opts{MaxRetries: 2})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if dl.State != models.StateQueued {
		t.Fatalf("expected Queued after first dispatch, got %s", dl.State)
	}
	firstTransferID := dl.TransferID

	if err := c.retry(context.Background(), "stuck"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if dl.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", dl.RetryCount)
	}
	if dl.State != models.StateQueued {
		t.Errorf("expected to re-enter Queued after falling to the next query, got %s", dl.State)
	}
	if len(daemon.cancelCalls) != 1 || daemon.cancelCalls[0] != firstTransferID {
		t.Errorf("expected cancel-before-retry for %q, got %v", firstTransferID, daemon.cancelCalls)
	}
	if len(daemon.dispatchCalls) != 2 {
		t.Errorf("expected 2 dispatch calls total, got %d", len(daemon.dispatchCalls))
	}
}

func TestControllerRetryCancelsCurrentCandidateWithinSameQuery(t *testing.T) {
	daemon := &fakeDaemon{
		searchResults: map[string][]models.Candidate{
			"q1": {
				{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC},
				{Filename: "The Killers/Mr Brightside (alt).flac", Username: "peer2", Quality: models.QualityFLAC},
			},
		},
	}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"q1"}, Opts{MaxRetries: 2})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if dl.Candidate == nil || dl.Candidate.Username != "peer1" {
		t.Fatalf("expected first dispatch to be peer1, got %+v", dl.Candidate)
	}

	// First retry: still within q1's cache, moves to peer2. The cancel for
	// this retry targets the transfer just dispatched to peer1.
	if err := c.retry(context.Background(), "stuck"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if dl.Candidate == nil || dl.Candidate.Username != "peer2" {
		t.Fatalf("expected second dispatch to be peer2, got %+v", dl.Candidate)
	}
	if len(daemon.cancelCalls) != 1 {
		t.Fatalf("expected 1 cancel call after first retry, got %d", len(daemon.cancelCalls))
	}

	// Second retry: q1's cache is exhausted, no more queries, so this fails.
	// The cancel for this retry must pair peer2's transfer with peer2's
	// username, not peer1's (the first-used-source bug).
	secondTransferID := dl.TransferID
	if err := c.retry(context.Background(), "stuck"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(daemon.cancelCalls) != 2 {
		t.Fatalf("expected 2 cancel calls after second retry, got %d", len(daemon.cancelCalls))
	}
	if daemon.cancelCalls[1] != secondTransferID {
		t.Errorf("expected second cancel to target %q, got %q", secondTransferID, daemon.cancelCalls[1])
	}
	if daemon.dispatchCalls[1] != "peer2/The Killers/Mr Brightside (alt).flac" {
		t.Errorf("expected second dispatch to peer2, got %v", daemon.dispatchCalls)
	}
}

func TestControllerHandlePollDaemonCancelledTriggersRetryNotTerminalCancel(t *testing.T) {
	daemon := &fakeDaemon{
		searchResults: map[string][]models.Candidate{
			"q1": {{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC}},
			"q2": {{Filename: "The Killers/Mr Brightside.mp3", Username: "peer2", Quality: models.QualityMP3, BitrateKbps: 320}},
		},
	}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"q1", "q2"}, Opts{MaxRetries: 2})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result := PollResult{DownloadIndex: 0, Row: &TransferRow{State: "Cancelled"}, State: "cancelled"}
	if err := c.HandlePoll(context.Background(), result); err != nil {
		t.Fatalf("HandlePoll: %v", err)
	}
	if dl.State == models.StateCancelled {
		t.Error("a daemon-originated cancellation must retry, not land in the terminal Cancelled state")
	}
	if dl.RetryCount != 1 {
		t.Errorf("expected a retry to be recorded, got retry count %d state %s", dl.RetryCount, dl.State)
	}
}

func TestControllerRetryExceedsMaxRetriesFails(t *testing.T) {
	daemon := &fakeDaemon{searchResults: map[string][]models.Candidate{
		"q1": {
			{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC},
			{Filename: "The Killers/Mr Brightside (alt).flac", Username: "peer2", Quality: models.QualityFLAC},
			{Filename: "The Killers/Mr Brightside (alt 2).flac", Username: "peer3", Quality: models.QualityFLAC},
		},
	}}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"q1"}, Opts{MaxRetries: 1})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// First retry (retry count 1) is within MaxRetries and dispatches the next candidate.
	if err := c.retry(context.Background(), "stuck"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if dl.State != models.StateQueued {
		t.Fatalf("expected Queued after the first retry, got %s", dl.State)
	}
	// Second retry (retry count 2) exceeds MaxRetries while a third candidate is still unused.
	if err := c.retry(context.Background(), "stuck"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if dl.State != models.StateFailed {
		t.Errorf("expected Failed after exceeding max retries, got %s", dl.State)
	}
	if len(daemon.dispatchCalls) != 2 {
		t.Errorf("expected the unused third candidate not to be dispatched, got %v", daemon.dispatchCalls)
	}
}

func TestControllerHandlePollQueueStallTriggersRetry(t *testing.T) {
	daemon := &fakeDaemon{searchResults: map[string][]models.Candidate{
		"q1": {{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC}},
	}}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"q1"}, Opts{MaxRetries: 1})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stale := time.Now().Add(-100 * time.Second)
	dl.QueuedStartTime = &stale

	result := PollResult{DownloadIndex: 0, Row: &TransferRow{State: "Queued"}, State: "queued"}
	if err := c.HandlePoll(context.Background(), result); err != nil {
		t.Fatalf("HandlePoll: %v", err)
	}
	if dl.RetryCount != 1 {
		t.Errorf("expected a stall-triggered retry, got retry count %d state %s", dl.RetryCount, dl.State)
	}
}

type fakeVerifier struct{ outcome models.VerificationOutcome }

func (f fakeVerifier) Verify(ctx context.Context, filePath, expectedTitle, expectedArtist string) models.VerificationOutcome {
	return f.outcome
}

type fakeQuarantine struct{ moved []string }

func (f *fakeQuarantine) Move(filePath string) (string, error) {
	f.moved = append(f.moved, filePath)
	return filePath + ".quarantine", nil
}

func TestControllerOnTransferCompletedPassMarksCompleted(t *testing.T) {
	daemon := &fakeDaemon{searchResults: map[string][]models.Candidate{
		"q1": {{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC}},
	}}
	dl := models.NewActiveDownload(0, track())
	verifier := fakeVerifier{outcome: models.VerificationOutcome{Result: models.VerificationPass}}
	c := NewController(daemon, verifier, nil, nil, dl, []string{"q1"}, Opts{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result := PollResult{DownloadIndex: 0, Row: &TransferRow{Filename: "Mr Brightside.flac", State: "Completed"}, State: "completed"}
	if err := c.HandlePoll(context.Background(), result); err != nil {
		t.Fatalf("HandlePoll: %v", err)
	}
	if dl.State != models.StateCompleted {
		t.Errorf("expected Completed, got %s", dl.State)
	}
}

func TestControllerOnTransferCompletedFailQuarantinesAndRetries(t *testing.T) {
	daemon := &fakeDaemon{searchResults: map[string][]models.Candidate{
		"q1": {
			{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC},
			{Filename: "The Killers/Mr Brightside (live).flac", Username: "peer2", Quality: models.QualityFLAC},
		},
	}}
	dl := models.NewActiveDownload(0, track())
	verifier := fakeVerifier{outcome: models.VerificationOutcome{Result: models.VerificationFail, Reason: "no match"}}
	quarantine := &fakeQuarantine{}
	c := NewController(daemon, verifier, quarantine, nil, dl, []string{"q1"}, Opts{MaxRetries: 2})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	result := PollResult{DownloadIndex: 0, Row: &TransferRow{Filename: "Mr Brightside.flac", State: "Completed"}, State: "completed"}
	if err := c.HandlePoll(context.Background(), result); err != nil {
		t.Fatalf("HandlePoll: %v", err)
	}
	if dl.RetryCount != 1 {
		t.Errorf("expected retry after FAIL verification, got retry count %d", dl.RetryCount)
	}
	if len(quarantine.moved) != 1 {
		t.Errorf("expected the failed file to be quarantined, got %v", quarantine.moved)
	}
}

func TestControllerCancelStopsTransferAndMarksCancelled(t *testing.T) {
	daemon := &fakeDaemon{searchResults: map[string][]models.Candidate{
		"q1": {{Filename: "The Killers/Mr Brightside.flac", Username: "peer1", Quality: models.QualityFLAC}},
	}}
	dl := models.NewActiveDownload(0, track())
	c := NewController(daemon, nil, nil, nil, dl, []string{"q1"}, Opts{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if dl.State != models.StateCancelled {
		t.Errorf("expected Cancelled, got %s", dl.State)
	}
	if len(daemon.cancelCalls) != 1 {
		t.Errorf("expected a daemon cancel call, got %d", len(daemon.cancelCalls))
	}
}
