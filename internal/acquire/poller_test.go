package acquire

import "testing"

func TestClassifyStatePriorityOrder(t *testing.T) {
	cases := map[string]string{
		"Cancelled":             "cancelled",
		"Canceled":              "cancelled",
		"Completed, Cancelled":  "cancelled", // cancellation wins even when completion text coexists
		"Failed":                "failed",
		"Errored":                "failed",
		"Completed":             "completed",
		"Succeeded":             "completed",
		"InProgress":            "in_progress",
		"Queued":                "queued",
		"SomeUnknownDaemonText": "queued",
	}
	for raw, want := range cases {
		if got := ClassifyState(raw); got != want {
			t.Errorf("ClassifyState(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestReconcileMatchesByTransferID(t *testing.T) {
	p := &Poller{}
	tracked := []Tracked{{DownloadIndex: 0, TransferID: "tx1", ExpectedFile: "song.flac"}}
	rows := []TransferRow{{TransferID: "tx1", Filename: "song.flac", State: "InProgress", ProgressPct: 50}}

	results := p.Reconcile(tracked, rows)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].State != "in_progress" {
		t.Errorf("expected in_progress, got %s", results[0].State)
	}
	if results[0].AdoptedID != "" {
		t.Error("expected no adoption when the id was already known")
	}
}

func TestReconcileAdoptsIDByBasenameMatch(t *testing.T) {
	p := &Poller{}
	tracked := []Tracked{{DownloadIndex: 0, ExpectedFile: "Artist/Album/Song.flac"}}
	rows := []TransferRow{{TransferID: "tx-new", Filename: "Different/Path/song.flac", State: "Queued"}}

	results := p.Reconcile(tracked, rows)
	if results[0].AdoptedID != "tx-new" {
		t.Errorf("expected to adopt tx-new by basename match, got %q", results[0].AdoptedID)
	}
}

func TestReconcileIncrementsMissingCountAndTripsGrace(t *testing.T) {
	p := &Poller{}
	tracked := []Tracked{{DownloadIndex: 0, ExpectedFile: "ghost.flac", APIMissingCount: 2}}

	results := p.Reconcile(tracked, nil)
	if results[0].APIMissingCount != 3 {
		t.Errorf("expected missing count 3, got %d", results[0].APIMissingCount)
	}
	if !results[0].GraceExceeded {
		t.Error("expected grace period exceeded at 3 consecutive absences")
	}
}

func TestReconcileWithinGracePeriodDoesNotTrip(t *testing.T) {
	p := &Poller{}
	tracked := []Tracked{{DownloadIndex: 0, ExpectedFile: "ghost.flac", APIMissingCount: 0}}

	results := p.Reconcile(tracked, nil)
	if results[0].GraceExceeded {
		t.Error("expected grace period not yet exceeded at 1 consecutive absence")
	}
}
