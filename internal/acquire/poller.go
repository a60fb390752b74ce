package acquire

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/events"
)

// DefaultPollInterval matches spec §4.9's "every 2s" cadence.
const DefaultPollInterval = 2 * time.Second

// maxAPIMissingStreak is the grace period (consecutive absent polls)
// before a tracked download with no matching daemon row is classified as
// failed, preventing flapping on a daemon that briefly drops a row.
const maxAPIMissingStreak = 3

// ClassifyState maps a daemon-reported raw state string to one of the
// poller's five buckets, in the priority order spec mandates: completion
// and cancellation strings can coexist on some slskd builds, so
// Cancelled/Failed are checked ahead of Completed.
func ClassifyState(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "cancel"):
		return "cancelled"
	case strings.Contains(lower, "fail") || strings.Contains(lower, "error"):
		return "failed"
	case strings.Contains(lower, "complet") || strings.Contains(lower, "succeed"):
		return "completed"
	case strings.Contains(lower, "progress") || strings.Contains(lower, "inprogress"):
		return "in_progress"
	default:
		return "queued"
	}
}

// Tracked is the minimal view the poller needs of a controller-owned
// ActiveDownload: an id for event correlation, an optional known transfer
// id, the expected filename for basename-adoption, and the running
// api-missing streak (owned and mutated by the poller across polls).
type Tracked struct {
	DownloadIndex   int
	TransferID      string // may be empty; the poller can adopt one
	ExpectedFile    string
	APIMissingCount int
}

// PollResult is what the poller reports back per tracked download after a
// single pass; the caller (the Acquisition Controller/supervisor) applies
// the state-machine transition, not the poller itself.
type PollResult struct {
	DownloadIndex   int
	AdoptedID       string // non-empty if a transfer id was newly adopted this pass
	Row             *TransferRow
	State           string // classified, or "" if no row was found at all
	APIMissingCount int
	GraceExceeded   bool
}

// Poller runs the single-flight, 2-second transfer-table poll loop (C9).
type Poller struct {
	daemon   TransferDaemon
	bus      *events.Bus
	interval time.Duration
	inFlight int32
}

// NewPoller builds a poller against daemon, publishing TransferUpdate
// events on bus (which may be nil).
func NewPoller(daemon TransferDaemon, bus *events.Bus, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{daemon: daemon, bus: bus, interval: interval}
}

// Run blocks, polling every p.interval until ctx is cancelled. tracked is
// called on each tick to get the current snapshot of downloads to
// reconcile — a function rather than a static slice because the
// supervisor's tracked set changes as downloads complete/fail and new
// ones are dispatched.
func (p *Poller) Run(ctx context.Context, tracked func() []Tracked, onResult func([]PollResult)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, tracked, onResult)
		}
	}
}

func (p *Poller) tick(ctx context.Context, tracked func() []Tracked, onResult func([]PollResult)) {
	if !atomic.CompareAndSwapInt32(&p.inFlight, 0, 1) {
		return // a poll is already in flight; skip this tick (single-flight)
	}
	defer atomic.StoreInt32(&p.inFlight, 0)

	rows, err := p.daemon.Downloads(ctx)
	if err != nil {
		return
	}

	results := p.Reconcile(tracked(), rows)

	for _, r := range results {
		if r.Row == nil {
			continue
		}
		publish(p.bus, events.Event{
			Type: events.TransferUpdate,
			Payload: events.TransferUpdatePayload{
				DownloadIndex: r.DownloadIndex,
				Status:        r.State,
				Progress:      r.Row.ProgressPct,
				TransferID:    r.Row.TransferID,
				Username:      r.Row.Username,
			},
		})
	}

	if onResult != nil {
		onResult(results)
	}
}

// Reconcile implements spec §4.9 steps 4-6: build a by-id index, match
// each tracked download by id first and by case-insensitive basename
// second (adopting the discovered id), bump the missing-streak when
// neither matches, and classify the matched row's state.
func (p *Poller) Reconcile(tracked []Tracked, rows []TransferRow) []PollResult {
	byID := make(map[string]TransferRow, len(rows))
	for _, r := range rows {
		byID[r.TransferID] = r
	}

	out := make([]PollResult, 0, len(tracked))
	for _, t := range tracked {
		result := PollResult{DownloadIndex: t.DownloadIndex, APIMissingCount: t.APIMissingCount}

		if t.TransferID != "" {
			if row, ok := byID[t.TransferID]; ok {
				row := row
				result.Row = &row
				result.State = ClassifyState(row.State)
				result.APIMissingCount = 0
				out = append(out, result)
				continue
			}
		}

		if row, ok := findByBasename(rows, t.ExpectedFile); ok {
			row := row
			result.Row = &row
			result.AdoptedID = row.TransferID
			result.State = ClassifyState(row.State)
			result.APIMissingCount = 0
			out = append(out, result)
			continue
		}

		result.APIMissingCount = t.APIMissingCount + 1
		result.GraceExceeded = result.APIMissingCount >= maxAPIMissingStreak
		out = append(out, result)
	}
	return out
}

func findByBasename(rows []TransferRow, expectedFile string) (TransferRow, bool) {
	expectedBase := strings.ToLower(basename(expectedFile))
	if expectedBase == "" {
		return TransferRow{}, false
	}
	for _, r := range rows {
		if strings.ToLower(basename(r.Filename)) == expectedBase {
			return r, true
		}
	}
	return TransferRow{}, false
}

func basename(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
