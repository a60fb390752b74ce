package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/Nezreka/SoulSync-sub002/internal/events"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// DefaultStallTimeout is spec's "90s with no progress" stuck-transfer
// threshold (§4.8), applied independently to both Queued and
// Downloading-at-0% since a transfer can sit in either state on its own
// clock. Config-overridable via PipelineConfig.QueueStallSeconds.
const (
	DefaultStallTimeout = 90 * time.Second
	DefaultMaxRetries   = 2 // spec: retry_count > 2 -> Failed, i.e. 3 attempts total
)

// FingerprintVerifier is the capability the controller needs from C10 once
// a download completes. Injected explicitly rather than looked up from a
// global, per spec's design note on replacing singleton state with DI.
type FingerprintVerifier interface {
	Verify(ctx context.Context, filePath, expectedTitle, expectedArtist string) models.VerificationOutcome
}

// Quarantine moves a file that failed fingerprint verification aside so it
// doesn't pollute the library while a retry is attempted.
type Quarantine interface {
	Move(filePath string) (newPath string, err error)
}

// Controller is the per-track state machine described in spec §4.8. One
// instance supervises exactly one [models.ActiveDownload].
type Controller struct {
	daemon     TransferDaemon
	verifier   FingerprintVerifier
	quarantine Quarantine
	bus        *events.Bus

	download *models.ActiveDownload
	queries  []string

	qualityPreference string
	maxRetries        int
	stallTimeout      time.Duration
}

// Opts configures a Controller. Zero values fall back to spec defaults.
type Opts struct {
	QualityPreference string
	MaxRetries        int
	StallTimeout      time.Duration
}

// NewController builds a controller for track, with queries as the
// ordered fallback query sequence from the Query Builder (C3).
func NewController(daemon TransferDaemon, verifier FingerprintVerifier, quarantine Quarantine, bus *events.Bus, download *models.ActiveDownload, queries []string, opts Opts) *Controller {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	qualityPref := opts.QualityPreference
	if qualityPref == "" {
		qualityPref = "any"
	}
	stallTimeout := opts.StallTimeout
	if stallTimeout <= 0 {
		stallTimeout = DefaultStallTimeout
	}
	return &Controller{
		daemon:            daemon,
		verifier:          verifier,
		quarantine:        quarantine,
		bus:               bus,
		download:          download,
		queries:           queries,
		qualityPreference: qualityPref,
		maxRetries:        maxRetries,
		stallTimeout:      stallTimeout,
	}
}

// Start drives Idle -> Searching(0) and runs the search/dispatch sequence
// forward until either a candidate is dispatched or every query is
// exhausted (-> Failed).
func (c *Controller) Start(ctx context.Context) error {
	c.download.State = models.StateSearching
	return c.searchFrom(ctx, 0)
}

// searchFrom tries queries[i:] in order, dispatching the first query whose
// verified candidate list is non-empty. Exhausting every query transitions
// to Failed.
func (c *Controller) searchFrom(ctx context.Context, i int) error {
	for ; i < len(c.queries); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.download.QueryIndex = i
		raw, err := c.daemon.Search(ctx, c.queries[i])
		if err != nil {
			return fmt.Errorf("search query %d failed: %w", i, err)
		}

		verified := VerifyCandidates(raw, c.download.Track.Title, c.download.Track.PrimaryArtist(), c.qualityPreference)
		// Drop candidates already tried under an earlier query for this track.
		fresh := make([]models.Candidate, 0, len(verified))
		for _, cand := range verified {
			if !c.download.HasUsedSource(cand.Username, cand.Filename) {
				fresh = append(fresh, cand)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		c.download.CandidatesCache = fresh
		return c.dispatchNext(ctx)
	}

	return c.fail(ctx, "search exhausted: no candidate found across any query")
}

// dispatchNext picks the head of CandidatesCache and dispatches it.
func (c *Controller) dispatchNext(ctx context.Context) error {
	cand := c.download.NextUnusedCandidate()
	if cand == nil {
		// cache exhausted without a fresh candidate: fall through to the next query
		return c.searchFrom(ctx, c.download.QueryIndex+1)
	}

	c.download.State = models.StateDispatching
	transferID, err := c.daemon.Dispatch(ctx, cand.Username, cand.Filename, cand.SizeBytes)
	if err != nil {
		c.download.MarkSourceUsed(cand.Username, cand.Filename)
		return c.dispatchNext(ctx)
	}

	dispatched := *cand
	c.download.TransferID = transferID
	c.download.Candidate = &dispatched
	c.download.MarkSourceUsed(cand.Username, cand.Filename)
	now := time.Now()
	c.download.QueuedStartTime = &now
	c.download.State = models.StateQueued

	publish(c.bus, events.Event{
		Type: events.Dispatched,
		Payload: events.DispatchedPayload{
			DownloadIndex: c.download.DownloadIndex,
			Username:      cand.Username,
			Filename:      cand.Filename,
		},
	})
	return nil
}

// HandlePoll applies one Transfer Poller result to this download's state
// machine. It is the only place transitions happen, keeping the
// orchestrator single-threaded per spec §5.
func (c *Controller) HandlePoll(ctx context.Context, result PollResult) error {
	if result.AdoptedID != "" {
		c.download.TransferID = result.AdoptedID
	}
	c.download.APIMissingCount = result.APIMissingCount

	if result.Row == nil {
		if result.GraceExceeded {
			return c.retry(ctx, "transfer row absent for 3 consecutive polls")
		}
		return nil
	}

	switch result.State {
	case "cancelled", "failed":
		return c.retry(ctx, "daemon reported transfer failed/errored/cancelled")

	case "completed":
		return c.onTransferCompleted(ctx, result.Row.Filename)

	case "in_progress":
		if c.download.State != models.StateDownloading {
			now := time.Now()
			c.download.DownloadingStartTime = &now
		}
		c.download.State = models.StateDownloading
		return c.checkStall(ctx, result.Row.ProgressPct)

	default: // queued
		c.download.State = models.StateQueued
		return c.checkStall(ctx, -1)
	}
}

// checkStall applies the 90s-no-progress rule for both Queued and
// Downloading(0%); progressPct < 0 means "not in the downloading state".
func (c *Controller) checkStall(ctx context.Context, progressPct float64) error {
	switch c.download.State {
	case models.StateQueued:
		if c.download.QueuedStartTime != nil && time.Since(*c.download.QueuedStartTime) >= c.stallTimeout {
			return c.retry(ctx, "stuck in queue past the stall timeout")
		}
	case models.StateDownloading:
		if progressPct <= 0 && c.download.DownloadingStartTime != nil &&
			time.Since(*c.download.DownloadingStartTime) >= c.stallTimeout {
			return c.retry(ctx, "stuck at 0% past the stall timeout")
		}
	}
	return nil
}

// onTransferCompleted hands the downloaded file to C10, quarantining and
// retrying on FAIL, and terminating on PASS/SKIP/DISABLED (fail-open).
func (c *Controller) onTransferCompleted(ctx context.Context, filePath string) error {
	if c.verifier == nil {
		c.download.State = models.StateCompleted
		publish(c.bus, events.Event{Type: events.Completed, Payload: events.CompletedPayload{
			DownloadIndex: c.download.DownloadIndex, FilePath: filePath,
		}})
		return nil
	}

	outcome := c.verifier.Verify(ctx, filePath, c.download.Track.Title, c.download.Track.PrimaryArtist())
	publish(c.bus, events.Event{Type: events.Verified, Payload: events.VerifiedPayload{
		DownloadIndex: c.download.DownloadIndex, Result: string(outcome.Result), Reason: outcome.Reason,
	}})

	if outcome.Result == models.VerificationFail {
		if c.quarantine != nil {
			_, _ = c.quarantine.Move(filePath)
		}
		return c.retry(ctx, fmt.Sprintf("fingerprint verification failed: %s", outcome.Reason))
	}

	c.download.State = models.StateCompleted
	publish(c.bus, events.Event{Type: events.Completed, Payload: events.CompletedPayload{
		DownloadIndex: c.download.DownloadIndex, FilePath: filePath,
	}})
	return nil
}

// retry implements spec's Retrying state: cancel the stuck transfer first
// (cancel-before-retry), bump retry_count, and either try the next cached
// candidate, advance to the next query, or give up entirely (-> Failed).
func (c *Controller) retry(ctx context.Context, reason string) error {
	if c.download.TransferID != "" && c.download.Candidate != nil {
		_ = c.daemon.Cancel(ctx, c.download.TransferID, c.download.Candidate.Username, false)
	}

	c.download.RetryCount++
	c.download.State = models.StateRetrying
	c.download.TransferID = ""
	c.download.Candidate = nil
	c.download.QueuedStartTime = nil
	c.download.DownloadingStartTime = nil
	c.download.APIMissingCount = 0

	if c.download.RetryCount > c.maxRetries {
		return c.fail(ctx, reason)
	}

	if next := c.download.NextUnusedCandidate(); next != nil {
		return c.dispatchNext(ctx)
	}
	return c.searchFrom(ctx, c.download.QueryIndex+1)
}

// Cancel implements the user-initiated -> Cancelled transition, also
// requesting the daemon cancel the current transfer.
func (c *Controller) Cancel(ctx context.Context) error {
	if c.download.TransferID != "" && c.download.Candidate != nil {
		_ = c.daemon.Cancel(ctx, c.download.TransferID, c.download.Candidate.Username, true)
	}
	c.download.State = models.StateCancelled
	return nil
}

func (c *Controller) fail(ctx context.Context, reason string) error {
	c.download.State = models.StateFailed
	publish(c.bus, events.Event{Type: events.Failed, Payload: events.FailedPayload{
		DownloadIndex: c.download.DownloadIndex, Reason: reason,
	}})
	return nil
}
