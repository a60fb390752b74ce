// Package events implements the typed event bus described in spec's design
// notes: the core emits typed events onto channels instead of holding
// direct references to observers (GUI widgets, loggers, CLI progress
// bars), replacing the original's cyclic widget↔service back-references.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of event carried by an [Event].
type Type string

const (
	AnalysisStarted   Type = "analysis_started"   // payload: AnalysisStartedPayload
	TrackAnalyzed     Type = "track_analyzed"     // payload: TrackAnalyzedPayload
	AnalysisCompleted Type = "analysis_completed" // payload: AnalysisCompletedPayload
	Dispatched        Type = "dispatched"         // payload: DispatchedPayload
	TransferUpdate    Type = "transfer_update"     // payload: TransferUpdatePayload
	Verified          Type = "verified"           // payload: VerifiedPayload
	Completed         Type = "completed"          // payload: CompletedPayload
	Failed            Type = "failed"             // payload: FailedPayload
	ScanQueued        Type = "scan_queued"        // payload: ScanQueuedPayload
	ScanStarted       Type = "scan_started"       // payload: ScanStartedPayload
	ScanProgress      Type = "scan_progress"      // payload: ScanProgressPayload
	ScanCompleted     Type = "scan_completed"     // payload: ScanCompletedPayload
)

// Event is a single typed message published on the [Bus].
type Event struct {
	Type    Type
	Payload any
}

// terminalTypes never drop under backpressure: a subscriber that falls
// behind on terminal events would silently lose track of a download's final
// outcome. Progress events (AnalysisStarted, TrackAnalyzed, TransferUpdate)
// never block the publisher instead: a progress event is discarded for a
// subscriber whose buffer is full, and the events already buffered for it
// are kept, so a slow consumer misses the newest ticks, not the stale ones.
var terminalTypes = map[Type]bool{
	AnalysisCompleted: true,
	Dispatched:        true,
	Verified:          true,
	Completed:         true,
	Failed:            true,
	ScanCompleted:     true,
}

// Bus fans out events to every subscriber. The zero value is not usable;
// construct with [NewBus].
type Bus struct {
	mu          sync.Mutex
	subscribers []chan Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new observer and returns its receive channel,
// buffered to bufferSize. The channel is never closed by the bus; callers
// that need to stop listening should simply stop reading.
func (b *Bus) Subscribe(bufferSize int) <-chan Event {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	ch := make(chan Event, bufferSize)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish fans e out to every subscriber. Progress-type events are dropped
// for a subscriber whose buffer is full; terminal-type events block until
// that subscriber has room, since losing a Completed/Failed event would
// leave the caller's view of a download permanently stale.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]chan Event, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, ch := range subs {
		if terminalTypes[e.Type] {
			ch <- e
			continue
		}
		select {
		case ch <- e:
		default:
		}
	}
}

// AnalysisStartedPayload accompanies [AnalysisStarted].
type AnalysisStartedPayload struct {
	Total int
}

// TrackAnalyzedPayload accompanies [TrackAnalyzed]. Index is the track's
// position in the originating playlist, not dispatch/completion order.
type TrackAnalyzedPayload struct {
	Index      int
	Title      string
	Artist     string
	Found      bool
	Confidence float64
}

// AnalysisCompletedPayload accompanies [AnalysisCompleted], carrying every
// per-track result once the analysis pool has drained.
type AnalysisCompletedPayload struct {
	Results []TrackAnalyzedPayload
}

// DispatchedPayload accompanies [Dispatched].
type DispatchedPayload struct {
	DownloadIndex int
	Username      string
	Filename      string
}

// TransferUpdatePayload accompanies [TransferUpdate]; mirrors C9's
// per-download poll event.
type TransferUpdatePayload struct {
	DownloadIndex int
	Status        string
	Progress      float64
	TransferID    string
	Username      string
}

// VerifiedPayload accompanies [Verified].
type VerifiedPayload struct {
	DownloadIndex int
	Result        string
	Reason        string
}

// CompletedPayload accompanies [Completed].
type CompletedPayload struct {
	DownloadIndex int
	FilePath      string
}

// FailedPayload accompanies [Failed].
type FailedPayload struct {
	DownloadIndex int
	Reason        string
}

// ScanQueuedPayload accompanies [ScanQueued], emitted each time
// request_scan debounces or queues a follow-up scan.
type ScanQueuedPayload struct {
	Reason string
}

// ScanStartedPayload accompanies [ScanStarted], emitted once the debounce
// timer fires and the media server's scan endpoint is called.
type ScanStartedPayload struct {
	Reason string
}

// ScanProgressPayload accompanies [ScanProgress], emitted on each
// mid-scan probe tick.
type ScanProgressPayload struct {
	Elapsed  time.Duration
	Scanning bool
}

// ScanCompletedPayload accompanies [ScanCompleted].
type ScanCompletedPayload struct {
	DownloadsDuringScan bool
	TimedOut            bool
}
