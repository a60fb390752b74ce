// Package analysis implements the Analysis Worker Pool (C6): for every
// track in a playlist, dispatches a Local-Library Index existence lookup
// across a bounded pool of workers and reports the missing set.
package analysis

import (
	"context"
	"sync"

	"github.com/Nezreka/SoulSync-sub002/internal/events"
	"github.com/Nezreka/SoulSync-sub002/internal/library"
	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// DefaultWorkers is the pool size used when Opts.Workers is unset.
const DefaultWorkers = 5

// Opts configures Run.
type Opts struct {
	Workers int
}

// Result is one track's existence-check outcome, always tagged with its
// position in the original playlist so the caller can reassemble order
// regardless of completion order.
type Result struct {
	Index      int
	Track      models.Track
	Match      *models.LibraryTrack
	Found      bool
	Confidence float64
}

// Missing filters results down to tracks the library pool did not find.
func Missing(results []Result) []models.Track {
	var out []models.Track
	for _, r := range results {
		if !r.Found {
			out = append(out, r.Track)
		}
	}
	return out
}

// Run checks every track in tracks against idx across a bounded worker
// pool (default DefaultWorkers), publishing AnalysisStarted, one
// TrackAnalyzed per completed lookup (in completion order, not playlist
// order), and a final AnalysisCompleted carrying every result in playlist
// order once the pool drains. bus may be nil, in which case no events are
// published. Cancellation is cooperative: workers check ctx before each
// lookup and stop pulling new jobs once it is done.
func Run(ctx context.Context, idx *library.Index, tracks []models.Track, bus *events.Bus, opts Opts) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	publish(bus, events.Event{Type: events.AnalysisStarted, Payload: events.AnalysisStartedPayload{Total: len(tracks)}})

	jobs := make(chan int, len(tracks))
	resultsCh := make(chan Result, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker(ctx, &wg, idx, tracks, jobs, resultsCh, bus)
	}

	go func() {
		for i := range tracks {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			case jobs <- i:
			}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	ordered := make([]Result, len(tracks))
	filled := make([]bool, len(tracks))
	for r := range resultsCh {
		ordered[r.Index] = r
		filled[r.Index] = true
	}

	payload := events.AnalysisCompletedPayload{}
	for i, r := range ordered {
		if !filled[i] {
			continue
		}
		payload.Results = append(payload.Results, events.TrackAnalyzedPayload{
			Index: r.Index, Title: r.Track.Title, Artist: r.Track.PrimaryArtist(),
			Found: r.Found, Confidence: r.Confidence,
		})
	}
	publish(bus, events.Event{Type: events.AnalysisCompleted, Payload: payload})

	if ctx.Err() != nil {
		return ordered, ctx.Err()
	}
	return ordered, nil
}

func worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	idx *library.Index,
	tracks []models.Track,
	jobs <-chan int,
	results chan<- Result,
	bus *events.Bus,
) {
	defer wg.Done()

	for i := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t := tracks[i]
		match, confidence := idx.Exists(t.Title, t.PrimaryArtist(), 0, nil)
		r := Result{Index: i, Track: t, Match: match, Found: match != nil, Confidence: confidence}

		publish(bus, events.Event{
			Type: events.TrackAnalyzed,
			Payload: events.TrackAnalyzedPayload{
				Index: i, Title: t.Title, Artist: t.PrimaryArtist(),
				Found: r.Found, Confidence: confidence,
			},
		})

		results <- r
	}
}

func publish(bus *events.Bus, e events.Event) {
	if bus == nil {
		return
	}
	bus.Publish(e)
}
