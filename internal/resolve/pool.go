package resolve

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
	"github.com/Nezreka/SoulSync-sub002/internal/services"
)

// DefaultWorkers and DefaultStagger match spec's bounded resolver pool: 3
// workers, 150ms between dispatches, so the catalog's published rate limit
// is respected even when a playlist has hundreds of YouTube-sourced tracks.
const (
	DefaultWorkers = 3
	DefaultStagger = 150 * time.Millisecond
)

// BatchOpts configures ResolveBatch. Zero values fall back to the spec
// defaults.
type BatchOpts struct {
	Workers int
	Stagger time.Duration
}

// ResolveBatch resolves every track in tracks concurrently across a bounded
// worker pool, staggering dispatch so the catalog never sees a burst of
// requests. Non-YouTube-sourced tracks pass through Resolve immediately
// (which is a no-op for them) and do not consume a stagger tick.
//
// This mirrors the teacher's bulk-export worker pool: a dispatch goroutine
// feeds a buffered jobs channel through a rate.Limiter, a fixed number of
// worker goroutines drain it, and a closer goroutine closes the results
// channel once all workers finish. Cancellation is cooperative: the
// dispatch loop and each worker check ctx between units of work.
func ResolveBatch(ctx context.Context, catalog services.Catalog, tracks []models.Track, opts BatchOpts) ([]*Resolution, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	stagger := opts.Stagger
	if stagger <= 0 {
		stagger = DefaultStagger
	}

	jobs := make(chan int, len(tracks))
	results := make(chan indexedResolution, len(tracks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go resolveWorker(ctx, &wg, catalog, tracks, jobs, results)
	}

	go func() {
		limiter := rate.NewLimiter(rate.Every(stagger), 1)
		for i := range tracks {
			select {
			case <-ctx.Done():
				close(jobs)
				return
			default:
			}
			if !tracks[i].IsYouTubeSourced() {
				jobs <- i
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				close(jobs)
				return
			}
			jobs <- i
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]*Resolution, len(tracks))
	for r := range results {
		out[r.index] = r.resolution
	}

	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}

type indexedResolution struct {
	index      int
	resolution *Resolution
}

func resolveWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	catalog services.Catalog,
	tracks []models.Track,
	jobs <-chan int,
	results chan<- indexedResolution,
) {
	defer wg.Done()

	for i := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := Resolve(ctx, catalog, tracks[i])
		if err != nil && res == nil {
			res = &Resolution{Track: tracks[i]}
		}
		results <- indexedResolution{index: i, resolution: res}
	}
}
